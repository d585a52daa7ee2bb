package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
	"github.com/sendnodes-io/sendwallet-sub000/internal/validation"
)

var (
	keyTypeFlag    string
	sourceFlag     string
	pathFlag       string
	mnemonicFlag   string
	privateKeyFlag string
	keyKeyTypeFlag string
	importNew      bool
	removeYes      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new 24-word recovery phrase",
	Long: `Generate a new 24-word recovery phrase and show the fingerprint it will
have. Nothing is stored unless --import is given.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a recovery phrase",
	Long: `Import a BIP-39 recovery phrase. Without --path one keyring per key type
is created on its default path; with --path only --key-type is created.

The phrase is prompted for unless --mnemonic is given.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var importKeyCmd = &cobra.Command{
	Use:   "import-key",
	Short: "Import a single private key",
	Args:  cobra.NoArgs,
	RunE:  runImportKey,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List keyrings and their visible addresses",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var deriveCmd = &cobra.Command{
	Use:   "derive <fingerprint>",
	Short: "Derive the next address of a keyring",
	Long:  "Derive the next address of a mnemonic keyring, reusing the lowest hidden address first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDerive,
}

var hideCmd = &cobra.Command{
	Use:   "hide <address>",
	Short: "Hide an address",
	Long:  "Hide an address. A keyring whose addresses are all hidden is removed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHide,
}

var removeCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Remove a keyring",
	Long: `Remove a keyring with all of its addresses. Asks for confirmation unless
--yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	generateCmd.Flags().StringVar(&keyTypeFlag, "key-type", "", "key type to fingerprint (secp256k1|ed25519)")
	generateCmd.Flags().BoolVar(&importNew, "import", false, "import the phrase as an internal keyring")

	importCmd.Flags().StringVar(&mnemonicFlag, "mnemonic", "", "recovery phrase (prompted when omitted)")
	importCmd.Flags().StringVar(&pathFlag, "path", "", "derivation path, e.g. m/44'/60'/0'/0")
	importCmd.Flags().StringVar(&keyTypeFlag, "key-type", "", "key type for --path (secp256k1|ed25519)")
	importCmd.Flags().StringVar(&sourceFlag, "source", string(registry.SourceImport), "keyring source (import|internal)")

	importKeyCmd.Flags().StringVar(&privateKeyFlag, "private-key", "", "hex private key (prompted when omitted)")
	importKeyCmd.Flags().StringVar(&keyKeyTypeFlag, "key-type", string(keyring.KeyTypeSecp256k1), "key type (secp256k1|ed25519)")

	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(generateCmd, importCmd, importKeyCmd, listCmd, deriveCmd, hideCmd, removeCmd)
}

func parseKeyType(s string) (keyring.KeyType, error) {
	if s == "" {
		return "", nil
	}
	return keyring.ParseKeyType(s)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	keyType, err := parseKeyType(keyTypeFlag)
	if err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Session.GenerateNewKeyring(ctx, keyring.MnemonicStrength, keyType)
	if err != nil {
		return err
	}

	var fingerprints []string
	if importNew {
		fingerprints, err = a.Session.ImportKeyring(ctx, gen.Mnemonic, registry.SourceInternal, "", "")
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"fingerprint":  gen.Fingerprint,
			"mnemonic":     gen.Mnemonic,
			"fingerprints": fingerprints,
		})
	}

	Warning("Write this recovery phrase down and keep it offline:")
	fmt.Fprintf(stdout, "\n  %s\n\n", Bold("%s", gen.Mnemonic))
	PrintKeyValue("Fingerprint", gen.Fingerprint)
	if importNew {
		Success("Imported %d keyring(s): %s", len(fingerprints), strings.Join(fingerprints, ", "))
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	source, err := registry.ParseSource(sourceFlag)
	if err != nil {
		return err
	}
	keyType, err := parseKeyType(keyTypeFlag)
	if err != nil {
		return err
	}
	if err := validation.DerivationPath(pathFlag); err != nil {
		return err
	}

	mnemonic, err := readSecret(mnemonicFlag, "Enter recovery phrase: ")
	if err != nil {
		return fmt.Errorf("failed to read recovery phrase: %w", err)
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if err := validation.Mnemonic(mnemonic); err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fps, err := a.Session.ImportKeyring(ctx, mnemonic, source, pathFlag, keyType)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"fingerprints": fps})
	}
	Success("Imported %d keyring(s)", len(fps))
	for _, fp := range fps {
		fmt.Fprintln(stdout, "  "+fp)
	}
	return nil
}

func runImportKey(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	keyType, err := keyring.ParseKeyType(keyKeyTypeFlag)
	if err != nil {
		return err
	}

	privateKey, err := readSecret(privateKeyFlag, "Enter private key: ")
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	if err := validation.PrivateKey(privateKey); err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fp, err := a.Session.ImportPrivateKey(ctx, privateKey, keyType, registry.SourceImport)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"fingerprint": fp})
	}
	Success("Imported keyring %s", fp)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	infos := a.Session.GetKeyrings()
	metadata := a.Session.KeyringMetadata()

	if jsonOutput {
		return printJSON(map[string]any{
			"keyrings":        infos,
			"keyringMetadata": metadata,
		})
	}

	if len(infos) == 0 {
		Info("No keyrings yet. Add one with: keyring generate --import")
		return nil
	}

	PrintTableHeader("FINGERPRINT", "TYPE", "SOURCE", "ADDRESS")
	for _, info := range infos {
		kind := fmt.Sprintf("%s/%s", info.KeyType, info.Variant)
		for i, addr := range info.Addresses {
			if i == 0 {
				fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", info.Fingerprint, kind, metadata[info.Fingerprint].Source, addr)
				continue
			}
			fmt.Fprintf(stdout, "\t\t\t%s\n", addr)
		}
	}
	return nil
}

func runDerive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validation.Fingerprint(args[0]); err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr, err := a.Session.DeriveAddress(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"address": addr})
	}
	fmt.Fprintln(stdout, addr)
	return nil
}

func runHide(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validation.Address(args[0]); err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Session.HideAccount(ctx, args[0]); err != nil {
		return err
	}
	Success("Address %s hidden", args[0])
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validation.Fingerprint(args[0]); err != nil {
		return err
	}
	if !removeYes && !PromptConfirm("Remove keyring "+args[0]+" and all of its addresses?") {
		return fmt.Errorf("remove cancelled")
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Session.RemoveKeyring(ctx, args[0]); err != nil {
		return err
	}
	Success("Keyring %s removed", args[0])
	return nil
}

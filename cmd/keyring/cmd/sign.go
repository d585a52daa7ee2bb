package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/spf13/cobra"

	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
	"github.com/sendnodes-io/sendwallet-sub000/internal/validation"
)

var (
	messageHex bool
	familyFlag string
)

var signMessageCmd = &cobra.Command{
	Use:   "sign-message <address> <message>",
	Short: "Sign a message with the EIP-191 personal prefix",
	Long: `Sign a message with the EIP-191 personal message prefix.

The message is UTF-8 text unless --hex is given, in which case it is
0x-prefixed hex.`,
	Args: cobra.ExactArgs(2),
	RunE: runSignMessage,
}

var signTypedDataCmd = &cobra.Command{
	Use:   "sign-typed-data <address> <file>",
	Short: "Sign EIP-712 typed data read from a JSON file ('-' for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSignTypedData,
}

var signTxCmd = &cobra.Command{
	Use:   "sign-tx <address> <file>",
	Short: "Sign a transaction read from a JSON file ('-' for stdin)",
	Long: `Sign a transaction request read from a JSON file ('-' for stdin).

For --family evm the request is an EIP-1559 transaction:
  {"chainId":"0x1","nonce":"0x0","to":"0x...","value":"0x0","gas":"0x5208",
   "maxFeePerGas":"0x...","maxPriorityFeePerGas":"0x..."}

For --family pokt the request is a POKT transaction document:
  {"chain_id":"mainnet","entropy":"1","fee":[{"amount":"10000","denom":"upokt"}],
   "memo":"","msg":{...}}

The signed transaction is printed as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runSignTx,
}

func init() {
	signMessageCmd.Flags().BoolVar(&messageHex, "hex", false, "message is 0x-prefixed hex")
	signTxCmd.Flags().StringVar(&familyFlag, "family", string(signing.FamilyEVM), "transaction family (evm|pokt)")

	rootCmd.AddCommand(signMessageCmd, signTypedDataCmd, signTxCmd)
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printSignature(address string, sig []byte) error {
	if jsonOutput {
		return printJSON(map[string]string{"address": address, "signature": hexutil.Encode(sig)})
	}
	fmt.Fprintln(stdout, hexutil.Encode(sig))
	return nil
}

func runSignMessage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	address := args[0]
	if err := validation.Address(address); err != nil {
		return err
	}

	msg := []byte(args[1])
	if messageHex {
		decoded, err := hexutil.Decode(args[1])
		if err != nil {
			return fmt.Errorf("message is not valid 0x-prefixed hex: %w", err)
		}
		msg = decoded
	}
	if err := validation.Message(msg); err != nil {
		return err
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.Signer.PersonalSign(ctx, address, msg)
	if err != nil {
		return err
	}
	return printSignature(address, sig)
}

func runSignTypedData(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	address := args[0]
	if err := validation.Address(address); err != nil {
		return err
	}

	data, err := readInput(args[1])
	if err != nil {
		return fmt.Errorf("failed to read typed data: %w", err)
	}
	var typed apitypes.TypedData
	if err := json.Unmarshal(data, &typed); err != nil {
		return fmt.Errorf("invalid typed data: %w", err)
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.Signer.SignTypedData(ctx, address, typed)
	if err != nil {
		return err
	}
	return printSignature(address, sig)
}

func runSignTx(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	address := args[0]
	if err := validation.Address(address); err != nil {
		return err
	}
	family, err := signing.ParseFamily(familyFlag)
	if err != nil {
		return err
	}

	data, err := readInput(args[1])
	if err != nil {
		return fmt.Errorf("failed to read transaction: %w", err)
	}

	var req signing.TransactionRequest
	switch family {
	case signing.FamilyEVM:
		err = json.Unmarshal(data, &req.EVM)
	case signing.FamilyPOKT:
		err = json.Unmarshal(data, &req.POKT)
	}
	if err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	signed, err := a.Signer.SignTransaction(ctx, address, family, req)
	if err != nil {
		return err
	}
	return printJSON(signed)
}

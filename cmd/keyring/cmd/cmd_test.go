package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
)

const (
	hardhatMnemonic = "test test test test test test test test test test test junk"
	hardhatAddr0    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	hardhatAddr1    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	hardhatKey0     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// setupCLI points the CLI at a fresh data directory with cheap key derivation.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(passwordEnv, "correct-password")
	t.Setenv("KEYRING_KDF_TIME", "1")
	t.Setenv("KEYRING_KDF_MEMORY", "1024")
	t.Setenv("KEYRING_KDF_THREADS", "1")
	t.Setenv("KEYRING_SESSION_CACHE", "none")
	return dir
}

// execute runs one CLI invocation and returns what it wrote to stdout.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	// Flag values persist between Execute calls.
	jsonOutput, exportYes, resetYes, importNew, messageHex, removeYes = false, false, false, false, false, false
	keyTypeFlag, pathFlag, mnemonicFlag, privateKeyFlag, sourceFlag = "", "", "", "", "import"
	keyKeyTypeFlag, familyFlag = "secp256k1", "evm"

	rootCmd.SetArgs(append([]string{"--dir", dir}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := execute(t, dir, args...)
	if err != nil {
		t.Fatalf("keyring %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestGetDataDir(t *testing.T) {
	dataDir = "/custom/dir"
	if got := getDataDir(); got != "/custom/dir" {
		t.Errorf("getDataDir() with flag = %s, want /custom/dir", got)
	}
	dataDir = ""

	t.Setenv("KEYRING_DIR", "/env/dir")
	if got := getDataDir(); got != "/env/dir" {
		t.Errorf("getDataDir() with env = %s, want /env/dir", got)
	}

	t.Setenv("KEYRING_DIR", "")
	home, _ := os.UserHomeDir()
	if got, want := getDataDir(), filepath.Join(home, ".keyring"); got != want {
		t.Errorf("getDataDir() default = %s, want %s", got, want)
	}
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	defer func() { stdin = os.Stdin; stdout = os.Stdout }()
	for _, tt := range tests {
		stdin = strings.NewReader(tt.input)
		stdout = &bytes.Buffer{}
		if got := PromptConfirm("continue?"); got != tt.want {
			t.Errorf("PromptConfirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCLI_Lifecycle(t *testing.T) {
	dir := setupCLI(t)

	out := mustExecute(t, dir, "status", "--json")
	var status map[string]any
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("status output %q: %v", out, err)
	}
	if status["state"] != string(session.StateUninitialized) {
		t.Errorf("initial state = %v", status["state"])
	}

	if out := mustExecute(t, dir, "unlock"); !strings.Contains(out, "Vault created") {
		t.Errorf("unlock output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "keyring.db")); err != nil {
		t.Errorf("vault file not created: %v", err)
	}

	out = mustExecute(t, dir, "import", "--json",
		"--mnemonic", hardhatMnemonic, "--path", "m/44'/60'/0'/0", "--key-type", "secp256k1")
	var imported struct {
		Fingerprints []string `json:"fingerprints"`
	}
	if err := json.Unmarshal([]byte(out), &imported); err != nil || len(imported.Fingerprints) != 1 {
		t.Fatalf("import output %q: %v", out, err)
	}
	fp := imported.Fingerprints[0]

	if out := mustExecute(t, dir, "derive", fp); strings.TrimSpace(out) != hardhatAddr1 {
		t.Errorf("derive output = %q, want %s", out, hardhatAddr1)
	}

	out = mustExecute(t, dir, "list", "--json")
	var list struct {
		Keyrings []struct {
			Fingerprint string   `json:"fingerprint"`
			Addresses   []string `json:"addresses"`
		} `json:"keyrings"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list output %q: %v", out, err)
	}
	if len(list.Keyrings) != 1 || len(list.Keyrings[0].Addresses) != 2 {
		t.Errorf("list = %+v", list.Keyrings)
	}

	out = mustExecute(t, dir, "sign-message", hardhatAddr0, "hello")
	sig, err := hexutil.Decode(strings.TrimSpace(out))
	if err != nil || len(sig) != 65 {
		t.Fatalf("sign-message output = %q", out)
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte("hello")), sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub).Hex(); got != hardhatAddr0 {
		t.Errorf("recovered %s, want %s", got, hardhatAddr0)
	}

	if out := mustExecute(t, dir, "export", hardhatAddr0, "--yes"); strings.TrimSpace(out) != hardhatKey0 {
		t.Errorf("export output = %q", out)
	}

	mustExecute(t, dir, "hide", hardhatAddr1)
	out = mustExecute(t, dir, "list")
	if strings.Contains(out, hardhatAddr1) || !strings.Contains(out, hardhatAddr0) {
		t.Errorf("list after hide = %q", out)
	}

	mustExecute(t, dir, "remove", fp, "--yes")
	out = mustExecute(t, dir, "list", "--json")
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list output %q: %v", out, err)
	}
	if len(list.Keyrings) != 0 {
		t.Errorf("list after remove = %+v", list.Keyrings)
	}
}

func TestCLI_SignTransactionFromFile(t *testing.T) {
	dir := setupCLI(t)
	mustExecute(t, dir, "unlock")
	mustExecute(t, dir, "import-key", "--private-key", "0x"+hardhatKey0)

	txFile := filepath.Join(dir, "tx.json")
	tx := `{"chainId":"0x1","nonce":"0x0","to":"` + hardhatAddr1 + `","value":"0x1","gas":"0x5208",` +
		`"maxFeePerGas":"0x3b9aca00","maxPriorityFeePerGas":"0x1"}`
	if err := os.WriteFile(txFile, []byte(tx), 0o600); err != nil {
		t.Fatalf("write tx: %v", err)
	}

	out := mustExecute(t, dir, "sign-tx", hardhatAddr0, txFile)
	var signed struct {
		Family string `json:"family"`
		EVM    struct {
			From string `json:"from"`
			Raw  string `json:"raw"`
		} `json:"evm"`
	}
	if err := json.Unmarshal([]byte(out), &signed); err != nil {
		t.Fatalf("sign-tx output %q: %v", out, err)
	}
	if signed.Family != "evm" || !strings.EqualFold(signed.EVM.From, hardhatAddr0) || signed.EVM.Raw == "" {
		t.Errorf("signed = %+v", signed)
	}

	if _, err := execute(t, dir, "sign-tx", hardhatAddr0, txFile, "--family", "btc"); err == nil {
		t.Error("expected unknown family to fail")
	}
}

func TestCLI_PasswordAndReset(t *testing.T) {
	dir := setupCLI(t)
	mustExecute(t, dir, "unlock")

	t.Setenv(newPasswordEnv, "next-password")
	mustExecute(t, dir, "passwd")

	_, err := execute(t, dir, "unlock")
	if !errors.Is(err, session.ErrWrongPassword) {
		t.Fatalf("unlock with old password error = %v, want %v", err, session.ErrWrongPassword)
	}

	t.Setenv(passwordEnv, "next-password")
	mustExecute(t, dir, "unlock")

	stdin = strings.NewReader("n\n")
	defer func() { stdin = os.Stdin }()
	if _, err := execute(t, dir, "reset"); err == nil {
		t.Fatal("declined reset should fail")
	}
	mustExecute(t, dir, "reset", "--yes")

	out := mustExecute(t, dir, "status", "--json")
	if !strings.Contains(out, string(session.StateUninitialized)) {
		t.Errorf("status after reset = %q", out)
	}
}

func TestCLI_RequiresInitializedVault(t *testing.T) {
	dir := setupCLI(t)
	if _, err := execute(t, dir, "list"); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("list on empty vault error = %v", err)
	}
}

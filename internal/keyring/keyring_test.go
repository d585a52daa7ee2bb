package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	hardhatMnemonic = "test test test test test test test test test test test junk"
	hardhatKey0     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func mustDerivable(t *testing.T, keyType KeyType, mnemonic string) Derivable {
	t.Helper()
	k, err := NewDerivable(keyType, mnemonic, "")
	if err != nil {
		t.Fatalf("NewDerivable(%s): %v", keyType, err)
	}
	t.Cleanup(k.Destroy)
	return k
}

func TestSecp256k1_KnownAddresses(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		want     []string
	}{
		{"abandon", abandonMnemonic, []string{"0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}},
		{"hardhat", hardhatMnemonic, []string{
			"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := mustDerivable(t, KeyTypeSecp256k1, tt.mnemonic)
			for len(k.Addresses()) < len(tt.want) {
				if _, err := k.DeriveAddress(); err != nil {
					t.Fatalf("DeriveAddress: %v", err)
				}
			}
			got := k.Addresses()
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("address %d = %s, want %s", i, got[i], want)
				}
			}
		})
	}
}

func TestSecp256k1_ExportMatchesKnownKey(t *testing.T) {
	k := mustDerivable(t, KeyTypeSecp256k1, hardhatMnemonic)
	addr := k.Addresses()[0]

	got, err := k.ExportPrivateKey(addr)
	if err != nil {
		t.Fatalf("ExportPrivateKey: %v", err)
	}
	if got != hardhatKey0 {
		t.Errorf("ExportPrivateKey = %s, want %s", got, hardhatKey0)
	}

	// Lookups ignore checksum case.
	if !k.HasAddress(strings.ToLower(addr)) {
		t.Error("HasAddress should match case-insensitively")
	}
}

func TestSLIP10_Vector1(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	key, chain := slip10Master(seed)
	if got := hex.EncodeToString(key); got != "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7" {
		t.Errorf("master key = %s", got)
	}
	if got := hex.EncodeToString(chain); got != "90046a93de5380a72b5e45010748567d5ea02bbf6522f979e05c0d8d8ca9fffb" {
		t.Errorf("master chain = %s", got)
	}

	key, chain = slip10Child(key, chain, 0x80000000)
	if got := hex.EncodeToString(key); got != "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3" {
		t.Errorf("m/0H key = %s", got)
	}
	if got := hex.EncodeToString(chain); got != "8b59aa11380b624e81507a27fedda59fea6d0b779a778918a2fd3590e16e9c69" {
		t.Errorf("m/0H chain = %s", got)
	}
}

func TestEd25519_Derivable(t *testing.T) {
	k := mustDerivable(t, KeyTypeEd25519, abandonMnemonic)

	addr := k.Addresses()[0]
	if len(addr) != 40 || strings.ToLower(addr) != addr {
		t.Fatalf("POKT address %q should be 40 lowercase hex chars", addr)
	}

	pub, err := k.PublicKey(addr)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	sum := sha256.Sum256(pub)
	if hex.EncodeToString(sum[:20]) != addr {
		t.Error("address is not derived from sha256(pubkey)[:20]")
	}

	second, err := k.DeriveAddress()
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if second == addr {
		t.Error("second address should differ from the first")
	}
	if idx, ok := k.Index(second); !ok || idx != 1 {
		t.Errorf("Index(second) = %d, %v", idx, ok)
	}
}

func TestNewDerivable_Errors(t *testing.T) {
	tests := []struct {
		name     string
		keyType  KeyType
		mnemonic string
		path     string
		wantErr  error
	}{
		{"bad_checksum", KeyTypeSecp256k1, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", "", ErrInvalidMnemonic},
		{"unknown_type", KeyType("sr25519"), abandonMnemonic, "", ErrUnsupportedKeyType},
		{"bad_path", KeyTypeSecp256k1, abandonMnemonic, "44'/60'", ErrInvalidPath},
		{"soft_ed25519_path", KeyTypeEd25519, abandonMnemonic, "m/44'/635'/0'/0", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDerivable(tt.keyType, tt.mnemonic, tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDerivable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := mustDerivable(t, KeyTypeSecp256k1, abandonMnemonic)
	b := mustDerivable(t, KeyTypeSecp256k1, "  ABANDON abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about ")
	c := mustDerivable(t, KeyTypeEd25519, abandonMnemonic)

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should ignore mnemonic case and spacing")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint should differ per key type")
	}
	if len(a.Fingerprint()) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a.Fingerprint()))
	}
}

func TestRecordRoundTrip(t *testing.T) {
	k := mustDerivable(t, KeyTypeSecp256k1, hardhatMnemonic)
	k.DeriveAddress()
	k.DeriveAddress()

	r := k.Record()
	if r.NumberOfAccounts != 3 {
		t.Fatalf("NumberOfAccounts = %d, want 3", r.NumberOfAccounts)
	}

	restored, err := FromRecord(r)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	defer restored.Destroy()

	if restored.Fingerprint() != k.Fingerprint() {
		t.Error("fingerprint changed across serialization")
	}
	if strings.Join(restored.Addresses(), ",") != strings.Join(k.Addresses(), ",") {
		t.Errorf("addresses = %v, want %v", restored.Addresses(), k.Addresses())
	}
}

func TestFixed(t *testing.T) {
	k, err := NewFixed(KeyTypeSecp256k1, "0x"+hardhatKey0)
	if err != nil {
		t.Fatalf("NewFixed: %v", err)
	}
	defer k.Destroy()

	if k.Variant() != VariantFixed {
		t.Errorf("Variant() = %s", k.Variant())
	}
	if got := k.Addresses(); len(got) != 1 || got[0] != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("Addresses() = %v", got)
	}
	if _, ok := k.(Derivable); ok {
		t.Error("fixed keyring must not be derivable")
	}

	restored, err := FromRecord(k.Record())
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	defer restored.Destroy()
	if restored.Fingerprint() != k.Fingerprint() {
		t.Error("fingerprint changed across serialization")
	}
}

func TestFixedEd25519_SeedAndExpandedShareFingerprint(t *testing.T) {
	seed := strings.Repeat("11", 32)
	expanded := hex.EncodeToString(ed25519.NewKeyFromSeed(mustHex(t, seed)))

	a, err := NewFixed(KeyTypeEd25519, seed)
	if err != nil {
		t.Fatalf("NewFixed(seed): %v", err)
	}
	defer a.Destroy()
	b, err := NewFixed(KeyTypeEd25519, expanded)
	if err != nil {
		t.Fatalf("NewFixed(expanded): %v", err)
	}
	defer b.Destroy()

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("seed and expanded forms should share a fingerprint")
	}
	if a.Addresses()[0] != b.Addresses()[0] {
		t.Error("seed and expanded forms should share an address")
	}

	// Mismatched public half.
	bad := seed + strings.Repeat("00", 32)
	if _, err := NewFixed(KeyTypeEd25519, bad); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("NewFixed(bad) error = %v, want ErrInvalidPrivateKey", err)
	}
}

func TestSeedIdentity(t *testing.T) {
	tests := []struct {
		name string
		r    Record
		want string
	}{
		{"mnemonic", Record{Mnemonic: "Abandon  About", PrivateKey: "aa", Fingerprint: "f"}, "mnemonic:abandon about"},
		{"private_key", Record{PrivateKey: "0xAB", Fingerprint: "f"}, "key:ab"},
		{"expanded_ed25519", Record{PrivateKey: strings.Repeat("1", 64) + strings.Repeat("2", 64)}, "key:" + strings.Repeat("1", 64)},
		{"legacy", Record{Seed: "00", Fingerprint: "f00"}, "fingerprint:f00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.SeedIdentity(); got != tt.want {
				t.Errorf("SeedIdentity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPersonalSign_Recovers(t *testing.T) {
	k := mustDerivable(t, KeyTypeSecp256k1, hardhatMnemonic)
	addr := k.Addresses()[0]
	msg := []byte("hello keyring")

	sig, err := k.PersonalSign(addr, msg)
	if err != nil {
		t.Fatalf("PersonalSign: %v", err)
	}
	if len(sig) != 65 || (sig[64] != 27 && sig[64] != 28) {
		t.Fatalf("unexpected signature shape: %x", sig)
	}

	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != addr {
		t.Error("recovered address does not match signer")
	}
}

func TestPersonalSign_Ed25519(t *testing.T) {
	k := mustDerivable(t, KeyTypeEd25519, abandonMnemonic)
	addr := k.Addresses()[0]
	msg := []byte("pokt")

	sig, err := k.PersonalSign(addr, msg)
	if err != nil {
		t.Fatalf("PersonalSign: %v", err)
	}
	pub, _ := k.PublicKey(addr)
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("ed25519 signature does not verify")
	}
}

func TestSignTypedData_Recovers(t *testing.T) {
	k := mustDerivable(t, KeyTypeSecp256k1, hardhatMnemonic)
	addr := k.Addresses()[0]

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
		},
		Domain: apitypes.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(1),
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: apitypes.TypedDataMessage{
			"from":     map[string]interface{}{"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
			"to":       map[string]interface{}{"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
			"contents": "Hello, Bob!",
		},
	}

	sig, err := k.SignTypedData(addr, td)
	if err != nil {
		t.Fatalf("SignTypedData: %v", err)
	}

	full, err := completeTypedData(td)
	if err != nil {
		t.Fatalf("completeTypedData: %v", err)
	}
	if full.PrimaryType != "Mail" {
		t.Errorf("inferred primary type = %q, want Mail", full.PrimaryType)
	}
	if len(full.Types[DomainTypeName]) != 4 {
		t.Errorf("domain type has %d fields, want 4", len(full.Types[DomainTypeName]))
	}

	hash, _, err := apitypes.TypedDataAndHash(full)
	if err != nil {
		t.Fatalf("TypedDataAndHash: %v", err)
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != addr {
		t.Error("recovered address does not match signer")
	}
}

func TestSignTransaction_Sender(t *testing.T) {
	k := mustDerivable(t, KeyTypeSecp256k1, hardhatMnemonic)
	addr := k.Addresses()[0]
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	chainID := big.NewInt(1)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	})

	raw, err := k.SignTransaction(addr, tx, chainID)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}

	var signed types.Transaction
	if err := signed.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), &signed)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from.Hex() != addr {
		t.Errorf("sender = %s, want %s", from.Hex(), addr)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	ed := mustDerivable(t, KeyTypeEd25519, abandonMnemonic)
	secp := mustDerivable(t, KeyTypeSecp256k1, abandonMnemonic)

	if _, err := ed.SignTypedData(ed.Addresses()[0], apitypes.TypedData{}); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("ed25519 SignTypedData error = %v", err)
	}
	if _, err := ed.SignTransaction(ed.Addresses()[0], types.NewTx(&types.DynamicFeeTx{}), big.NewInt(1)); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("ed25519 SignTransaction error = %v", err)
	}
	if _, err := secp.SignBytes(secp.Addresses()[0], []byte("x")); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("secp256k1 SignBytes error = %v", err)
	}
	if _, err := secp.PersonalSign("0x0000000000000000000000000000000000000000", []byte("x")); !errors.Is(err, ErrAddressNotFound) {
		t.Errorf("unknown address error = %v", err)
	}
}

func TestDestroy(t *testing.T) {
	k, err := NewDerivable(KeyTypeSecp256k1, abandonMnemonic, "")
	if err != nil {
		t.Fatalf("NewDerivable: %v", err)
	}
	addr := k.Addresses()[0]
	k.Destroy()

	if _, err := k.ExportPrivateKey(addr); !errors.Is(err, ErrDestroyed) {
		t.Errorf("ExportPrivateKey after Destroy error = %v", err)
	}
	if _, err := k.DeriveAddress(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("DeriveAddress after Destroy error = %v", err)
	}
	if len(k.Addresses()) != 0 {
		t.Error("Addresses() should be empty after Destroy")
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"m/44'/60'/0'/0", "m/44'/60'/0'/0", false},
		{"m/44h/635h/0h/0h", "m/44'/635'/0'/0'", false},
		{"m", "m", false},
		{"44'/60'", "", true},
		{"m/x", "", true},
		{"m/2147483648", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && FormatPath(got) != tt.want {
				t.Errorf("FormatPath = %q, want %q", FormatPath(got), tt.want)
			}
		})
	}
}

func TestNewMnemonic(t *testing.T) {
	m, err := NewMnemonic(MnemonicStrength)
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	if n := len(strings.Fields(m)); n != 24 {
		t.Errorf("mnemonic has %d words, want 24", n)
	}
	if !ValidMnemonic(m) {
		t.Error("generated mnemonic fails validation")
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	return b
}

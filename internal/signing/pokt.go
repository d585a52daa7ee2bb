package signing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
)

// POKTCoin is an amount in a named denomination.
type POKTCoin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// POKTTransactionRequest is the sign document of a POKT transaction. Msg is
// passed through untouched apart from key ordering.
type POKTTransactionRequest struct {
	ChainID string          `json:"chain_id"`
	Entropy string          `json:"entropy"`
	Fee     []POKTCoin      `json:"fee"`
	Memo    string          `json:"memo"`
	Msg     json.RawMessage `json:"msg"`
}

// POKTSignature holds hex encoded key and signature.
type POKTSignature struct {
	PublicKey string `json:"pub_key"`
	Signature string `json:"signature"`
}

// SignedPOKTTransaction is the original request with its signature.
type SignedPOKTTransaction struct {
	Doc       POKTTransactionRequest `json:"doc"`
	Signature POKTSignature          `json:"signature"`
}

// SignBytes returns the canonical encoding that is signed: compact JSON with
// object keys sorted at every level and no HTML escaping.
func (r *POKTTransactionRequest) SignBytes() ([]byte, error) {
	if r.ChainID == "" {
		return nil, fmt.Errorf("%w: chain_id is required", ErrInvalidRequest)
	}
	if len(r.Msg) == 0 {
		return nil, fmt.Errorf("%w: msg is required", ErrInvalidRequest)
	}
	doc := *r
	if doc.Fee == nil {
		doc.Fee = []POKTCoin{}
	}
	return canonicalJSON(doc)
}

func signPOKT(k keyring.Keyring, address string, req *POKTTransactionRequest) (*SignedPOKTTransaction, error) {
	msg, err := req.SignBytes()
	if err != nil {
		return nil, err
	}

	sig, err := k.SignBytes(address, msg)
	if err != nil {
		return nil, wrapSigning(err)
	}
	pub, err := k.PublicKey(address)
	if err != nil {
		return nil, wrapSigning(err)
	}

	return &SignedPOKTTransaction{
		Doc: *req,
		Signature: POKTSignature{
			PublicKey: hex.EncodeToString(pub),
			Signature: hex.EncodeToString(sig),
		},
	}, nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

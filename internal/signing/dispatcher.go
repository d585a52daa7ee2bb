// Package signing routes signing requests to the keyring that owns the
// requested address and shapes the results per network family.
package signing

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/logging"
	"github.com/sendnodes-io/sendwallet-sub000/internal/metrics"
)

// Family is a network family tag on a transaction request.
type Family string

const (
	FamilyEVM  Family = "evm"
	FamilyPOKT Family = "pokt"
)

// Signing kinds, used in events and metric labels.
const (
	KindTransaction = "transaction"
	KindTypedData   = "typed_data"
	KindPersonal    = "personal"
)

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(s); f {
	case FamilyEVM, FamilyPOKT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFamily, s)
	}
}

// Keyrings gives scoped access to the keyring owning an address. It is
// implemented by session.Manager, which asserts the session is unlocked and
// counts the call as keyring activity.
type Keyrings interface {
	WithKeyring(ctx context.Context, address string, fn func(k keyring.Keyring) error) error
}

// TransactionRequest carries one family-specific request; the field
// matching the family passed to SignTransaction must be set.
type TransactionRequest struct {
	EVM  *EVMTransactionRequest  `json:"evm,omitempty"`
	POKT *POKTTransactionRequest `json:"pokt,omitempty"`
}

// SignedTransaction is the family-specific signed result.
type SignedTransaction struct {
	Family Family                 `json:"family"`
	EVM    *SignedEVMTransaction  `json:"evm,omitempty"`
	POKT   *SignedPOKTTransaction `json:"pokt,omitempty"`
}

// Dispatcher signs on behalf of the session.
type Dispatcher struct {
	keyrings Keyrings
	bus      *events.Bus
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(keyrings Keyrings, bus *events.Bus) *Dispatcher {
	return &Dispatcher{keyrings: keyrings, bus: bus}
}

// SignTransaction signs req for address under the given network family.
func (d *Dispatcher) SignTransaction(ctx context.Context, address string, family Family, req TransactionRequest) (*SignedTransaction, error) {
	ctx = logging.WithOperation(ctx, "sign_transaction")

	var out *SignedTransaction
	err := d.keyrings.WithKeyring(ctx, address, func(k keyring.Keyring) error {
		switch family {
		case FamilyEVM:
			if req.EVM == nil {
				return fmt.Errorf("%w: missing evm request", ErrInvalidRequest)
			}
			if k.KeyType() != keyring.KeyTypeSecp256k1 {
				return fmt.Errorf("%w: %s keyring cannot sign %s transactions", ErrUnsupportedTransactionType, k.KeyType(), family)
			}
			signed, err := signEVM(k, address, req.EVM)
			if err != nil {
				return err
			}
			out = &SignedTransaction{Family: family, EVM: signed}
		case FamilyPOKT:
			if req.POKT == nil {
				return fmt.Errorf("%w: missing pokt request", ErrInvalidRequest)
			}
			if k.KeyType() != keyring.KeyTypeEd25519 {
				return fmt.Errorf("%w: %s keyring cannot sign %s transactions", ErrUnsupportedTransactionType, k.KeyType(), family)
			}
			signed, err := signPOKT(k, address, req.POKT)
			if err != nil {
				return err
			}
			out = &SignedTransaction{Family: family, POKT: signed}
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedFamily, family)
		}
		return nil
	})

	d.finish(ctx, KindTransaction, address, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SignTypedData signs EIP-712 data. A caller supplied EIP712Domain type is
// dropped; the domain type is always rebuilt from td.Domain.
func (d *Dispatcher) SignTypedData(ctx context.Context, address string, td apitypes.TypedData) (hexutil.Bytes, error) {
	ctx = logging.WithOperation(ctx, "sign_typed_data")
	td.Types = stripDomainType(td.Types)

	var sig []byte
	err := d.keyrings.WithKeyring(ctx, address, func(k keyring.Keyring) error {
		var err error
		sig, err = k.SignTypedData(address, td)
		return wrapSigning(err)
	})

	d.finish(ctx, KindTypedData, address, err)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// PersonalSign signs message with the keyring's plain message scheme.
func (d *Dispatcher) PersonalSign(ctx context.Context, address string, message []byte) (hexutil.Bytes, error) {
	ctx = logging.WithOperation(ctx, "personal_sign")

	var sig []byte
	err := d.keyrings.WithKeyring(ctx, address, func(k keyring.Keyring) error {
		var err error
		sig, err = k.PersonalSign(address, message)
		return wrapSigning(err)
	})

	d.finish(ctx, KindPersonal, address, err)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// finish records the terminal outcome of a signing request.
func (d *Dispatcher) finish(ctx context.Context, kind, address string, err error) {
	log := logging.Logger(ctx)
	if err != nil {
		reason := events.Reason(err)
		metrics.Signatures.WithLabelValues(kind, reason).Inc()
		log.Warn("signing request failed", "kind", kind, "address", address, "reason", reason, "error", err)
	} else {
		metrics.Signatures.WithLabelValues(kind, "success").Inc()
		log.Info("signing request completed", "kind", kind, "address", address)
	}
	d.bus.Publish(events.Signed(kind, address, err))
}

func stripDomainType(types apitypes.Types) apitypes.Types {
	out := make(apitypes.Types, len(types))
	for name, fields := range types {
		if name == keyring.DomainTypeName {
			continue
		}
		out[name] = fields
	}
	return out
}

func wrapSigning(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSigningFailed, err)
}

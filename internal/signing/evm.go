package signing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
)

// EVMTransactionRequest is an assembled EVM transaction. Setting GasPrice
// asks for a legacy transaction, which is refused after signing.
type EVMTransactionRequest struct {
	ChainID              *hexutil.Big     `json:"chainId"`
	Nonce                hexutil.Uint64   `json:"nonce"`
	To                   *common.Address  `json:"to,omitempty"`
	Value                *hexutil.Big     `json:"value,omitempty"`
	Gas                  hexutil.Uint64   `json:"gas"`
	MaxFeePerGas         *hexutil.Big     `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big     `json:"maxPriorityFeePerGas,omitempty"`
	GasPrice             *hexutil.Big     `json:"gasPrice,omitempty"`
	Input                hexutil.Bytes    `json:"input,omitempty"`
	AccessList           types.AccessList `json:"accessList,omitempty"`
}

// SignedEVMTransaction is the signed transaction decoded back into its
// fields, plus the raw encoding ready for broadcast.
type SignedEVMTransaction struct {
	Type                 hexutil.Uint64   `json:"type"`
	Hash                 common.Hash      `json:"hash"`
	From                 common.Address   `json:"from"`
	To                   *common.Address  `json:"to"`
	ChainID              *hexutil.Big     `json:"chainId"`
	Nonce                hexutil.Uint64   `json:"nonce"`
	Value                *hexutil.Big     `json:"value"`
	Gas                  hexutil.Uint64   `json:"gas"`
	MaxFeePerGas         *hexutil.Big     `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big     `json:"maxPriorityFeePerGas"`
	Input                hexutil.Bytes    `json:"input"`
	AccessList           types.AccessList `json:"accessList"`
	V                    *hexutil.Big     `json:"v"`
	R                    *hexutil.Big     `json:"r"`
	S                    *hexutil.Big     `json:"s"`
	Raw                  hexutil.Bytes    `json:"raw"`
}

func (r *EVMTransactionRequest) transaction() (*types.Transaction, *big.Int, error) {
	if r.ChainID == nil || r.ChainID.ToInt().Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: chainId is required", ErrInvalidRequest)
	}
	chainID := new(big.Int).Set(r.ChainID.ToInt())

	if r.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    uint64(r.Nonce),
			GasPrice: bigOrZero(r.GasPrice),
			Gas:      uint64(r.Gas),
			To:       r.To,
			Value:    bigOrZero(r.Value),
			Data:     r.Input,
		}), chainID, nil
	}

	if r.MaxFeePerGas == nil || r.MaxPriorityFeePerGas == nil {
		return nil, nil, fmt.Errorf("%w: maxFeePerGas and maxPriorityFeePerGas are required", ErrInvalidRequest)
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:    chainID,
		Nonce:      uint64(r.Nonce),
		GasTipCap:  bigOrZero(r.MaxPriorityFeePerGas),
		GasFeeCap:  bigOrZero(r.MaxFeePerGas),
		Gas:        uint64(r.Gas),
		To:         r.To,
		Value:      bigOrZero(r.Value),
		Data:       r.Input,
		AccessList: r.AccessList,
	}), chainID, nil
}

func signEVM(k keyring.Keyring, address string, req *EVMTransactionRequest) (*SignedEVMTransaction, error) {
	tx, chainID, err := req.transaction()
	if err != nil {
		return nil, err
	}

	raw, err := k.SignTransaction(address, tx, chainID)
	if err != nil {
		return nil, wrapSigning(err)
	}

	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(raw); err != nil {
		return nil, wrapSigning(fmt.Errorf("decode signed transaction: %w", err))
	}
	if signed.Type() != types.DynamicFeeTxType {
		return nil, fmt.Errorf("%w: signer produced type %d, want fee-market", ErrUnsupportedTransactionType, signed.Type())
	}

	from, err := types.Sender(types.NewLondonSigner(chainID), signed)
	if err != nil {
		return nil, wrapSigning(fmt.Errorf("recover sender: %w", err))
	}
	if !strings.EqualFold(from.Hex(), address) {
		return nil, wrapSigning(fmt.Errorf("signature recovers to %s", from.Hex()))
	}

	v, r, s := signed.RawSignatureValues()
	return &SignedEVMTransaction{
		Type:                 hexutil.Uint64(signed.Type()),
		Hash:                 signed.Hash(),
		From:                 from,
		To:                   signed.To(),
		ChainID:              (*hexutil.Big)(signed.ChainId()),
		Nonce:                hexutil.Uint64(signed.Nonce()),
		Value:                (*hexutil.Big)(signed.Value()),
		Gas:                  hexutil.Uint64(signed.Gas()),
		MaxFeePerGas:         (*hexutil.Big)(signed.GasFeeCap()),
		MaxPriorityFeePerGas: (*hexutil.Big)(signed.GasTipCap()),
		Input:                signed.Data(),
		AccessList:           signed.AccessList(),
		V:                    (*hexutil.Big)(v),
		R:                    (*hexutil.Big)(r),
		S:                    (*hexutil.Big)(s),
		Raw:                  raw,
	}, nil
}

func bigOrZero(b *hexutil.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.ToInt())
}

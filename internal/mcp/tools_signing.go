package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- keyring_personal_sign ---

type personalSignInput struct {
	Address string `json:"address" jsonschema:"The EVM account to sign with."`
	Message string `json:"message" jsonschema:"The UTF-8 message to sign."`
}

type signatureOutput struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// --- keyring_sign_typed_data ---

type signTypedDataInput struct {
	Address   string         `json:"address" jsonschema:"The EVM account to sign with."`
	TypedData map[string]any `json:"typed_data" jsonschema:"EIP-712 typed data with types, primaryType, domain and message."`
}

func (s *KeyringMCPServer) registerSigningTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "keyring_personal_sign",
		Description: "Sign a message with the EIP-191 personal message prefix. Counts against the session signature limit.",
	}, s.handlePersonalSign)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "keyring_sign_typed_data",
		Description: "Sign EIP-712 typed data. Counts against the session signature limit.",
	}, s.handleSignTypedData)
}

func (s *KeyringMCPServer) authorizeSigning(address string) error {
	if !s.policy.CanSign() {
		return fmt.Errorf("signing is not allowed by policy")
	}
	if err := s.checkAccount(address); err != nil {
		return err
	}
	return s.reserveSignature()
}

func (s *KeyringMCPServer) handlePersonalSign(ctx context.Context, _ *sdkmcp.CallToolRequest, input personalSignInput) (*sdkmcp.CallToolResult, signatureOutput, error) {
	if err := s.authorizeSigning(input.Address); err != nil {
		return nil, signatureOutput{}, err
	}

	sig, err := s.signer.PersonalSign(ctx, input.Address, []byte(input.Message))
	if err != nil {
		return nil, signatureOutput{}, fmt.Errorf("personal sign: %w", err)
	}
	return nil, signatureOutput{Address: input.Address, Signature: hexutil.Encode(sig)}, nil
}

func (s *KeyringMCPServer) handleSignTypedData(ctx context.Context, _ *sdkmcp.CallToolRequest, input signTypedDataInput) (*sdkmcp.CallToolResult, signatureOutput, error) {
	if err := s.authorizeSigning(input.Address); err != nil {
		return nil, signatureOutput{}, err
	}

	raw, err := json.Marshal(input.TypedData)
	if err != nil {
		return nil, signatureOutput{}, fmt.Errorf("encode typed data: %w", err)
	}
	var typed apitypes.TypedData
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, signatureOutput{}, fmt.Errorf("invalid typed data: %w", err)
	}

	sig, err := s.signer.SignTypedData(ctx, input.Address, typed)
	if err != nil {
		return nil, signatureOutput{}, fmt.Errorf("sign typed data: %w", err)
	}
	return nil, signatureOutput{Address: input.Address, Signature: hexutil.Encode(sig)}, nil
}

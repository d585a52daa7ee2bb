package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- keyring_list ---

type listKeyringsInput struct{}

type keyringView struct {
	Fingerprint string   `json:"fingerprint"`
	KeyType     string   `json:"key_type"`
	Variant     string   `json:"variant"`
	Source      string   `json:"source"`
	Addresses   []string `json:"addresses"`
}

type listKeyringsOutput struct {
	Locked   bool          `json:"locked"`
	Keyrings []keyringView `json:"keyrings"`
}

// --- keyring_derive_address ---

type deriveAddressInput struct {
	Fingerprint string `json:"fingerprint" jsonschema:"Fingerprint of the mnemonic keyring to derive from."`
}

type deriveAddressOutput struct {
	Address string `json:"address"`
}

func (s *KeyringMCPServer) registerKeyringTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "keyring_list",
		Description: "List keyrings and their visible addresses. Returns only public data, NEVER key material.",
	}, s.handleListKeyrings)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "keyring_derive_address",
		Description: "Derive the next address of a mnemonic keyring. " +
			"A previously hidden address is reused before a new one is minted.",
	}, s.handleDeriveAddress)
}

func (s *KeyringMCPServer) handleListKeyrings(_ context.Context, _ *sdkmcp.CallToolRequest, _ listKeyringsInput) (*sdkmcp.CallToolResult, listKeyringsOutput, error) {
	out := listKeyringsOutput{
		Locked:   !s.session.IsUnlocked(),
		Keyrings: []keyringView{},
	}
	metadata := s.session.KeyringMetadata()

	for _, info := range s.session.GetKeyrings() {
		var addrs []string
		for _, a := range info.Addresses {
			if s.policy.CanAccessAccount(a) {
				addrs = append(addrs, a)
			}
		}
		if len(addrs) == 0 {
			continue
		}
		out.Keyrings = append(out.Keyrings, keyringView{
			Fingerprint: info.Fingerprint,
			KeyType:     string(info.KeyType),
			Variant:     string(info.Variant),
			Source:      string(metadata[info.Fingerprint].Source),
			Addresses:   addrs,
		})
	}

	return nil, out, nil
}

func (s *KeyringMCPServer) handleDeriveAddress(ctx context.Context, _ *sdkmcp.CallToolRequest, input deriveAddressInput) (*sdkmcp.CallToolResult, deriveAddressOutput, error) {
	if !s.policy.CanWrite() {
		return nil, deriveAddressOutput{}, fmt.Errorf("deriving addresses is not allowed by policy (access_mode: %s)", s.policy.AccessMode)
	}

	addr, err := s.session.DeriveAddress(ctx, input.Fingerprint)
	if err != nil {
		return nil, deriveAddressOutput{}, fmt.Errorf("derive address: %w", err)
	}
	if err := s.checkAccount(addr); err != nil {
		return nil, deriveAddressOutput{}, err
	}

	return nil, deriveAddressOutput{Address: addr}, nil
}

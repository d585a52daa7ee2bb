package mcp

import (
	"context"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
)

// KeyringMCPServer exposes an unlocked keyring session as an MCP server.
// Private keys are never offered.
type KeyringMCPServer struct {
	server  *sdkmcp.Server
	session *session.Manager
	signer  *signing.Dispatcher
	policy  *AccessPolicy

	mu         sync.Mutex
	signatures int
}

// NewKeyringMCPServer creates a new MCP server backed by the given session and policy.
func NewKeyringMCPServer(sess *session.Manager, signer *signing.Dispatcher, policy *AccessPolicy) *KeyringMCPServer {
	if policy == nil {
		policy = DefaultPolicy()
	}

	s := &KeyringMCPServer{
		session: sess,
		signer:  signer,
		policy:  policy,
	}

	s.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "keyring",
			Version: "1.0.0",
		},
		&sdkmcp.ServerOptions{
			Instructions: "Keyring exposes the accounts of an unlocked wallet vault. " +
				"It can list accounts, derive new addresses and sign messages. Private keys are never returned.",
		},
	)

	s.registerKeyringTools()
	s.registerSigningTools()

	return s
}

// Run starts the MCP server on the stdio transport.
func (s *KeyringMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// reserveSignature consumes one unit of the per-session signature budget.
// A zero or negative limit means unlimited.
func (s *KeyringMCPServer) reserveSignature() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max := s.policy.MaxSignaturesPerSession; max > 0 && s.signatures >= max {
		return fmt.Errorf("signature limit of %d reached for this session", max)
	}
	s.signatures++
	return nil
}

func (s *KeyringMCPServer) checkAccount(address string) error {
	if !s.policy.CanAccessAccount(address) {
		return fmt.Errorf("account %q is not allowed by policy", address)
	}
	return nil
}

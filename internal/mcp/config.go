package mcp

import (
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Access modes understood by AccessPolicy.
const (
	AccessReadOnly  = "read-only"
	AccessReadWrite = "read-write"
	AccessFull      = "full"
)

// AccessPolicy controls what the MCP server can expose.
type AccessPolicy struct {
	AccessMode              string   `yaml:"access_mode"`
	AccountsAllow           []string `yaml:"accounts_allow"`
	AccountsDeny            []string `yaml:"accounts_deny"`
	AllowSigning            bool     `yaml:"allow_signing"`
	MaxSignaturesPerSession int      `yaml:"max_signatures_per_session"`
}

// DefaultPolicy returns a permissive default policy.
func DefaultPolicy() *AccessPolicy {
	return &AccessPolicy{
		AccessMode:              AccessFull,
		AccountsAllow:           []string{"*"},
		AllowSigning:            true,
		MaxSignaturesPerSession: 50,
	}
}

// LoadPolicy reads an access policy from a YAML file.
// Returns nil, nil if the file does not exist.
func LoadPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var policy AccessPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// CanAccessAccount reports whether the policy exposes address. Patterns are
// globs matched case-insensitively, so checksummed and lowercase forms agree.
func (p *AccessPolicy) CanAccessAccount(address string) bool {
	if matchesAny(address, p.AccountsDeny) {
		return false
	}
	if len(p.AccountsAllow) == 0 {
		return true
	}
	return matchesAny(address, p.AccountsAllow)
}

// CanWrite reports whether the policy allows deriving new addresses.
func (p *AccessPolicy) CanWrite() bool {
	return p.AccessMode == AccessReadWrite || p.AccessMode == AccessFull
}

// CanSign reports whether the policy allows signing.
func (p *AccessPolicy) CanSign() bool {
	return p.AllowSigning && p.AccessMode == AccessFull
}

// matchesAny returns true if name matches any of the glob patterns.
func matchesAny(name string, patterns []string) bool {
	name = strings.ToLower(name)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(strings.ToLower(pattern), name); matched {
			return true
		}
	}
	return false
}

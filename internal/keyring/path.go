package keyring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ParsePath parses a BIP-32 style path such as m/44'/60'/0'/0. Hardened
// components carry a ' or h suffix.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath, path)
	}

	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		if hardened {
			p = p[:len(p)-1]
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad component %q in %q", ErrInvalidPath, p, path)
		}
		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		out = append(out, idx)
	}
	return out, nil
}

// FormatPath renders components back into path notation.
func FormatPath(components []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range components {
		b.WriteByte('/')
		if c >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(c-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(c), 10))
		}
	}
	return b.String()
}

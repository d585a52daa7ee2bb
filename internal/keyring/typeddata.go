package keyring

import (
	"errors"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DomainTypeName is the EIP-712 meta-type describing the domain separator.
const DomainTypeName = "EIP712Domain"

var errNoPrimaryType = errors.New("typed data has no primary type")

// completeTypedData rebuilds the EIP712Domain type from the populated domain
// fields and infers the primary type when it is not given.
func completeTypedData(td apitypes.TypedData) (apitypes.TypedData, error) {
	types := make(apitypes.Types, len(td.Types)+1)
	for name, fields := range td.Types {
		if name == DomainTypeName {
			continue
		}
		types[name] = fields
	}
	types[DomainTypeName] = domainType(td.Domain)

	out := td
	out.Types = types
	if out.PrimaryType == "" {
		primary, err := inferPrimaryType(types)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		out.PrimaryType = primary
	}
	return out, nil
}

func domainType(d apitypes.TypedDataDomain) []apitypes.Type {
	var fields []apitypes.Type
	if d.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if d.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// inferPrimaryType picks the type no other type references. Ties resolve
// alphabetically.
func inferPrimaryType(types apitypes.Types) (string, error) {
	referenced := make(map[string]bool)
	for _, fields := range types {
		for _, f := range fields {
			t := f.Type
			if i := strings.IndexByte(t, '['); i >= 0 {
				t = t[:i]
			}
			referenced[t] = true
		}
	}

	var candidates []string
	for name := range types {
		if name != DomainTypeName && !referenced[name] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", errNoPrimaryType
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

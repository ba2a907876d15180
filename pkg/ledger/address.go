package ledger

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// BridgeAccount converts a ledger-native 32-byte account to the
// contract-native 20-byte address: keccak-256 of the account, truncated
// to the trailing 20 bytes. Deterministic and side-effect-free; issuer
// and owner matching by upstream callers depends on it.
func BridgeAccount(account AccountID) Address {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(account[:])
	sum := hasher.Sum(nil)

	var addr Address
	copy(addr[:], sum[12:])
	return addr
}

// ParseAccountID decodes a 0x-prefixed or bare hex 32-byte account.
func ParseAccountID(s string) (AccountID, error) {
	var a AccountID
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, WrapError(ErrCodeInvalidInput, "account is not valid hex", err)
	}
	if len(decoded) != 32 {
		return a, NewError(ErrCodeInvalidInput, "account must be 32 bytes")
	}
	copy(a[:], decoded)
	return a, nil
}

// ResolveAddress accepts either a 20-byte address or a 32-byte account
// in hex and returns the contract-native address, bridging when needed.
func ResolveAddress(s string) (Address, error) {
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Address{}, WrapError(ErrCodeInvalidInput, "address is not valid hex", err)
	}
	switch len(decoded) {
	case 20:
		var a Address
		copy(a[:], decoded)
		return a, nil
	case 32:
		var acc AccountID
		copy(acc[:], decoded)
		return BridgeAccount(acc), nil
	}
	return Address{}, NewError(ErrCodeInvalidInput, "address must be 20 or 32 bytes")
}

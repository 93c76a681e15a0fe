package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that addr is a plausible Solana account address:
// base58-encoded, exactly 32 bytes.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", addr, len(raw))
	}
	return nil
}

// IsOnCurve reports whether the address decodes to a point on the ed25519
// curve. Program-derived addresses (e.g. bonding-curve mints) are off-curve;
// keypair-generated mints are on-curve.
func IsOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

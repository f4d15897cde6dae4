package classifier

import (
	"filippo.io/edwards25519"

	"github.com/mr-tron/base58"
)

// isValidAddress reports whether addr is a base58 encoding of 32 bytes.
func isValidAddress(addr string) bool {
	b, err := base58.Decode(addr)
	return err == nil && len(b) == 32
}

// isValidSignature reports whether sig is a base58 encoding of 64 bytes.
func isValidSignature(sig string) bool {
	b, err := base58.Decode(sig)
	return err == nil && len(b) == 64
}

// isOnCurve reports whether addr decodes to a point on the ed25519 curve.
// Program-derived addresses are constructed to be off the curve, so on-curve
// addresses are likelier to be user wallets. The classifier uses this as a
// preference when ranking fallback trader candidates, never as a filter:
// curve membership alone does not prove an address is a wallet.
func isOnCurve(addr string) bool {
	b, err := base58.Decode(addr)
	if err != nil || len(b) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(b)
	return err == nil
}

package signcodec

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verify reports whether sig is a valid personal-sign signature over msg
// produced by the account at address. Malformed input, failed recovery and
// a signer mismatch are all just false: callers never learn which check
// failed.
func Verify(address, msg string, sig []byte) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	if len(sig) != crypto.SignatureLength {
		return false
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return false
	}
	pubkey, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), normalized)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubkey) == common.HexToAddress(address)
}

// Sign produces a wallet-style personal-sign signature over msg. Intended
// for clients and tests; the daemon itself only ever verifies.
func Sign(msg string, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

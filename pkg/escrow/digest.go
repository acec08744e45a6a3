package escrow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Action tags bound into every authorization digest. They keep a withdraw
// signature from being replayed as a settle and vice versa.
const (
	tagWithdraw = "WITHDRAW"
	tagSettle   = "SETTLE"
)

// DepositKey derives the ledger key for a task identifier. The contract
// indexes deposits by the same hash, so the off-chain side never stores the
// key, it re-derives it.
func DepositKey(taskID string) common.Hash {
	return crypto.Keccak256Hash([]byte(taskID))
}

// WithdrawDigest builds the digest an administrative signer must cover to
// authorize releasing the full locked amount back to the task owner.
//
// Pre-image layout (exact, shared with the contract verifier):
//
//	"WITHDRAW" | contract | key | owner | token | amount(uint256)
func WithdrawDigest(contract common.Address, key common.Hash, owner, token common.Address, amount *big.Int) []byte {
	return wrapPersonalSign(preimage(tagWithdraw, contract, key, owner, token, nil, amount))
}

// SettleDigest builds the digest a task owner must cover to authorize
// releasing the full locked amount to recipient. The recipient is part of
// the pre-image so an authorization for one worker cannot be reused for
// another.
//
// Pre-image layout (exact, shared with the contract verifier):
//
//	"SETTLE" | contract | key | owner | token | recipient | amount(uint256)
func SettleDigest(contract common.Address, key common.Hash, owner, token, recipient common.Address, amount *big.Int) []byte {
	return wrapPersonalSign(preimage(tagSettle, contract, key, owner, token, &recipient, amount))
}

// RecoverSigner recovers the address that produced sig over digest. Both
// wallet-style (27/28) and raw (0/1) recovery ids are accepted.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pubkey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

func preimage(
	tag string, contract common.Address, key common.Hash,
	owner, token common.Address, recipient *common.Address, amount *big.Int,
) []byte {
	buf := make([]byte, 0, len(tag)+common.AddressLength*4+common.HashLength*2)
	buf = append(buf, tag...)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, key.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	buf = append(buf, token.Bytes()...)
	if recipient != nil {
		buf = append(buf, recipient.Bytes()...)
	}
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	return buf
}

// wrapPersonalSign hashes the pre-image and wraps it in the personal-sign
// envelope, so the resulting digest is what a standard wallet signing
// routine produces a signature over.
func wrapPersonalSign(preimage []byte) []byte {
	return accounts.TextHash(crypto.Keccak256(preimage))
}

package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WithdrawSigner holds the administrative authority that can authorize
// releasing a cancelled task's deposit back to its owner. It is an injected
// capability: the core never sees the private key.
type WithdrawSigner interface {
	// SignWithdraw signs the withdraw digest for the given ledger entry
	// and returns a wallet-style 65-byte signature.
	SignWithdraw(ctx context.Context, key common.Hash, owner, token common.Address, amount *big.Int) ([]byte, error)

	// Address returns the administrative signer's address.
	Address() common.Address
}

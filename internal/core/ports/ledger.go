package ports

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrLedgerUnavailable marks a ledger read that failed for infrastructure
// reasons (network, RPC). It is retryable and distinct from "no deposit":
// callers may safely retry funding, since the fund transition is guarded by
// status, not by the ledger read.
var ErrLedgerUnavailable = errors.New("escrow ledger unavailable")

// DepositInfo mirrors the escrow contract's ledger entry for one key.
type DepositInfo struct {
	Owner        common.Address
	Token        common.Address
	AmountLocked *big.Int
	Released     bool
}

// Exists reports whether a deposit was ever made: the contract returns an
// all-zero owner for unknown keys.
func (d DepositInfo) Exists() bool {
	return d.Owner != (common.Address{})
}

// EscrowReader resolves deposit entries from the external escrow ledger.
type EscrowReader interface {
	FetchDepositInfo(ctx context.Context, key common.Hash) (*DepositInfo, error)
	Close()
}

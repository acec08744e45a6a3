package escrow

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDepositExists          = errors.New("deposit already exists")
	ErrDepositNotFound        = errors.New("deposit not found")
	ErrDepositAlreadyReleased = errors.New("deposit already released")
	ErrBadAuthorization       = errors.New("authorization does not recover to the required signer")
	ErrInvalidAmount          = errors.New("deposit amount must be positive")
	ErrFeeTooHigh             = errors.New("fee exceeds the allowed cap")
)

// MaxFeeBps caps the configurable deposit fee at 10%.
const MaxFeeBps = 1000

const bpsDenominator = 10000

// Deposit is a single ledger entry: funds locked for one task key,
// created once and released at most once.
type Deposit struct {
	Owner        common.Address
	Token        common.Address
	AmountLocked *big.Int
	Released     bool
}

type ReleaseKind string

const (
	ReleaseWithdraw ReleaseKind = "withdraw"
	ReleaseSettle   ReleaseKind = "settle"
)

// ReleaseEvent records a single payout of a ledger entry.
type ReleaseEvent struct {
	Key    common.Hash
	Kind   ReleaseKind
	To     common.Address
	Amount *big.Int
}

// Vault mirrors the on-chain escrow contract: one entry per key, funds
// locked minus fee at deposit time, released exactly once through an
// authorized withdraw or settle. The digest formulas are the ones from
// digest.go, so signatures produced off-chain verify here bit-for-bit.
type Vault struct {
	mu       sync.Mutex
	address  common.Address
	admin    common.Address
	feeBps   uint64
	deposits map[common.Hash]*Deposit
	events   []ReleaseEvent
}

// NewVault creates a vault bound to a contract address and an administrative
// signer. The address is part of every digest, so two vaults never accept
// each other's authorizations.
func NewVault(address, admin common.Address, feeBps uint64) (*Vault, error) {
	if feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	return &Vault{
		address:  address,
		admin:    admin,
		feeBps:   feeBps,
		deposits: make(map[common.Hash]*Deposit),
	}, nil
}

func (v *Vault) Address() common.Address {
	return v.address
}

// SetFee updates the fee taken on future deposits, still capped.
func (v *Vault) SetFee(feeBps uint64) error {
	if feeBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feeBps = feeBps
	return nil
}

// Deposit locks amount minus fee under key. A key can be funded once.
// Returns the locked (post-fee) amount.
func (v *Vault) Deposit(key common.Hash, owner, token common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.deposits[key]; ok {
		return nil, ErrDepositExists
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(v.feeBps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	locked := new(big.Int).Sub(amount, fee)
	v.deposits[key] = &Deposit{
		Owner:        owner,
		Token:        token,
		AmountLocked: locked,
	}
	return new(big.Int).Set(locked), nil
}

// Get returns a copy of the ledger entry for key.
func (v *Vault) Get(key common.Hash) (Deposit, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.deposits[key]
	if !ok {
		return Deposit{}, false
	}
	return Deposit{
		Owner:        d.Owner,
		Token:        d.Token,
		AmountLocked: new(big.Int).Set(d.AmountLocked),
		Released:     d.Released,
	}, true
}

// Withdraw releases the full locked amount back to the entry's owner.
// adminSig must cover the withdraw digest and recover to the administrative
// signer.
func (v *Vault) Withdraw(key common.Hash, adminSig []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.deposits[key]
	if !ok {
		return ErrDepositNotFound
	}
	if d.Released {
		return ErrDepositAlreadyReleased
	}
	digest := WithdrawDigest(v.address, key, d.Owner, d.Token, d.AmountLocked)
	signer, err := RecoverSigner(digest, adminSig)
	if err != nil || signer != v.admin {
		return ErrBadAuthorization
	}
	d.Released = true
	v.events = append(v.events, ReleaseEvent{
		Key:    key,
		Kind:   ReleaseWithdraw,
		To:     d.Owner,
		Amount: new(big.Int).Set(d.AmountLocked),
	})
	return nil
}

// Settle releases the full locked amount to recipient. ownerSig must cover
// the settle digest for that recipient and recover to the entry's recorded
// owner.
func (v *Vault) Settle(key common.Hash, recipient common.Address, ownerSig []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.deposits[key]
	if !ok {
		return ErrDepositNotFound
	}
	if d.Released {
		return ErrDepositAlreadyReleased
	}
	digest := SettleDigest(v.address, key, d.Owner, d.Token, recipient, d.AmountLocked)
	signer, err := RecoverSigner(digest, ownerSig)
	if err != nil || signer != d.Owner {
		return ErrBadAuthorization
	}
	d.Released = true
	v.events = append(v.events, ReleaseEvent{
		Key:    key,
		Kind:   ReleaseSettle,
		To:     recipient,
		Amount: new(big.Int).Set(d.AmountLocked),
	})
	return nil
}

// Events returns the release events emitted so far, in order.
func (v *Vault) Events() []ReleaseEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ReleaseEvent, len(v.events))
	copy(out, v.events)
	return out
}

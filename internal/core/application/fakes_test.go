package application_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/internal/core/ports"
	"github.com/taskpaylabs/taskpayd/pkg/escrow"
	"github.com/taskpaylabs/taskpayd/pkg/signcodec"
)

// account is a test wallet: it signs canonical messages the way a client
// would, hex-encoded with a wallet-style recovery id.
type account struct {
	key     *ecdsa.PrivateKey
	address string
}

func newAccount(t *testing.T) *account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &account{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (a *account) sign(t *testing.T, msg map[string]any) string {
	t.Helper()
	encoded, err := signcodec.Canonicalize(msg)
	require.NoError(t, err)
	sig, err := signcodec.Sign(encoded, a.key)
	require.NoError(t, err)
	return hex.EncodeToString(sig)
}

type inMemoryTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

func (r *inMemoryTaskRepo) Add(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.Id]; ok {
		return fmt.Errorf("task %s already exists: %w", task.Id, domain.ErrConflict)
	}
	r.tasks[task.Id] = task
	return nil
}

func (r *inMemoryTaskRepo) Get(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return &task, nil
}

func (r *inMemoryTaskRepo) GetByOwner(_ context.Context, owner string) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, task := range r.tasks {
		if task.Owner == owner {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *inMemoryTaskRepo) MarkFunded(_ context.Context, id, price, token string) error {
	return r.transition(id, domain.TaskDraft, func(t *domain.Task) {
		t.Status = domain.TaskActive
		t.Price = price
		t.Token = token
	})
}

func (r *inMemoryTaskRepo) MarkFinished(_ context.Context, id string) error {
	return r.transition(id, domain.TaskActive, func(t *domain.Task) {
		t.Status = domain.TaskFinished
	})
}

func (r *inMemoryTaskRepo) MarkClosed(_ context.Context, id, withdrawSignature string) error {
	return r.transition(id, domain.TaskActive, func(t *domain.Task) {
		t.Status = domain.TaskClosed
		t.WithdrawSignature = withdrawSignature
	})
}

func (r *inMemoryTaskRepo) transition(id string, from domain.TaskStatus, apply func(*domain.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if task.Status != from {
		return fmt.Errorf("task %s is %s: %w", id, task.Status, domain.ErrConflict)
	}
	apply(&task)
	r.tasks[id] = task
	return nil
}

func (r *inMemoryTaskRepo) Close() {}

type inMemoryResponseRepo struct {
	mu        sync.Mutex
	responses map[string]domain.Response
}

func (r *inMemoryResponseRepo) Add(_ context.Context, response domain.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responses[response.Id]; ok {
		return fmt.Errorf("response %s already exists: %w", response.Id, domain.ErrConflict)
	}
	r.responses[response.Id] = response
	return nil
}

func (r *inMemoryResponseRepo) Get(_ context.Context, id string) (*domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	response, ok := r.responses[id]
	if !ok {
		return nil, fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
	}
	return &response, nil
}

func (r *inMemoryResponseRepo) GetByTask(_ context.Context, taskId string) ([]domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Response
	for _, response := range r.responses {
		if response.TaskId == taskId {
			out = append(out, response)
		}
	}
	return out, nil
}

func (r *inMemoryResponseRepo) MarkDecided(
	_ context.Context, id string, status domain.ResponseStatus, settlementBlob, settlementSignature string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	response, ok := r.responses[id]
	if !ok {
		return fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
	}
	if response.Status != domain.ResponsePending {
		return fmt.Errorf("response %s is %s: %w", id, response.Status, domain.ErrConflict)
	}
	response.Status = status
	response.SettlementBlob = settlementBlob
	response.SettlementSignature = settlementSignature
	r.responses[id] = response
	return nil
}

func (r *inMemoryResponseRepo) Close() {}

type inMemoryRepoManager struct {
	taskRepo     *inMemoryTaskRepo
	responseRepo *inMemoryResponseRepo
}

func newInMemoryRepoManager() *inMemoryRepoManager {
	return &inMemoryRepoManager{
		taskRepo:     &inMemoryTaskRepo{tasks: make(map[string]domain.Task)},
		responseRepo: &inMemoryResponseRepo{responses: make(map[string]domain.Response)},
	}
}

func (m *inMemoryRepoManager) Tasks() domain.TaskRepository         { return m.taskRepo }
func (m *inMemoryRepoManager) Responses() domain.ResponseRepository { return m.responseRepo }
func (m *inMemoryRepoManager) Close()                               {}

// fakeLedger serves deposit entries from memory. An unknown key yields a
// zero-owner entry, matching the contract's behavior for unset mappings.
type fakeLedger struct {
	mu       sync.Mutex
	deposits map[common.Hash]ports.DepositInfo
	err      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{deposits: make(map[common.Hash]ports.DepositInfo)}
}

func (l *fakeLedger) put(key common.Hash, info ports.DepositInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposits[key] = info
}

func (l *fakeLedger) FetchDepositInfo(_ context.Context, key common.Hash) (*ports.DepositInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	info, ok := l.deposits[key]
	if !ok {
		return &ports.DepositInfo{AmountLocked: big.NewInt(0)}, nil
	}
	return &info, nil
}

func (l *fakeLedger) Close() {}

// vaultLedger adapts the reference vault to the ledger read port, so the
// lifecycle tests run against real contract semantics.
type vaultLedger struct {
	vault *escrow.Vault
}

func (l *vaultLedger) FetchDepositInfo(_ context.Context, key common.Hash) (*ports.DepositInfo, error) {
	d, ok := l.vault.Get(key)
	if !ok {
		return &ports.DepositInfo{AmountLocked: big.NewInt(0)}, nil
	}
	return &ports.DepositInfo{
		Owner:        d.Owner,
		Token:        d.Token,
		AmountLocked: d.AmountLocked,
		Released:     d.Released,
	}, nil
}

func (l *vaultLedger) Close() {}

// countingSigner issues real withdraw authorizations and records how often
// it was asked to.
type countingSigner struct {
	key      *ecdsa.PrivateKey
	contract common.Address
	calls    int
}

func newCountingSigner(t *testing.T) *countingSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &countingSigner{
		key:      key,
		contract: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
	}
}

func (s *countingSigner) SignWithdraw(
	_ context.Context, key common.Hash, owner, token common.Address, amount *big.Int,
) ([]byte, error) {
	s.calls++
	sig, err := crypto.Sign(escrow.WithdrawDigest(s.contract, key, owner, token, amount), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func (s *countingSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

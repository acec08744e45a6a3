package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/internal/core/ports"
	"github.com/taskpaylabs/taskpayd/pkg/escrow"
)

// TaskService drives the task lifecycle: draft -> active -> finished|closed.
// Transitions are valid only when the request signature and the escrow
// ledger facts agree; the ledger is consulted exactly once, at funding.
type TaskService struct {
	repoManager ports.RepoManager
	ledgerSvc   ports.EscrowReader
	signerSvc   ports.WithdrawSigner
}

func NewTaskService(
	repoManager ports.RepoManager, ledgerSvc ports.EscrowReader, signerSvc ports.WithdrawSigner,
) *TaskService {
	return &TaskService{repoManager, ledgerSvc, signerSvc}
}

// CreateTask persists a new draft task owned by the request signer. No
// ledger read happens here, funding is deferred.
func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (*domain.Task, error) {
	if req.Id == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	if err := verifySigned(owner, map[string]any{
		"kind":  KindTaskCreate,
		"id":    req.Id,
		"owner": owner,
	}, req.Signature); err != nil {
		return nil, err
	}

	task := domain.Task{
		Id:        req.Id,
		Owner:     owner,
		Status:    domain.TaskDraft,
		Price:     "0",
		CreatedAt: time.Now().Unix(),
	}
	if err := s.repoManager.Tasks().Add(ctx, task); err != nil {
		return nil, err
	}

	log.WithField("task", task.Id).Debug("created draft task")
	return &task, nil
}

// FundTask reconciles the signed price and token with the ledger entry for
// the task's key and flips the task to active. This is the single point
// where on-chain fact and off-chain metadata meet; it is never re-verified
// on reads.
func (s *TaskService) FundTask(ctx context.Context, req FundTaskRequest) (*domain.Task, error) {
	if req.Id == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	token, tokenAddr, err := parseToken(req.Token)
	if err != nil {
		return nil, err
	}
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	task, err := s.repoManager.Tasks().Get(ctx, req.Id)
	if err != nil {
		return nil, err
	}
	if task.Owner != owner {
		return nil, fmt.Errorf("only the task owner can fund: %w", domain.ErrForbidden)
	}
	if task.Status != domain.TaskDraft {
		return nil, fmt.Errorf("task %s is %s: %w", task.Id, task.Status, domain.ErrConflict)
	}

	if err := verifySigned(owner, map[string]any{
		"kind":  KindTaskFund,
		"id":    req.Id,
		"owner": owner,
		"price": price.String(),
		"token": token,
	}, req.Signature); err != nil {
		return nil, err
	}

	key := escrow.DepositKey(task.Id)
	deposit, err := s.ledgerSvc.FetchDepositInfo(ctx, key)
	if err != nil {
		return nil, err
	}
	if !deposit.Exists() {
		return nil, fmt.Errorf("no deposit for task %s: %w", task.Id, domain.ErrConflict)
	}
	if deposit.Released {
		return nil, fmt.Errorf("deposit for task %s already released: %w", task.Id, domain.ErrConflict)
	}
	if deposit.Owner.Hex() != owner {
		return nil, fmt.Errorf("deposit owner mismatch: %w", domain.ErrInvalidRequest)
	}
	if deposit.Token != tokenAddr {
		return nil, fmt.Errorf("deposit token mismatch: %w", domain.ErrInvalidRequest)
	}
	if deposit.AmountLocked.String() != price.String() {
		return nil, fmt.Errorf("deposit amount mismatch: %w", domain.ErrInvalidRequest)
	}

	if err := s.repoManager.Tasks().MarkFunded(ctx, task.Id, price.String(), token); err != nil {
		return nil, err
	}

	task.Status = domain.TaskActive
	task.Price = price.String()
	task.Token = token
	log.WithField("task", task.Id).Info("task funded")
	return task, nil
}

// CancelTask closes an active task and returns the admin-issued withdraw
// authorization so the owner can execute the on-chain release. Cancelling
// an already-closed task with a cached authorization is idempotent and does
// not re-invoke the signer.
func (s *TaskService) CancelTask(ctx context.Context, req CancelTaskRequest) (*domain.Task, error) {
	if req.Id == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	task, err := s.repoManager.Tasks().Get(ctx, req.Id)
	if err != nil {
		return nil, err
	}
	if task.Owner != owner {
		return nil, fmt.Errorf("only the task owner can cancel: %w", domain.ErrForbidden)
	}

	signedMsg := map[string]any{
		"kind":  KindTaskCancel,
		"id":    req.Id,
		"owner": owner,
	}

	switch task.Status {
	case domain.TaskClosed:
		if task.WithdrawSignature == "" {
			return nil, fmt.Errorf("task %s is closed: %w", task.Id, domain.ErrConflict)
		}
		if err := verifySigned(owner, signedMsg, req.Signature); err != nil {
			return nil, err
		}
		return task, nil
	case domain.TaskActive:
		// fallthrough to the cancel path below
	default:
		return nil, fmt.Errorf("task %s is %s: %w", task.Id, task.Status, domain.ErrConflict)
	}

	if err := verifySigned(owner, signedMsg, req.Signature); err != nil {
		return nil, err
	}

	amount, err := parsePrice(task.Price)
	if err != nil {
		return nil, fmt.Errorf("task %s has no funded price: %w", task.Id, domain.ErrConflict)
	}
	_, tokenAddr, err := parseToken(task.Token)
	if err != nil {
		return nil, fmt.Errorf("task %s has no funded token: %w", task.Id, domain.ErrConflict)
	}

	key := escrow.DepositKey(task.Id)
	sig, err := s.signerSvc.SignWithdraw(ctx, key, common.HexToAddress(owner), tokenAddr, amount)
	if err != nil {
		log.WithError(err).WithField("task", task.Id).Error("withdraw signer failed")
		return nil, fmt.Errorf("failed to sign withdraw authorization: %w", domain.ErrInternal)
	}
	withdrawSig := hex.EncodeToString(sig)

	if err := s.repoManager.Tasks().MarkClosed(ctx, task.Id, withdrawSig); err != nil {
		return nil, err
	}

	task.Status = domain.TaskClosed
	task.WithdrawSignature = withdrawSig
	log.WithField("task", task.Id).Info("task cancelled")
	return task, nil
}

// Settlement returns an approved response's task together with the cached
// owner settlement authorization, so the worker can execute the on-chain
// release. It changes no state.
func (s *TaskService) Settlement(ctx context.Context, req SettlementRequest) (*domain.Task, *domain.Response, error) {
	if req.ResponseId == "" {
		return nil, nil, fmt.Errorf("missing response id: %w", domain.ErrInvalidRequest)
	}
	worker, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, nil, err
	}

	response, err := s.repoManager.Responses().Get(ctx, req.ResponseId)
	if err != nil {
		return nil, nil, err
	}
	if response.Worker != worker {
		return nil, nil, fmt.Errorf("only the response worker can settle: %w", domain.ErrForbidden)
	}
	if response.Status != domain.ResponseApproved {
		return nil, nil, fmt.Errorf("response %s is %s: %w", response.Id, response.Status, domain.ErrConflict)
	}
	if response.SettlementSignature == "" {
		return nil, nil, fmt.Errorf("response %s has no settlement authorization: %w", response.Id, domain.ErrInvalidRequest)
	}

	if err := verifySigned(worker, map[string]any{
		"kind":       KindTaskSettle,
		"responseId": response.Id,
		"worker":     worker,
	}, req.Signature); err != nil {
		return nil, nil, err
	}

	task, err := s.repoManager.Tasks().Get(ctx, response.TaskId)
	if err != nil {
		return nil, nil, err
	}
	return task, response, nil
}

// GetTask returns a task by id.
func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	return s.repoManager.Tasks().Get(ctx, id)
}

// ListTasks returns the requesting owner's tasks. The query itself is
// signature-gated.
func (s *TaskService) ListTasks(ctx context.Context, req ListTasksRequest) ([]domain.Task, error) {
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	if err := verifySigned(owner, map[string]any{
		"kind":  KindTaskQuery,
		"owner": owner,
	}, req.Signature); err != nil {
		return nil, err
	}
	return s.repoManager.Tasks().GetByOwner(ctx, owner)
}

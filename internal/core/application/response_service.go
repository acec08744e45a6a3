package application

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/internal/core/ports"
)

// ResponseService drives the response lifecycle: pending -> approved|rejected.
// Checks run cheapest first: structure, then roles, then state, signature
// verification always last.
type ResponseService struct {
	repoManager ports.RepoManager
}

func NewResponseService(repoManager ports.RepoManager) *ResponseService {
	return &ResponseService{repoManager}
}

// SubmitResponse records a worker's submission against an active task.
func (s *ResponseService) SubmitResponse(ctx context.Context, req SubmitResponseRequest) (*domain.Response, error) {
	if req.TaskId == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	if req.Payload == "" {
		return nil, fmt.Errorf("missing payload: %w", domain.ErrInvalidRequest)
	}
	worker, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	task, err := s.repoManager.Tasks().Get(ctx, req.TaskId)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskActive {
		return nil, fmt.Errorf("task %s is %s: %w", task.Id, task.Status, domain.ErrConflict)
	}

	id := req.Id
	if id == "" {
		id = newResponseId()
	}

	if err := verifySigned(worker, map[string]any{
		"kind":    KindTaskResponse,
		"taskId":  req.TaskId,
		"worker":  worker,
		"payload": req.Payload,
	}, req.Signature); err != nil {
		return nil, err
	}

	response := domain.Response{
		Id:        id,
		TaskId:    task.Id,
		Worker:    worker,
		Status:    domain.ResponsePending,
		Payload:   req.Payload,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.repoManager.Responses().Add(ctx, response); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"task": task.Id, "response": response.Id}).Debug("response submitted")
	return &response, nil
}

// DecideResponse applies the owner's decision to a pending response. On
// approval the settlement artifacts are persisted with the response and the
// parent task is finished; on rejection the task stays active and open to
// other workers.
func (s *ResponseService) DecideResponse(ctx context.Context, req DecideResponseRequest) (*domain.Response, error) {
	if req.ResponseId == "" {
		return nil, fmt.Errorf("missing response id: %w", domain.ErrInvalidRequest)
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	if req.Accept {
		// only the owner, holding the private key, can produce the
		// settlement authorization; the server never computes it
		if req.SettlementBlob == "" {
			return nil, fmt.Errorf("approval requires a settlement blob: %w", domain.ErrInvalidRequest)
		}
		if req.SettlementSignature == "" {
			return nil, fmt.Errorf("approval requires a settlement authorization: %w", domain.ErrInvalidRequest)
		}
	}
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	worker, err := normalizeAddress(req.Worker)
	if err != nil {
		return nil, err
	}

	response, err := s.repoManager.Responses().Get(ctx, req.ResponseId)
	if err != nil {
		return nil, err
	}
	task, err := s.repoManager.Tasks().Get(ctx, response.TaskId)
	if err != nil {
		return nil, err
	}
	if task.Owner != owner {
		return nil, fmt.Errorf("only the task owner can decide: %w", domain.ErrForbidden)
	}
	if worker != response.Worker {
		return nil, fmt.Errorf("decision worker does not match response worker: %w", domain.ErrInvalidRequest)
	}
	if response.Decided() {
		return nil, fmt.Errorf("response %s is %s: %w", response.Id, response.Status, domain.ErrConflict)
	}
	if task.Status != domain.TaskActive {
		return nil, fmt.Errorf("task %s is %s: %w", task.Id, task.Status, domain.ErrConflict)
	}
	// string-equal on the canonical representation, no numeric coercion
	if price.String() != task.Price {
		return nil, fmt.Errorf("decision price does not match funded price: %w", domain.ErrInvalidRequest)
	}

	msg := map[string]any{
		"kind":       KindTaskDecision,
		"responseId": response.Id,
		"owner":      owner,
		"worker":     worker,
		"price":      price.String(),
		"accept":     req.Accept,
	}
	if req.Accept {
		msg["settlementBlob"] = req.SettlementBlob
		msg["settlementSignature"] = req.SettlementSignature
	}
	if err := verifySigned(owner, msg, req.Signature); err != nil {
		return nil, err
	}

	if !req.Accept {
		if err := s.repoManager.Responses().MarkDecided(
			ctx, response.Id, domain.ResponseRejected, "", "",
		); err != nil {
			return nil, err
		}
		response.Status = domain.ResponseRejected
		log.WithField("response", response.Id).Info("response rejected")
		return response, nil
	}

	// The task flips first: it is the transition both a concurrent decide
	// and a concurrent cancel contend on, so only one of them can pass.
	if err := s.repoManager.Tasks().MarkFinished(ctx, task.Id); err != nil {
		return nil, err
	}
	if err := s.repoManager.Responses().MarkDecided(
		ctx, response.Id, domain.ResponseApproved, req.SettlementBlob, req.SettlementSignature,
	); err != nil {
		return nil, err
	}

	response.Status = domain.ResponseApproved
	response.SettlementBlob = req.SettlementBlob
	response.SettlementSignature = req.SettlementSignature
	log.WithFields(log.Fields{"task": task.Id, "response": response.Id}).Info("response approved")
	return response, nil
}

// GetResponse returns a response by id.
func (s *ResponseService) GetResponse(ctx context.Context, id string) (*domain.Response, error) {
	if id == "" {
		return nil, fmt.Errorf("missing response id: %w", domain.ErrInvalidRequest)
	}
	return s.repoManager.Responses().Get(ctx, id)
}

// ListResponses returns a task's responses to its owner. The query is
// signature-gated: response payloads are not public.
func (s *ResponseService) ListResponses(ctx context.Context, req ListResponsesRequest) ([]domain.Response, error) {
	if req.TaskId == "" {
		return nil, fmt.Errorf("missing task id: %w", domain.ErrInvalidRequest)
	}
	owner, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	task, err := s.repoManager.Tasks().Get(ctx, req.TaskId)
	if err != nil {
		return nil, err
	}
	if task.Owner != owner {
		return nil, fmt.Errorf("only the task owner can list responses: %w", domain.ErrForbidden)
	}
	if err := verifySigned(owner, map[string]any{
		"kind":   KindResponseQuery,
		"taskId": task.Id,
		"owner":  owner,
	}, req.Signature); err != nil {
		return nil, err
	}
	return s.repoManager.Responses().GetByTask(ctx, task.Id)
}

func newResponseId() string {
	return ulid.Make().String()
}

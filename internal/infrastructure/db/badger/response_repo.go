package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
)

const (
	responseDir = "response"
)

type responseRepository struct {
	store *badgerhold.Store
}

func NewResponseRepository(baseDir string, logger badger.Logger) (domain.ResponseRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, responseDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open response store: %s", err)
	}
	return &responseRepository{store}, nil
}

func (r *responseRepository) Add(ctx context.Context, response domain.Response) error {
	if err := r.store.Insert(response.Id, response); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("response %s already exists: %w", response.Id, domain.ErrConflict)
		}
		return fmt.Errorf("failed to add response: %w", err)
	}
	return nil
}

func (r *responseRepository) Get(ctx context.Context, id string) (*domain.Response, error) {
	var response domain.Response
	err := r.store.Get(id, &response)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return &response, nil
}

func (r *responseRepository) GetByTask(ctx context.Context, taskId string) ([]domain.Response, error) {
	var responses []domain.Response
	if err := r.store.Find(&responses, badgerhold.Where("TaskId").Eq(taskId)); err != nil {
		return nil, fmt.Errorf("failed to get responses by task: %w", err)
	}
	return responses, nil
}

func (r *responseRepository) MarkDecided(
	ctx context.Context, id string, status domain.ResponseStatus, settlementBlob, settlementSignature string,
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var response domain.Response
		err := r.store.TxGet(tx, id, &response)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get response: %w", err)
		}
		if response.Status != domain.ResponsePending {
			return fmt.Errorf("response %s is %s: %w", id, response.Status, domain.ErrConflict)
		}
		response.Status = status
		response.SettlementBlob = settlementBlob
		response.SettlementSignature = settlementSignature
		return r.store.TxUpdate(tx, id, response)
	})
}

func (r *responseRepository) Close() {
	// nolint:all
	r.store.Close()
}

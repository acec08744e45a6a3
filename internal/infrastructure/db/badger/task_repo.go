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
	taskDir = "task"
)

type taskRepository struct {
	store *badgerhold.Store
}

func NewTaskRepository(baseDir string, logger badger.Logger) (domain.TaskRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, taskDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %s", err)
	}
	return &taskRepository{store}, nil
}

func (r *taskRepository) Add(ctx context.Context, task domain.Task) error {
	if err := r.store.Insert(task.Id, task); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("task %s already exists: %w", task.Id, domain.ErrConflict)
		}
		return fmt.Errorf("failed to add task: %w", err)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.store.Get(id, &task)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (r *taskRepository) GetByOwner(ctx context.Context, owner string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := r.store.Find(&tasks, badgerhold.Where("Owner").Eq(owner)); err != nil {
		return nil, fmt.Errorf("failed to get tasks by owner: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) MarkFunded(ctx context.Context, id, price, token string) error {
	return r.transition(id, domain.TaskActive, func(task *domain.Task) error {
		if task.Status != domain.TaskDraft {
			return fmt.Errorf("task %s is %s: %w", id, task.Status, domain.ErrConflict)
		}
		task.Price = price
		task.Token = token
		return nil
	})
}

func (r *taskRepository) MarkFinished(ctx context.Context, id string) error {
	return r.transition(id, domain.TaskFinished, func(task *domain.Task) error {
		if task.Status != domain.TaskActive {
			return fmt.Errorf("task %s is %s: %w", id, task.Status, domain.ErrConflict)
		}
		return nil
	})
}

func (r *taskRepository) MarkClosed(ctx context.Context, id, withdrawSignature string) error {
	return r.transition(id, domain.TaskClosed, func(task *domain.Task) error {
		if task.Status != domain.TaskActive {
			return fmt.Errorf("task %s is %s: %w", id, task.Status, domain.ErrConflict)
		}
		task.WithdrawSignature = withdrawSignature
		return nil
	})
}

// transition re-reads the current status and applies the conditional update
// inside a single badger transaction, so racing transitions cannot both
// succeed.
func (r *taskRepository) transition(id string, to domain.TaskStatus, check func(*domain.Task) error) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var task domain.Task
		err := r.store.TxGet(tx, id, &task)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get task: %w", err)
		}
		if err := check(&task); err != nil {
			return err
		}
		task.Status = to
		return r.store.TxUpdate(tx, id, task)
	})
}

func (r *taskRepository) Close() {
	// nolint:all
	r.store.Close()
}

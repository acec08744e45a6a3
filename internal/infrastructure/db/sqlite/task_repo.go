package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
)

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) (domain.TaskRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open task repository: db is nil")
	}
	return &taskRepository{db}, nil
}

func (r *taskRepository) Add(ctx context.Context, task domain.Task) error {
	query := `
		INSERT INTO task (id, owner, status, price, token, withdraw_signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(
		ctx, query,
		task.Id, task.Owner, int64(task.Status), task.Price, task.Token,
		task.WithdrawSignature, task.CreatedAt,
	)
	if err != nil {
		if sqlErr, ok := err.(*sqlite.Error); ok {
			if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
				return fmt.Errorf("task %s already exists: %w", task.Id, domain.ErrConflict)
			}
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	query := `
		SELECT id, owner, status, price, token, withdraw_signature, created_at
		FROM task WHERE id = ?
	`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *taskRepository) GetByOwner(ctx context.Context, owner string) ([]domain.Task, error) {
	query := `
		SELECT id, owner, status, price, token, withdraw_signature, created_at
		FROM task WHERE owner = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks by owner: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) MarkFunded(ctx context.Context, id, price, token string) error {
	query := `
		UPDATE task SET status = ?, price = ?, token = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, id, query,
		int64(domain.TaskActive), price, token, id, int64(domain.TaskDraft),
	)
}

func (r *taskRepository) MarkFinished(ctx context.Context, id string) error {
	query := `UPDATE task SET status = ? WHERE id = ? AND status = ?`
	return r.transition(ctx, id, query,
		int64(domain.TaskFinished), id, int64(domain.TaskActive),
	)
}

func (r *taskRepository) MarkClosed(ctx context.Context, id, withdrawSignature string) error {
	query := `
		UPDATE task SET status = ?, withdraw_signature = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, id, query,
		int64(domain.TaskClosed), withdrawSignature, id, int64(domain.TaskActive),
	)
}

// transition runs a conditional status update; zero affected rows means the
// expected state is gone (conflict) or the task never existed (not found).
func (r *taskRepository) transition(ctx context.Context, id, query string, args ...any) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			var status int64
			err := tx.QueryRowContext(ctx, `SELECT status FROM task WHERE id = ?`, id).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to get task status: %w", err)
			}
			return fmt.Errorf("task %s is %s: %w", id, domain.TaskStatus(status), domain.ErrConflict)
		}
		return nil
	})
}

func (r *taskRepository) Close() {
	// nolint:all
	r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status int64
	if err := row.Scan(
		&task.Id, &task.Owner, &status, &task.Price, &task.Token,
		&task.WithdrawSignature, &task.CreatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	return &task, nil
}

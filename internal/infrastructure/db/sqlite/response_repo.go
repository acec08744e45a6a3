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

type responseRepository struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) (domain.ResponseRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open response repository: db is nil")
	}
	return &responseRepository{db}, nil
}

func (r *responseRepository) Add(ctx context.Context, response domain.Response) error {
	query := `
		INSERT INTO response (id, task_id, worker, status, payload, settlement_blob, settlement_signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(
		ctx, query,
		response.Id, response.TaskId, response.Worker, int64(response.Status),
		response.Payload, response.SettlementBlob, response.SettlementSignature,
		response.CreatedAt,
	)
	if err != nil {
		if sqlErr, ok := err.(*sqlite.Error); ok {
			if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
				return fmt.Errorf("response %s already exists: %w", response.Id, domain.ErrConflict)
			}
		}
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

func (r *responseRepository) Get(ctx context.Context, id string) (*domain.Response, error) {
	query := `
		SELECT id, task_id, worker, status, payload, settlement_blob, settlement_signature, created_at
		FROM response WHERE id = ?
	`
	response, err := scanResponse(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return response, nil
}

func (r *responseRepository) GetByTask(ctx context.Context, taskId string) ([]domain.Response, error) {
	query := `
		SELECT id, task_id, worker, status, payload, settlement_blob, settlement_signature, created_at
		FROM response WHERE task_id = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, taskId)
	if err != nil {
		return nil, fmt.Errorf("failed to get responses by task: %w", err)
	}
	defer rows.Close()

	var responses []domain.Response
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, *response)
	}
	return responses, rows.Err()
}

func (r *responseRepository) MarkDecided(
	ctx context.Context, id string, status domain.ResponseStatus, settlementBlob, settlementSignature string,
) error {
	query := `
		UPDATE response SET status = ?, settlement_blob = ?, settlement_signature = ?
		WHERE id = ? AND status = ?
	`
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			int64(status), settlementBlob, settlementSignature,
			id, int64(domain.ResponsePending),
		)
		if err != nil {
			return fmt.Errorf("failed to update response: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			var current int64
			err := tx.QueryRowContext(ctx, `SELECT status FROM response WHERE id = ?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to get response status: %w", err)
			}
			return fmt.Errorf("response %s is %s: %w", id, domain.ResponseStatus(current), domain.ErrConflict)
		}
		return nil
	})
}

func (r *responseRepository) Close() {
	// the shared handle is closed by the task repository
}

func scanResponse(row rowScanner) (*domain.Response, error) {
	var response domain.Response
	var status int64
	if err := row.Scan(
		&response.Id, &response.TaskId, &response.Worker, &status,
		&response.Payload, &response.SettlementBlob, &response.SettlementSignature,
		&response.CreatedAt,
	); err != nil {
		return nil, err
	}
	response.Status = domain.ResponseStatus(status)
	return &response, nil
}

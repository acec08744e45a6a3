package domain

import "context"

type TaskStatus int

const (
	TaskDraft TaskStatus = iota
	TaskActive
	TaskFinished
	TaskClosed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskDraft:
		return "draft"
	case TaskActive:
		return "active"
	case TaskFinished:
		return "finished"
	case TaskClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Task is a unit of work backed by a ledger deposit. The id is chosen by
// the creator and is the sole input of the escrow ledger key.
type Task struct {
	Id     string
	Owner  string // checksummed address, immutable after creation
	Status TaskStatus

	// Price is the locked amount in base units as a canonical integer
	// string, "0" while draft. Token is the chain-qualified token
	// identifier, empty while draft. Both are written once, at funding.
	Price string
	Token string

	// WithdrawSignature caches the admin-issued withdraw authorization
	// once the task is cancelled, so it is computed exactly once.
	WithdrawSignature string

	CreatedAt int64
}

// IsTerminal returns true when no transition can leave the current status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskFinished || t.Status == TaskClosed
}

// TaskRepository stores tasks. Every status transition is a single atomic
// conditional write: it re-reads the current status in the same transaction
// and fails with ErrConflict when the expected state is gone.
type TaskRepository interface {
	// Add persists a new draft task. ErrConflict if the id is taken.
	Add(ctx context.Context, task Task) error

	// Get retrieves a task by id. ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Task, error)

	// GetByOwner retrieves all tasks created by owner.
	GetByOwner(ctx context.Context, owner string) ([]Task, error)

	// MarkFunded transitions draft -> active and records price and token.
	MarkFunded(ctx context.Context, id, price, token string) error

	// MarkFinished transitions active -> finished.
	MarkFinished(ctx context.Context, id string) error

	// MarkClosed transitions active -> closed and stores the withdraw
	// authorization alongside.
	MarkClosed(ctx context.Context, id, withdrawSignature string) error

	// Close closes the repository.
	Close()
}

package domain

import "context"

type ResponseStatus int

const (
	ResponsePending ResponseStatus = iota
	ResponseApproved
	ResponseRejected
)

func (s ResponseStatus) String() string {
	switch s {
	case ResponsePending:
		return "pending"
	case ResponseApproved:
		return "approved"
	case ResponseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Response is a worker's submission against an active task. It is decided
// exactly once; approved and rejected are both terminal.
type Response struct {
	Id     string
	TaskId string
	Worker string // checksummed address, immutable after submission
	Status ResponseStatus

	// Payload is an opaque encrypted blob; its content is meaningful only
	// to the task owner.
	Payload string

	// Settlement artifacts, present iff the response is approved: an
	// opaque encrypted settlement blob and the owner-issued settle
	// authorization signature.
	SettlementBlob      string
	SettlementSignature string

	CreatedAt int64
}

// Decided returns true once the response left the pending state.
func (r *Response) Decided() bool {
	return r.Status != ResponsePending
}

// ResponseRepository stores responses. MarkDecided is a single atomic
// conditional write from pending, failing with ErrConflict otherwise.
type ResponseRepository interface {
	// Add persists a new pending response. ErrConflict if the id is taken.
	Add(ctx context.Context, response Response) error

	// Get retrieves a response by id. ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Response, error)

	// GetByTask retrieves all responses submitted against a task.
	GetByTask(ctx context.Context, taskId string) ([]Response, error)

	// MarkDecided transitions pending -> status and stores the settlement
	// artifacts (empty on rejection).
	MarkDecided(ctx context.Context, id string, status ResponseStatus, settlementBlob, settlementSignature string) error

	// Close closes the repository.
	Close()
}

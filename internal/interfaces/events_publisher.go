package interfaces

import "context"

// EventPublisher delivers committed-operation events to interested
// consumers. Publishing happens after the atomic unit has committed and is
// best effort: the ledger never retries and never fails an operation on a
// publish error.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

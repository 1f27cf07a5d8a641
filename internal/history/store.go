package history

import (
	"context"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// Store is the append-only persistence for history entries. There is no
// update or delete on purpose.
type Store interface {
	Append(ctx context.Context, entry Entry) error

	// AppendBatch inserts entries produced by a bulk operation in one round
	// trip. An empty batch is a no-op.
	AppendBatch(ctx context.Context, entries []Entry) error

	ListByRequest(ctx context.Context, kind disbursement.Kind, reqID id.RequestID) ([]Entry, error)
}

package queue

import (
	"context"
	"sync"
	"time"

	dErrors "txgate/pkg/domain-errors"
)

// TxRunner provides the transactional boundary for queue transitions: the
// status update and its audit entry must commit or fail together. The
// Postgres runner opens a database transaction and carries it on the context;
// the in-memory runner serializes transitions under a lock, which is enough
// because memory stores cannot partially fail.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// MemoryTxRunner serializes transitions with a mutex.
type MemoryTxRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (t *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

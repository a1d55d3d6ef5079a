package events_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "txgate/contracts/events"
	"txgate/internal/events"
)

// recordingSink captures published envelopes for assertions.
type recordingSink struct {
	mu        sync.Mutex
	published []contracts.Envelope
}

func (s *recordingSink) Publish(_ context.Context, env contracts.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, env)
	return nil
}

func (s *recordingSink) all() []contracts.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.Envelope{}, s.published...)
}

func TestWorker_DeliversEmittedEvents(t *testing.T) {
	sink := &recordingSink{}
	worker := events.NewWorker(sink, 16, slog.New(slog.DiscardHandler), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	env := events.NewEnvelope(contracts.TypeDecisionQueued, time.Now())
	env.TransactionID = "txn-1"
	worker.Emit(env)

	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 5*time.Millisecond)

	got := sink.all()[0]
	assert.Equal(t, contracts.TypeDecisionQueued, got.Type)
	assert.Equal(t, contracts.SchemaVersion, got.SchemaVersion)
	assert.NotEmpty(t, got.EventID)

	cancel()
	<-done
}

func TestWorker_EmitNeverBlocksWhenBufferFull(t *testing.T) {
	// No Run loop draining: the buffer fills and further emits drop.
	sink := &recordingSink{}
	worker := events.NewWorker(sink, 1, slog.New(slog.DiscardHandler), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			worker.Emit(events.NewEnvelope(contracts.TypeReviewApproved, time.Now()))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}

package events

import (
	"context"
	"log/slog"

	contracts "txgate/contracts/events"
)

// Sink delivers a single envelope to the outside world.
type Sink interface {
	Publish(ctx context.Context, env contracts.Envelope) error
}

// Emitter is what domain services depend on. Emit never blocks and never
// returns an error; delivery is best effort.
type Emitter interface {
	Emit(env contracts.Envelope)
}

// Worker buffers envelopes and delivers them to the sink on its own
// goroutine, decoupling the decision path from broker latency.
type Worker struct {
	sink    Sink
	inbox   chan contracts.Envelope
	logger  *slog.Logger
	metrics *Metrics
}

func NewWorker(sink Sink, bufferSize int, logger *slog.Logger, metrics *Metrics) *Worker {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Worker{
		sink:    sink,
		inbox:   make(chan contracts.Envelope, bufferSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Emit enqueues the envelope for delivery, dropping it when the buffer is
// full. Drops are counted and logged, never propagated.
func (w *Worker) Emit(env contracts.Envelope) {
	select {
	case w.inbox <- env:
	default:
		w.metrics.EventDropped(string(env.Type))
		w.logger.Warn("event buffer full, dropping event",
			"event_type", string(env.Type),
			"event_id", env.EventID,
		)
	}
}

// Run delivers buffered envelopes until the context is cancelled. Remaining
// buffered events are abandoned on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-w.inbox:
			if err := w.sink.Publish(ctx, env); err != nil {
				w.metrics.PublishFailed(string(env.Type))
				w.logger.ErrorContext(ctx, "failed to publish event",
					"event_type", string(env.Type),
					"event_id", env.EventID,
					"error", err,
				)
				continue
			}
			w.metrics.EventPublished(string(env.Type))
		}
	}
}

// Discard is an Emitter that drops everything. Used when Kafka is not
// configured.
type Discard struct{}

func (Discard) Emit(contracts.Envelope) {}

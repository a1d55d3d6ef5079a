package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "txgate/pkg/domain"
	"txgate/pkg/platform/circuit"
	"txgate/pkg/platform/sentinel"
)

// Prediction is the output of the external anomaly model.
type Prediction struct {
	AnomalyScore    int
	FraudConfidence int
}

//go:generate mockgen -source=layer_statistical.go -destination=mocks/mocks.go -package=mocks InferenceClient

// InferenceClient calls the external ML inference service. Implementations
// must respect context deadlines; the layer adds its own call timeout on top
// of the scorer's join timeout.
type InferenceClient interface {
	Predict(ctx context.Context, txn id.TransactionContext) (Prediction, error)
}

// StatisticalLayer scores via the external anomaly/outlier model. It is the
// only layer with a network dependency in the hot path, so its failure mode
// (timeout, service down) is exactly what the scorer's weight redistribution
// exists for. A circuit breaker stops the layer from hammering an inference
// service that is already down; an open breaker fails the layer immediately.
type StatisticalLayer struct {
	client      InferenceClient
	callTimeout time.Duration
	breaker     *circuit.Breaker

	mu        sync.Mutex
	lastProbe time.Time
}

// probeInterval is how often an open breaker lets one call through to test
// whether the inference service recovered.
const probeInterval = 10 * time.Second

// NewStatisticalLayer constructs the statistical layer. callTimeout bounds a
// single inference call; zero means rely on the scorer's join timeout alone.
func NewStatisticalLayer(client InferenceClient, callTimeout time.Duration) *StatisticalLayer {
	return &StatisticalLayer{
		client:      client,
		callTimeout: callTimeout,
		breaker:     circuit.New("inference"),
	}
}

func (l *StatisticalLayer) Name() string { return "statistical" }

// allowProbe rate-limits calls while the breaker is open.
func (l *StatisticalLayer) allowProbe() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastProbe) < probeInterval {
		return false
	}
	l.lastProbe = time.Now()
	return true
}

func (l *StatisticalLayer) Evaluate(ctx context.Context, txn id.TransactionContext) (LayerScore, error) {
	if l.breaker.IsOpen() && !l.allowProbe() {
		return LayerScore{}, fmt.Errorf("inference circuit open: %w", sentinel.ErrUnavailable)
	}

	if l.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.callTimeout)
		defer cancel()
	}

	prediction, err := l.client.Predict(ctx, txn)
	if err != nil {
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.mu.Lock()
			l.lastProbe = time.Now()
			l.mu.Unlock()
		}
		return LayerScore{}, err
	}
	l.breaker.RecordSuccess()
	return LayerScore{
		Score:       prediction.AnomalyScore,
		FraudSignal: prediction.FraudConfidence,
	}, nil
}

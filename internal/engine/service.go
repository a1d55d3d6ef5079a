// Package engine is the decision path: score the transaction, resolve the
// governing config snapshot, evaluate policy, then either auto-approve or
// enqueue for human review.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	contracts "txgate/contracts/events"
	"txgate/internal/audit"
	"txgate/internal/engine/metrics"
	"txgate/internal/events"
	"txgate/internal/policy"
	"txgate/internal/queue"
	"txgate/internal/reviewconfig"
	"txgate/internal/risk"
	id "txgate/pkg/domain"
	"txgate/pkg/requestcontext"
)

// Scorer abstracts the risk scoring fan-out.
type Scorer interface {
	Score(ctx context.Context, txn id.TransactionContext) (risk.Result, error)
}

// ConfigResolver returns the config snapshot governing a scope.
type ConfigResolver interface {
	Resolve(ctx context.Context, scope reviewconfig.Scope) (*reviewconfig.ReviewConfig, error)
}

// Enqueuer routes a transaction into the review queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, txn id.TransactionContext, decision policy.Decision) (*queue.Item, error)
}

// ProfileRecorder folds auto-approved transactions into the submitter's
// spending profile so the behavioral risk layer has history to score
// against. Review approvals feed the same store via the queue service.
type ProfileRecorder interface {
	RecordTransaction(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error
}

// Outcome is the result of one evaluation. Item is set only when the
// transaction was queued.
type Outcome struct {
	AutoApproved    bool
	Reason          id.Reason
	Priority        id.Priority
	RiskScore       int
	FraudConfidence int
	ConfigVersion   int64
	Degraded        bool
	Item            *queue.Item
}

// Service wires the decision path together.
type Service struct {
	scorer    Scorer
	configs   ConfigResolver
	queue     Enqueuer
	auditLog  audit.Store
	evaluator *policy.Evaluator
	emitter   events.Emitter
	profiles  ProfileRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(
	scorer Scorer,
	configs ConfigResolver,
	enqueuer Enqueuer,
	auditLog audit.Store,
	evaluator *policy.Evaluator,
	emitter events.Emitter,
	profiles ProfileRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if emitter == nil {
		emitter = events.Discard{}
	}
	return &Service{
		scorer:    scorer,
		configs:   configs,
		queue:     enqueuer,
		auditLog:  auditLog,
		evaluator: evaluator,
		emitter:   emitter,
		profiles:  profiles,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("txgate/internal/engine"),
	}
}

// Evaluate runs the full decision path for one transaction. Scoring
// degradation never fails the evaluation; only a total scoring outage forces
// the transaction into review at critical priority.
func (s *Service) Evaluate(ctx context.Context, txn id.TransactionContext) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "engine.Evaluate",
		trace.WithAttributes(
			attribute.String("transaction.id", txn.ID.String()),
			attribute.String("organization.id", txn.OrganizationID.String()),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.ObserveEvaluateLatency(time.Since(start))
	}()

	if err := txn.Validate(); err != nil {
		return Outcome{}, err
	}

	scope := reviewconfig.Scope{
		OrganizationID: txn.OrganizationID,
		BranchID:       txn.BranchID,
		Country:        txn.Country,
	}
	cfg, err := s.configs.Resolve(ctx, scope)
	if err != nil {
		// No config means nothing may auto-process for this organization.
		cfg = reviewconfig.Disabled(scope)
	}

	result, err := s.scorer.Score(ctx, txn)
	if errors.Is(err, risk.ErrScoringUnavailable) {
		// Fail safe: an unscorable transaction goes to review at the top
		// priority rather than through.
		return s.enqueue(ctx, txn, policy.Decision{
			RequiresReview: true,
			Reason:         id.ReasonScoringUnavailable,
			Priority:       id.PriorityCritical,
			ConfigVersion:  cfg.Version,
		}, true)
	}
	if err != nil {
		return Outcome{}, err
	}
	txn = txn.WithScores(result.RiskScore, result.FraudConfidence)
	if txn.VendorIsNew && !txn.HasMandatoryCase(id.CaseNewVendor) {
		txn.MandatoryCases = append(txn.MandatoryCases, id.CaseNewVendor)
	}

	decision := s.evaluator.Decide(txn, cfg)
	span.SetAttributes(
		attribute.Bool("decision.requires_review", decision.RequiresReview),
		attribute.String("decision.reason", string(decision.Reason)),
		attribute.Int("risk.score", txn.RiskScore),
		attribute.Int("risk.fraud_confidence", txn.FraudConfidence),
	)

	if decision.RequiresReview {
		return s.enqueue(ctx, txn, decision, result.Degraded())
	}
	return s.autoApprove(ctx, txn, decision, result.Degraded())
}

func (s *Service) autoApprove(ctx context.Context, txn id.TransactionContext, decision policy.Decision, degraded bool) (Outcome, error) {
	now := requestcontext.Now(ctx)

	if err := s.auditLog.Append(ctx, audit.Entry{
		TransactionID:  txn.ID,
		OrganizationID: txn.OrganizationID,
		Action:         audit.ActionAutoApproved,
		ActorID:        "system",
		Timestamp:      now,
		AfterStatus:    id.StatusApproved,
		RequestID:      requestcontext.RequestID(ctx),
		Details: map[string]string{
			"risk_score":       itoa(txn.RiskScore),
			"fraud_confidence": itoa(txn.FraudConfidence),
		},
	}); err != nil {
		return Outcome{}, err
	}

	env := events.NewEnvelope(contracts.TypeDecisionAutoApproved, now)
	env.OrganizationID = txn.OrganizationID.String()
	env.TransactionID = txn.ID.String()
	env.Reason = string(decision.Reason)
	env.RiskScore = txn.RiskScore
	env.FraudConfidence = txn.FraudConfidence
	env.ConfigVersion = decision.ConfigVersion
	s.emitter.Emit(env)

	if s.profiles != nil && !txn.SubmitterID.IsZero() {
		// Best effort: profile lag degrades a risk signal, not the decision.
		if err := s.profiles.RecordTransaction(ctx, txn.OrganizationID, txn.SubmitterID, txn.Amount); err != nil {
			s.logger.WarnContext(ctx, "failed to record submitter profile",
				"transaction_id", txn.ID.String(),
				"submitter_id", txn.SubmitterID.String(),
				"error", err,
			)
		}
	}

	s.metrics.DecisionMade("auto_approved", string(decision.Reason))
	s.logger.InfoContext(ctx, "transaction auto-approved",
		"transaction_id", txn.ID.String(),
		"risk_score", txn.RiskScore,
		"fraud_confidence", txn.FraudConfidence,
		"config_version", decision.ConfigVersion,
		"request_id", requestcontext.RequestID(ctx),
	)

	return Outcome{
		AutoApproved:    true,
		Reason:          decision.Reason,
		RiskScore:       txn.RiskScore,
		FraudConfidence: txn.FraudConfidence,
		ConfigVersion:   decision.ConfigVersion,
		Degraded:        degraded,
	}, nil
}

func (s *Service) enqueue(ctx context.Context, txn id.TransactionContext, decision policy.Decision, degraded bool) (Outcome, error) {
	item, err := s.queue.Enqueue(ctx, txn, decision)
	if err != nil {
		return Outcome{}, err
	}

	env := events.NewEnvelope(contracts.TypeDecisionQueued, requestcontext.Now(ctx))
	env.OrganizationID = txn.OrganizationID.String()
	env.TransactionID = txn.ID.String()
	env.ItemID = item.ID.String()
	env.Reason = string(decision.Reason)
	env.Priority = string(decision.Priority)
	env.RiskScore = txn.RiskScore
	env.FraudConfidence = txn.FraudConfidence
	env.ConfigVersion = decision.ConfigVersion
	s.emitter.Emit(env)

	s.metrics.DecisionMade("queued", string(decision.Reason))
	if decision.Priority == id.PriorityCritical {
		s.metrics.CriticalItemQueued()
		s.logger.WarnContext(ctx, "transaction queued at critical priority",
			"transaction_id", txn.ID.String(),
			"item_id", item.ID.String(),
			"reason", string(decision.Reason),
			"fraud_confidence", txn.FraudConfidence,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	return Outcome{
		Reason:          decision.Reason,
		Priority:        decision.Priority,
		RiskScore:       txn.RiskScore,
		FraudConfidence: txn.FraudConfidence,
		ConfigVersion:   decision.ConfigVersion,
		Degraded:        degraded,
		Item:            item,
	}, nil
}

// TransactionHistory returns the audit trail for one transaction across its
// whole lifecycle, oldest first. Unlike the per-item queue history it also
// covers auto-approved transactions, which never had a queue item.
func (s *Service) TransactionHistory(ctx context.Context, txnID id.TransactionID) ([]audit.Entry, error) {
	return s.auditLog.HistoryByTransaction(ctx, txnID)
}

func itoa(n int) string { return strconv.Itoa(n) }

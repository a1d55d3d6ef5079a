package engine

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/platform/httputil"
	"txgate/pkg/requestcontext"
)

// Handler serves the evaluation endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/decisions/evaluate", h.handleEvaluate)
	r.Get("/decisions/{transactionID}/history", h.handleHistory)
}

// evaluateRequest is the wire form of a transaction submitted for a decision.
type evaluateRequest struct {
	TransactionID  string   `json:"transaction_id"`
	OrganizationID string   `json:"organization_id"`
	BranchID       string   `json:"branch_id"`
	Country        string   `json:"country"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	SubmitterID    string   `json:"submitter_id"`
	SubmitterRole  string   `json:"submitter_role"`
	VendorID       string   `json:"vendor_id"`
	VendorIsNew    bool     `json:"vendor_is_new"`
	MandatoryCases []string `json:"mandatory_cases"`

	txn id.TransactionContext
}

func (req *evaluateRequest) Validate() error {
	txnID, err := id.ParseTransactionID(req.TransactionID)
	if err != nil {
		return err
	}
	orgID, err := id.ParseOrganizationID(req.OrganizationID)
	if err != nil {
		return err
	}
	var branchID id.BranchID
	if req.BranchID != "" {
		if branchID, err = id.ParseBranchID(req.BranchID); err != nil {
			return err
		}
	}
	var submitterID id.ReviewerID
	if req.SubmitterID != "" {
		if submitterID, err = id.ParseReviewerID(req.SubmitterID); err != nil {
			return err
		}
	}
	role, err := id.ParseRole(req.SubmitterRole)
	if err != nil {
		return err
	}
	cases := make([]id.CaseKind, 0, len(req.MandatoryCases))
	for _, raw := range req.MandatoryCases {
		kind, err := id.ParseCaseKind(raw)
		if err != nil {
			return err
		}
		cases = append(cases, kind)
	}
	if req.Amount < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount cannot be negative")
	}
	if req.Currency == "" {
		return dErrors.New(dErrors.CodeValidation, "currency is required")
	}

	req.txn = id.TransactionContext{
		ID:             txnID,
		OrganizationID: orgID,
		BranchID:       branchID,
		Country:        req.Country,
		Amount:         req.Amount,
		Currency:       req.Currency,
		SubmitterID:    submitterID,
		SubmitterRole:  role,
		VendorID:       req.VendorID,
		VendorIsNew:    req.VendorIsNew,
		MandatoryCases: cases,
	}
	return nil
}

// evaluateResponse is the wire form of a decision outcome. Queue fields are
// present only when the transaction was routed to review.
type evaluateResponse struct {
	AutoApproved    bool      `json:"auto_approved"`
	Reason          string    `json:"reason"`
	Priority        string    `json:"priority,omitempty"`
	RiskScore       int       `json:"risk_score"`
	FraudConfidence int       `json:"fraud_confidence"`
	ConfigVersion   int64     `json:"config_version"`
	Degraded        bool      `json:"degraded,omitempty"`
	ItemID          string    `json:"item_id,omitempty"`
	SLADeadline     time.Time `json:"sla_deadline,omitzero"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[evaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	txn := req.txn
	txn.CreatedAt = requestcontext.Now(ctx)

	outcome, err := h.service.Evaluate(ctx, txn)
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluation failed",
			"request_id", requestID,
			"transaction_id", txn.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := evaluateResponse{
		AutoApproved:    outcome.AutoApproved,
		Reason:          string(outcome.Reason),
		Priority:        string(outcome.Priority),
		RiskScore:       outcome.RiskScore,
		FraudConfidence: outcome.FraudConfidence,
		ConfigVersion:   outcome.ConfigVersion,
		Degraded:        outcome.Degraded,
	}
	if outcome.Item != nil {
		resp.ItemID = outcome.Item.ID.String()
		resp.SLADeadline = outcome.Item.SLADeadline
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// historyEntryResponse is the wire form of one audit entry in a transaction's
// trail. ItemID is empty for auto-approved transactions.
type historyEntryResponse struct {
	ItemID       string            `json:"item_id,omitempty"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	Timestamp    time.Time         `json:"timestamp"`
	BeforeStatus string            `json:"before_status,omitempty"`
	AfterStatus  string            `json:"after_status"`
	Details      map[string]string `json:"details,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txnID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.TransactionHistory(ctx, txnID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := historyEntryResponse{
			Action:       string(e.Action),
			ActorID:      e.ActorID,
			Timestamp:    e.Timestamp,
			BeforeStatus: string(e.BeforeStatus),
			AfterStatus:  string(e.AfterStatus),
			Details:      e.Details,
		}
		if !e.ItemID.IsZero() {
			resp.ItemID = e.ItemID.String()
		}
		out = append(out, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

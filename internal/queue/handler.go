package queue

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/platform/httputil"
	"txgate/pkg/requestcontext"
)

// Handler serves the review queue endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the reviewer-facing endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/queue", h.handleList)
	r.Get("/queue/{itemID}", h.handleGet)
	r.Get("/queue/{itemID}/history", h.handleHistory)
	r.Post("/queue/{itemID}/assign", h.handleAssign)
	r.Post("/queue/{itemID}/approve", h.handleApprove)
	r.Post("/queue/{itemID}/reject", h.handleReject)
	r.Post("/queue/{itemID}/escalate", h.handleEscalate)
}

// RegisterAdmin mounts rollback and the org-wide audit feed. The caller
// wraps the group with the admin middleware; the service checks again.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/queue/{itemID}/rollback", h.handleRollback)
	r.Get("/audit/recent", h.handleRecentAudit)
}

// itemResponse is the wire form of a queue item.
type itemResponse struct {
	ID             string    `json:"id"`
	TransactionID  string    `json:"transaction_id"`
	OrganizationID string    `json:"organization_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	SubmitterID    string    `json:"submitter_id"`
	SubmitterRole  string    `json:"submitter_role"`
	RiskScore      int       `json:"risk_score"`
	FraudConf      int       `json:"fraud_confidence"`
	Reason         string    `json:"reason"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	MatchedCases   []string  `json:"matched_cases,omitempty"`
	ConfigVersion  int64     `json:"config_version"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	ReviewedBy     string    `json:"reviewed_by,omitempty"`
	ReviewerNote   string    `json:"reviewer_note,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	SLADeadline    time.Time `json:"sla_deadline"`
	DecidedAt      time.Time `json:"decided_at,omitzero"`
	Overdue        bool      `json:"overdue"`
}

func toItemResponse(item *Item, now time.Time) itemResponse {
	resp := itemResponse{
		ID:             item.ID.String(),
		TransactionID:  item.Transaction.ID.String(),
		OrganizationID: item.Transaction.OrganizationID.String(),
		Amount:         item.Transaction.Amount,
		Currency:       item.Transaction.Currency,
		SubmitterID:    item.Transaction.SubmitterID.String(),
		SubmitterRole:  string(item.Transaction.SubmitterRole),
		RiskScore:      item.Transaction.RiskScore,
		FraudConf:      item.Transaction.FraudConfidence,
		Reason:         string(item.Reason),
		Priority:       string(item.Priority),
		Status:         string(item.Status),
		ConfigVersion:  item.ConfigVersion,
		ReviewerNote:   item.ReviewerNote,
		Version:        item.Version,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		SLADeadline:    item.SLADeadline,
		DecidedAt:      item.DecidedAt,
		Overdue:        item.Overdue(now),
	}
	for _, kind := range item.MatchedCases {
		resp.MatchedCases = append(resp.MatchedCases, string(kind))
	}
	if !item.AssignedTo.IsZero() {
		resp.AssignedTo = item.AssignedTo.String()
	}
	if !item.ReviewedBy.IsZero() {
		resp.ReviewedBy = item.ReviewedBy.String()
	}
	return resp
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	items, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list queue",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := requestcontext.Now(ctx)
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item, now))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func filterFromQuery(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter

	if raw := q.Get("organization_id"); raw != "" {
		orgID, err := id.ParseOrganizationID(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.OrganizationID = orgID
	}
	if raw := q.Get("status"); raw != "" {
		status, err := id.ParseStatus(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.Status = status
	}
	if raw := q.Get("priority"); raw != "" {
		priority, err := id.ParsePriority(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.Priority = priority
	}
	if raw := q.Get("assigned_to"); raw != "" {
		reviewerID, err := id.ParseReviewerID(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.AssignedTo = reviewerID
	}
	filter.OverdueOnly = q.Get("overdue") == "true"
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return ListFilter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return ListFilter{}, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func itemIDFromPath(r *http.Request) (id.ItemID, error) {
	return id.ParseItemID(chi.URLParam(r, "itemID"))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	item, err := h.service.Get(ctx, itemID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toItemResponse(item, requestcontext.Now(ctx)))
}

// auditEntryResponse is the wire form of one entry in the org-wide audit
// feed, where the item and transaction are not implied by the path.
type auditEntryResponse struct {
	ItemID        string            `json:"item_id,omitempty"`
	TransactionID string            `json:"transaction_id"`
	Action        string            `json:"action"`
	ActorID       string            `json:"actor_id"`
	Timestamp     time.Time         `json:"timestamp"`
	BeforeStatus  string            `json:"before_status,omitempty"`
	AfterStatus   string            `json:"after_status"`
	Details       map[string]string `json:"details,omitempty"`
}

// defaultRecentAuditLimit caps the audit feed when no limit is given.
const defaultRecentAuditLimit = 50

func (h *Handler) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	orgID, err := id.ParseOrganizationID(q.Get("organization_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultRecentAuditLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
	}

	entries, err := h.service.RecentAudit(ctx, orgID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := auditEntryResponse{
			TransactionID: e.TransactionID.String(),
			Action:        string(e.Action),
			ActorID:       e.ActorID,
			Timestamp:     e.Timestamp,
			BeforeStatus:  string(e.BeforeStatus),
			AfterStatus:   string(e.AfterStatus),
			Details:       e.Details,
		}
		if !e.ItemID.IsZero() {
			resp.ItemID = e.ItemID.String()
		}
		out = append(out, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// historyEntryResponse is the wire form of one audit entry.
type historyEntryResponse struct {
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	Timestamp    time.Time         `json:"timestamp"`
	BeforeStatus string            `json:"before_status,omitempty"`
	AfterStatus  string            `json:"after_status"`
	Details      map[string]string `json:"details,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.History(ctx, itemID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			Action:       string(e.Action),
			ActorID:      e.ActorID,
			Timestamp:    e.Timestamp,
			BeforeStatus: string(e.BeforeStatus),
			AfterStatus:  string(e.AfterStatus),
			Details:      e.Details,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

// assignRequest claims an item. With ReviewerID set the assignment is
// explicit; with Candidates set the service picks the least-loaded one.
type assignRequest struct {
	ReviewerID string   `json:"reviewer_id"`
	Candidates []string `json:"candidates"`
	Version    int64    `json:"version"`

	reviewerID id.ReviewerID
	candidates []id.ReviewerID
}

func (req *assignRequest) Validate() error {
	if req.ReviewerID == "" && len(req.Candidates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "reviewer_id or candidates is required")
	}
	if req.ReviewerID != "" && len(req.Candidates) > 0 {
		return dErrors.New(dErrors.CodeValidation, "reviewer_id and candidates are mutually exclusive")
	}
	if req.Version < 0 {
		return dErrors.New(dErrors.CodeValidation, "version must be non-negative")
	}
	if req.ReviewerID != "" {
		reviewerID, err := id.ParseReviewerID(req.ReviewerID)
		if err != nil {
			return err
		}
		req.reviewerID = reviewerID
		return nil
	}
	for _, raw := range req.Candidates {
		reviewerID, err := id.ParseReviewerID(raw)
		if err != nil {
			return err
		}
		req.candidates = append(req.candidates, reviewerID)
	}
	return nil
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[assignRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	var item *Item
	if len(req.candidates) > 0 {
		item, err = h.service.AssignAuto(ctx, itemID, req.candidates, req.Version)
	} else {
		item, err = h.service.Assign(ctx, itemID, req.reviewerID, req.Version)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toItemResponse(item, requestcontext.Now(ctx)))
}

// reviewRequest carries a decision, escalation, or rollback.
type reviewRequest struct {
	Note    string `json:"note"`
	Version int64  `json:"version"`
}

func (req *reviewRequest) Validate() error {
	if req.Version < 0 {
		return dErrors.New(dErrors.CodeValidation, "version must be non-negative")
	}
	return nil
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.service.Reject)
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.service.Escalate)
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.service.Rollback)
}

func (h *Handler) handleReview(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, itemID id.ItemID, note string, expectedVersion int64) (*Item, error),
) {
	ctx := r.Context()
	itemID, err := itemIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[reviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	item, err := op(ctx, itemID, req.Note, req.Version)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toItemResponse(item, requestcontext.Now(ctx)))
}

package stats

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "txgate/pkg/domain"
	"txgate/pkg/platform/httputil"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/stats", h.handleRollup)
}

type rollupResponse struct {
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	ByReason   map[string]int `json:"by_reason"`

	Decided              int       `json:"decided"`
	ApprovalRate         float64   `json:"approval_rate"`
	AvgTimeToDecisionSec float64   `json:"avg_time_to_decision_seconds"`
	Overdue              int       `json:"overdue"`
	GeneratedAt          time.Time `json:"generated_at"`
}

func (h *Handler) handleRollup(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrganizationID(r.URL.Query().Get("organization_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rollup, err := h.service.Rollup(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := rollupResponse{
		ByStatus:             make(map[string]int, len(rollup.ByStatus)),
		ByPriority:           make(map[string]int, len(rollup.ByPriority)),
		ByReason:             make(map[string]int, len(rollup.ByReason)),
		Decided:              rollup.Decided,
		ApprovalRate:         rollup.ApprovalRate,
		AvgTimeToDecisionSec: rollup.AvgTimeToDecision.Seconds(),
		Overdue:              rollup.Overdue,
		GeneratedAt:          rollup.GeneratedAt,
	}
	for status, n := range rollup.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	for priority, n := range rollup.ByPriority {
		resp.ByPriority[string(priority)] = n
	}
	for reason, n := range rollup.ByReason {
		resp.ByReason[string(reason)] = n
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

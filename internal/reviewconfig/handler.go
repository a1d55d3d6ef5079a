package reviewconfig

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

// Handler serves config endpoints. Reads need authentication only; mutations
// are registered separately so the router can gate them behind admin.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/config", h.handleGet)
	r.Get("/config/resolve", h.handleResolve)
	r.Get("/config/list", h.handleList)
}

// RegisterAdmin mounts the mutating endpoints. The caller wraps the group
// with the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/config", h.handleApply)
	r.Post("/config/toggle", h.handleToggle)
}

// configResponse is the wire form of a config snapshot.
type configResponse struct {
	OrganizationID string               `json:"organization_id"`
	BranchID       string               `json:"branch_id,omitempty"`
	Country        string               `json:"country,omitempty"`
	Version        int64                `json:"version"`
	Enabled        bool                 `json:"enabled"`
	Thresholds     Thresholds           `json:"thresholds"`
	RoleRules      map[id.Role]RoleRule `json:"role_rules"`
	MandatoryCases []string             `json:"mandatory_cases"`
	LastModifiedBy string               `json:"last_modified_by,omitempty"`
	LastModifiedAt time.Time            `json:"last_modified_at"`
}

func toConfigResponse(cfg *ReviewConfig) configResponse {
	resp := configResponse{
		OrganizationID: cfg.Scope.OrganizationID.String(),
		Country:        cfg.Scope.Country,
		Version:        cfg.Version,
		Enabled:        cfg.AutoProcessingEnabled,
		Thresholds:     cfg.Thresholds,
		RoleRules:      cfg.RoleRules,
		MandatoryCases: make([]string, 0, len(cfg.MandatoryCases)),
		LastModifiedAt: cfg.LastModifiedAt,
	}
	if !cfg.Scope.BranchID.IsZero() {
		resp.BranchID = cfg.Scope.BranchID.String()
	}
	if !cfg.LastModifiedBy.IsZero() {
		resp.LastModifiedBy = cfg.LastModifiedBy.String()
	}
	for kind := range cfg.MandatoryCases {
		resp.MandatoryCases = append(resp.MandatoryCases, string(kind))
	}
	return resp
}

func scopeFromQuery(r *http.Request) (Scope, error) {
	orgID, err := id.ParseOrganizationID(r.URL.Query().Get("organization_id"))
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{OrganizationID: orgID, Country: r.URL.Query().Get("country")}
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		branchID, err := id.ParseBranchID(raw)
		if err != nil {
			return Scope{}, err
		}
		scope.BranchID = branchID
	}
	return scope, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cfg, err := h.service.Get(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigResponse(cfg))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cfg, err := h.service.Resolve(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigResponse(cfg))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrganizationID(r.URL.Query().Get("organization_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	configs, err := h.service.List(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]configResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, toConfigResponse(cfg))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"configs": out})
}

// applyRequest carries a partial config update. Scope fields identify the
// config; nil update fields are left unchanged.
type applyRequest struct {
	OrganizationID string               `json:"organization_id"`
	BranchID       string               `json:"branch_id"`
	Country        string               `json:"country"`
	Enabled        *bool                `json:"enabled"`
	Thresholds     *Thresholds          `json:"thresholds"`
	RoleRules      map[id.Role]RoleRule `json:"role_rules"`
	MandatoryCases []string             `json:"mandatory_cases"`

	scope Scope
}

func (req *applyRequest) Validate() error {
	orgID, err := id.ParseOrganizationID(req.OrganizationID)
	if err != nil {
		return err
	}
	req.scope = Scope{OrganizationID: orgID, Country: req.Country}
	if req.BranchID != "" {
		branchID, err := id.ParseBranchID(req.BranchID)
		if err != nil {
			return err
		}
		req.scope.BranchID = branchID
	}
	if req.Thresholds != nil {
		if req.Thresholds.Amount < 0 || req.Thresholds.RiskScore < 0 || req.Thresholds.FraudConfidence < 0 {
			return dErrors.New(dErrors.CodeValidation, "thresholds must be non-negative")
		}
		if req.Thresholds.RiskScore > 100 || req.Thresholds.FraudConfidence > 100 {
			return dErrors.New(dErrors.CodeValidation, "score thresholds must be at most 100")
		}
	}
	for role := range req.RoleRules {
		if role == "" {
			return dErrors.New(dErrors.CodeValidation, "role name must not be empty")
		}
	}
	return nil
}

func (req *applyRequest) toUpdate() Update {
	upd := Update{
		Enabled:    req.Enabled,
		Thresholds: req.Thresholds,
		RoleRules:  req.RoleRules,
	}
	if req.MandatoryCases != nil {
		upd.MandatoryCases = make([]id.CaseKind, 0, len(req.MandatoryCases))
		for _, kind := range req.MandatoryCases {
			upd.MandatoryCases = append(upd.MandatoryCases, id.CaseKind(kind))
		}
	}
	return upd
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[applyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cfg, err := h.service.Apply(ctx, req.scope, req.toUpdate())
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "failed to apply review config",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigResponse(cfg))
}

type toggleRequest struct {
	OrganizationID string `json:"organization_id"`
	BranchID       string `json:"branch_id"`
	Country        string `json:"country"`
	Enabled        bool   `json:"enabled"`

	scope Scope
}

func (req *toggleRequest) Validate() error {
	orgID, err := id.ParseOrganizationID(req.OrganizationID)
	if err != nil {
		return err
	}
	req.scope = Scope{OrganizationID: orgID, Country: req.Country}
	if req.BranchID != "" {
		branchID, err := id.ParseBranchID(req.BranchID)
		if err != nil {
			return err
		}
		req.scope.BranchID = branchID
	}
	return nil
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[toggleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cfg, err := h.service.SetEnabled(ctx, req.scope, req.Enabled)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigResponse(cfg))
}

// Package handler exposes passports over HTTP. Write endpoints require an
// organisation-scoped bearer token; read endpoints are public for records
// past draft.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tracehub/internal/domain"
	pmetrics "tracehub/internal/platform/metrics"
	"tracehub/internal/platform/middleware"
	"tracehub/internal/passport/service"
	"tracehub/internal/passport/store"
	dErrors "tracehub/pkg/domain-errors"
	"tracehub/pkg/platform/httputil"
)

// Service defines the interface for passport operations.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, in service.Input) (*domain.Passport, error)
	Get(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID) (*domain.Passport, error)
	List(ctx context.Context, callerOrg uuid.UUID, f store.Filter) ([]*domain.Passport, int, error)
	Update(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID, in service.Input) (*domain.Passport, error)
	UpdateStatus(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID, status domain.PassportStatus) (*domain.Passport, error)
	Verify(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID) (*service.VerificationResult, error)
}

// Handler handles passport endpoints.
type Handler struct {
	logger       *slog.Logger
	passports    Service
	metrics      *pmetrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new passport Handler.
func New(
	passports Service,
	logger *slog.Logger,
	metrics *pmetrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		passports:    passports,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the passport routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/api/v1/passports", h.handleCreate)
		r.Get("/api/v1/passports", h.handleList)
		r.Put("/api/v1/passports/{id}", h.handleUpdate)
		r.Patch("/api/v1/passports/{id}/status", h.handleUpdateStatus)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(h.jwtValidator))
		r.Get("/api/v1/passports/{id}", h.handleGet)
		r.Get("/api/v1/passports/{id}/verify", h.handleVerify)
	})

	r.Mount("/", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerOrg(w, ctx)
	if !ok {
		return
	}

	var in service.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.passports.Create(ctx, orgID, in)
	if err != nil {
		h.writeServiceError(ctx, w, "create passport", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid passport id"))
		return
	}

	p, err := h.passports.Get(ctx, orgFromContext(ctx), id)
	if err != nil {
		h.writeServiceError(ctx, w, "get passport", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerOrg(w, ctx)
	if !ok {
		return
	}

	f := store.Filter{CategoryL1: r.URL.Query().Get("category")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.PassportStatus(raw)
		if !domain.ValidStatus(status) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status "+raw))
			return
		}
		f.Status = &status
	}
	f.Limit = intQuery(r, "limit", 0)
	f.Offset = intQuery(r, "offset", 0)

	page, total, err := h.passports.List(ctx, orgID, f)
	if err != nil {
		h.writeServiceError(ctx, w, "list passports", err)
		return
	}

	items := make([]passportResponse, 0, len(page))
	for _, p := range page {
		items = append(items, toResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerOrg(w, ctx)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid passport id"))
		return
	}

	var in service.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.passports.Update(ctx, orgID, id, in)
	if err != nil {
		h.writeServiceError(ctx, w, "update passport", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerOrg(w, ctx)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid passport id"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.passports.UpdateStatus(ctx, orgID, id, domain.PassportStatus(req.Status))
	if err != nil {
		h.writeServiceError(ctx, w, "update passport status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid passport id"))
		return
	}

	res, err := h.passports.Verify(ctx, orgFromContext(ctx), id)
	if err != nil {
		h.writeServiceError(ctx, w, "verify passport", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// callerOrg extracts the authenticated organisation. RequireAuth guarantees
// presence; a miss here is a wiring bug.
func (h *Handler) callerOrg(w http.ResponseWriter, ctx context.Context) (uuid.UUID, bool) {
	orgID := orgFromContext(ctx)
	if orgID == uuid.Nil {
		h.logger.ErrorContext(ctx, "organisation missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return uuid.Nil, false
	}
	return orgID, true
}

func orgFromContext(ctx context.Context) uuid.UUID {
	raw := middleware.GetOrgID(ctx)
	if raw == "" {
		return uuid.Nil
	}
	orgID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return orgID
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "passport operation failed",
			"op", op,
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

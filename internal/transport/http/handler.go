// Package http exposes the public API surface: registration, analytics,
// health and the operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"erthid/internal/analytics"
	"erthid/internal/chain"
	"erthid/internal/platform/metrics"
	"erthid/internal/platform/middleware"
	"erthid/internal/registration"
	dErrors "erthid/pkg/domain-errors"
	"erthid/pkg/httputil"
)

// Service runs the registration pipeline for one request.
type Service interface {
	Register(ctx context.Context, req registration.Request) (*registration.Result, error)
}

// Handler wires the API endpoints to the registration service and the
// analytics store.
type Handler struct {
	service   Service
	analytics analytics.Store
	logger    *slog.Logger
}

func New(service Service, store analytics.Store, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		analytics: store,
		logger:    logger,
	}
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/register", h.HandleRegister)
	r.Get("/api/analytics", h.HandleAnalytics)
}

// RegisterAdmin mounts the admin endpoints. The caller decides which
// auth middleware guards them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/api/admin/snapshot", h.HandleSnapshot)
}

type registerRequest struct {
	Address    string `json:"address"`
	IDImage    string `json:"idImage"`
	ReferredBy string `json:"referredBy"`
}

type registerResponse struct {
	Success  bool                  `json:"success"`
	Hash     string                `json:"hash"`
	Response chain.BroadcastResult `json:"response"`
}

// HandleRegister handles POST /api/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Missing required fields"))
		return
	}

	result, err := h.service.Register(ctx, registration.Request{
		Address:    req.Address,
		IDImage:    req.IDImage,
		ReferredBy: req.ReferredBy,
	})
	if err != nil {
		h.writeRegisterError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "registration succeeded",
		"request_id", requestID,
		"address", req.Address,
		"tx_hash", result.Response.TxHash,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, registerResponse{
		Success:  true,
		Hash:     result.Hash,
		Response: result.Response,
	})
}

func (h *Handler) writeRegisterError(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	var verr *registration.VerificationError
	if errors.As(err, &verr) {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Identity verification failed",
			"is_fake": verr.IsFake,
			"reason":  verr.Reason,
		})
		return
	}

	var cerr *registration.ChainRejectionError
	if errors.As(err, &cerr) {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "Contract interaction failed",
			"response": cerr.Response,
		})
		return
	}

	if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

type analyticsResponse struct {
	Latest  analytics.Snapshot   `json:"latest"`
	History []analytics.Snapshot `json:"history"`
}

// HandleAnalytics handles GET /api/analytics requests.
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, err := h.analytics.Latest(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "read analytics", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load analytics"))
		return
	}
	history, err := h.analytics.History(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "read analytics history", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load analytics"))
		return
	}
	if history == nil {
		history = []analytics.Snapshot{}
	}

	httputil.WriteJSON(w, http.StatusOK, analyticsResponse{Latest: latest, History: history})
}

// HandleSnapshot handles POST /api/admin/snapshot requests, forcing a
// snapshot outside the scheduler cadence.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.analytics.TakeSnapshot(ctx); err != nil {
		h.logger.ErrorContext(ctx, "manual snapshot", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Snapshot failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthChecker reports readiness of an upstream dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HandleHealth reports readiness including upstream chain reachability.
func HandleHealth(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		overall := "ok"
		chainStatus := "ok"
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := checker.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				overall = "degraded"
				chainStatus = "unreachable"
			}
		}
		httputil.WriteJSON(w, status, map[string]string{
			"status": overall,
			"chain":  chainStatus,
		})
	}
}

// RouterConfig carries the cross-cutting settings the router needs.
type RouterConfig struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	AdminJWTSecret string
}

// NewRouter assembles the middleware chain and mounts all endpoints. Admin
// routes are mounted only when an admin secret is configured.
func NewRouter(h *Handler, checker HealthChecker, logger *slog.Logger, m *metrics.Metrics, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Device)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.MaxBody(cfg.MaxBodyBytes))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if m != nil {
		r.Use(middleware.Latency(m))
	}

	h.Register(r)
	r.Get("/healthz", HandleHealth(checker))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if cfg.AdminJWTSecret != "" {
		r.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin([]byte(cfg.AdminJWTSecret), logger))
			h.RegisterAdmin(admin)
		})
	}

	return r
}

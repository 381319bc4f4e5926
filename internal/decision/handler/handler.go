package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"keygate/internal/decision"
	"keygate/internal/platform/metrics"
	"keygate/internal/platform/middleware"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/httputil"
	"keygate/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/decision_mocks.go -package=mocks Service

// Service defines the interface for decision operations.
type Service interface {
	Decide(ctx context.Context, req decision.Request) error
	Check(ctx context.Context, req decision.Request) (bool, error)
}

// Handler exposes the custodian-facing decision endpoints.
type Handler struct {
	logger       *slog.Logger
	decisions    Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new decision Handler.
func New(decisions Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		decisions:    decisions,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the decision routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(decisionRouter chi.Router) {
		decisionRouter.Use(middleware.Recovery(h.logger))
		decisionRouter.Use(middleware.RequestID)
		decisionRouter.Use(middleware.Logger(h.logger))
		decisionRouter.Use(middleware.Timeout(10 * time.Second))
		decisionRouter.Use(middleware.ContentTypeJSON)
		decisionRouter.Use(middleware.LatencyMiddleware(h.metrics))
		decisionRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		decisionRouter.Post("/v1/decide", h.handleDecide)
		decisionRouter.Post("/v1/decide/check", h.handleCheck)
	})
}

func (h *Handler) parseRequest(r *http.Request) (decision.Request, error) {
	var body decideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return decision.Request{}, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}

	contentID, err := decision.DecodeKeyID(body.KeyID)
	if err != nil {
		return decision.Request{}, err
	}
	owner, err := id.ParsePrincipal(body.Owner)
	if err != nil {
		return decision.Request{}, err
	}
	requester, err := id.ParsePrincipal(body.Requester)
	if err != nil {
		return decision.Request{}, err
	}

	return decision.Request{
		ContentID: contentID,
		Owner:     owner,
		Requester: requester,
		Now:       requestcontext.Now(r.Context()),
	}, nil
}

// handleDecide is the abort-style surface: 204 releases the key, any error
// status denies.
func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.parseRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid decide request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if err := h.decisions.Decide(ctx, req); err != nil {
		h.logger.InfoContext(ctx, "key release denied",
			"request_id", middleware.GetRequestID(ctx),
			"content_id", req.ContentID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCheck is the boolean surface for read-only queries.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.parseRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	allowed, err := h.decisions.Check(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "decision check failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "decision check failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

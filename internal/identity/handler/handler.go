package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"keygate/internal/identity"
	"keygate/internal/platform/metrics"
	"keygate/internal/platform/middleware"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/httputil"
	"keygate/pkg/requestcontext"
)

// Service defines the interface for identity operations.
type Service interface {
	CreateRootIdentity(ctx context.Context, caller id.Principal, now time.Time) (identity.RootIdentity, error)
	DeriveSubIdentity(ctx context.Context, rootID string, appID id.AppID) ([]byte, error)
	RegisterSubIdentity(ctx context.Context, rootID string, appID id.AppID, caller id.Principal, now time.Time) (identity.SubIdentity, error)
	GetRoot(ctx context.Context, rootID string) (identity.RootIdentity, error)
}

// Handler handles root and sub-identity endpoints.
type Handler struct {
	logger       *slog.Logger
	identities   Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new identity Handler.
func New(identities Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		identities:   identities,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(identityRouter chi.Router) {
		identityRouter.Use(middleware.Recovery(h.logger))
		identityRouter.Use(middleware.RequestID)
		identityRouter.Use(middleware.Logger(h.logger))
		identityRouter.Use(middleware.Timeout(30 * time.Second))
		identityRouter.Use(middleware.ContentTypeJSON)
		identityRouter.Use(middleware.LatencyMiddleware(h.metrics))
		identityRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		identityRouter.Post("/v1/identities", h.handleCreateRoot)
		identityRouter.Get("/v1/identities/{rootID}", h.handleGetRoot)
		identityRouter.Post("/v1/identities/{rootID}/subidentities", h.handleRegisterSub)
		identityRouter.Post("/v1/identities/{rootID}/derive", h.handleDerive)
	})
}

func (h *Handler) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	root, err := h.identities.CreateRootIdentity(ctx, caller, requestcontext.Now(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "create root identity failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, rootResponse(root))
}

func (h *Handler) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.identities.GetRoot(r.Context(), chi.URLParam(r, "rootID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rootResponse(root))
}

func (h *Handler) handleRegisterSub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req registerSubIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sub, err := h.identities.RegisterSubIdentity(ctx, chi.URLParam(r, "rootID"),
		id.AppID(req.AppID), caller, requestcontext.Now(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "register sub-identity failed",
			"request_id", middleware.GetRequestID(ctx),
			"code", string(dErrors.CodeOf(err)),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, subIdentityResponse{
		RootID:         sub.RootID,
		AppID:          sub.AppID.String(),
		ContextID:      hex.EncodeToString(sub.ContextID),
		PermissionTags: sub.PermissionTags,
		CreatedAt:      sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleDerive(w http.ResponseWriter, r *http.Request) {
	var req deriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contextID, err := h.identities.DeriveSubIdentity(r.Context(), chi.URLParam(r, "rootID"), id.AppID(req.AppID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, deriveResponse{ContextID: hex.EncodeToString(contextID)})
}

func rootResponse(root identity.RootIdentity) rootIdentityResponse {
	return rootIdentityResponse{
		ID:        root.ID,
		Owner:     root.Owner.String(),
		Version:   root.Version,
		CreatedAt: root.CreatedAt.UTC().Format(time.RFC3339),
	}
}

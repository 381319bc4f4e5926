package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"keygate/internal/platform/metrics"
	"keygate/internal/platform/middleware"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/httputil"
	"keygate/pkg/requestcontext"
)

// Service defines the interface for access registry operations.
type Service interface {
	RegisterContent(ctx context.Context, contentID id.ContentID, caller id.Principal, now time.Time) error
	RegisterContentV2(ctx context.Context, contentID id.ContentID, subAddr id.Principal, caller id.Principal, now time.Time) error
	RegisterContext(ctx context.Context, contextID id.ContextID, appID id.AppID, caller id.Principal, now time.Time) error
	RegisterSubIdentityInfo(ctx context.Context, addr id.Principal, derivationIndex uint64, appHint id.AppID, caller id.Principal, now time.Time) error
	GrantAccess(ctx context.Context, contentID id.ContentID, recipient id.Principal, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error
	RevokeAccess(ctx context.Context, contentID id.ContentID, recipient id.Principal, caller id.Principal) error
	GrantCrossContextAccess(ctx context.Context, contextID id.ContextID, appID id.AppID, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error
	GrantWalletAllowlistAccess(ctx context.Context, requester, target id.Principal, scope id.Scope, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error
	RevokeWalletAllowlistAccess(ctx context.Context, requester, target id.Principal, scope id.Scope, caller id.Principal) error
	CleanupExpiredPermission(ctx context.Context, contentID id.ContentID, grantee id.Principal, now time.Time) error
}

// Handler handles registration, grant, and revoke endpoints.
type Handler struct {
	logger       *slog.Logger
	registry     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new registry Handler.
func New(registry Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		registry:     registry,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the registry routes with the chi router. Cleanup is
// registered outside the auth chain: it is permissionless by design.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(registryRouter chi.Router) {
		registryRouter.Use(middleware.Recovery(h.logger))
		registryRouter.Use(middleware.RequestID)
		registryRouter.Use(middleware.Logger(h.logger))
		registryRouter.Use(middleware.Timeout(30 * time.Second))
		registryRouter.Use(middleware.ContentTypeJSON)
		registryRouter.Use(middleware.LatencyMiddleware(h.metrics))

		registryRouter.Group(func(authed chi.Router) {
			authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			authed.Post("/v1/contents", h.handleRegisterContent)
			authed.Post("/v1/contexts", h.handleRegisterContext)
			authed.Post("/v1/subidentities/info", h.handleRegisterSubIdentityInfo)
			authed.Post("/v1/contents/{contentID}/grants", h.handleGrantAccess)
			authed.Delete("/v1/contents/{contentID}/grants/{recipient}", h.handleRevokeAccess)
			authed.Post("/v1/contexts/{contextID}/grants", h.handleGrantCrossContext)
			authed.Post("/v1/allowlist", h.handleGrantAllowlist)
			authed.Delete("/v1/allowlist", h.handleRevokeAllowlist)
		})

		registryRouter.Post("/v1/cleanup", h.handleCleanup)
	})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Principal, bool) {
	caller := middleware.GetCaller(r.Context())
	if caller.IsZero() {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) handleRegisterContent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req registerContentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contentID, err := id.ParseContentID(req.ContentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	now := requestcontext.Now(r.Context())
	if req.SubIdentityAddr != "" {
		subAddr, err := id.ParsePrincipal(req.SubIdentityAddr)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		err = h.registry.RegisterContentV2(r.Context(), contentID, subAddr, caller, now)
		h.respond(w, r, err, "register content v2")
		return
	}

	err = h.registry.RegisterContent(r.Context(), contentID, caller, now)
	h.respond(w, r, err, "register content")
}

func (h *Handler) handleRegisterContext(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req registerContextRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.registry.RegisterContext(r.Context(),
		id.ContextID(req.ContextID), id.AppID(req.AppID),
		caller, requestcontext.Now(r.Context()))
	h.respond(w, r, err, "register context")
}

func (h *Handler) handleRegisterSubIdentityInfo(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req registerSubIdentityInfoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	addr, err := id.ParsePrincipal(req.Addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.RegisterSubIdentityInfo(r.Context(), addr,
		req.DerivationIndex, id.AppID(req.AppHint),
		caller, requestcontext.Now(r.Context()))
	h.respond(w, r, err, "register sub-identity info")
}

func (h *Handler) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req grantAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contentID, err := id.ParseContentID(chi.URLParam(r, "contentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recipient, err := id.ParsePrincipal(req.Recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	level, err := id.ParseAccessLevel(req.Level)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.GrantAccess(r.Context(), contentID, recipient, level,
		time.Unix(req.ExpiresAt, 0).UTC(), caller, requestcontext.Now(r.Context()))
	h.respond(w, r, err, "grant access")
}

func (h *Handler) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	contentID, err := id.ParseContentID(chi.URLParam(r, "contentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recipient, err := id.ParsePrincipal(chi.URLParam(r, "recipient"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.RevokeAccess(r.Context(), contentID, recipient, caller)
	h.respond(w, r, err, "revoke access")
}

func (h *Handler) handleGrantCrossContext(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req grantCrossContextRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contextID, err := id.ParseContextID(chi.URLParam(r, "contextID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	level, err := id.ParseAccessLevel(req.Level)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.GrantCrossContextAccess(r.Context(), contextID,
		id.AppID(req.AppID), level, time.Unix(req.ExpiresAt, 0).UTC(),
		caller, requestcontext.Now(r.Context()))
	h.respond(w, r, err, "grant cross-context access")
}

func (h *Handler) handleGrantAllowlist(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req allowlistRequest
	if !decodeBody(w, r, &req) {
		return
	}

	requester, err := id.ParsePrincipal(req.Requester)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParsePrincipal(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	level, err := id.ParseAccessLevel(req.Level)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.GrantWalletAllowlistAccess(r.Context(), requester, target,
		id.Scope(req.Scope), level, time.Unix(req.ExpiresAt, 0).UTC(),
		caller, requestcontext.Now(r.Context()))
	h.respond(w, r, err, "grant allowlist access")
}

func (h *Handler) handleRevokeAllowlist(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req allowlistRequest
	if !decodeBody(w, r, &req) {
		return
	}

	requester, err := id.ParsePrincipal(req.Requester)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParsePrincipal(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.RevokeWalletAllowlistAccess(r.Context(), requester, target,
		id.Scope(req.Scope), caller)
	h.respond(w, r, err, "revoke allowlist access")
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contentID, err := id.ParseContentID(req.ContentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grantee, err := id.ParsePrincipal(req.Grantee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.registry.CleanupExpiredPermission(r.Context(), contentID, grantee,
		requestcontext.Now(r.Context()))
	h.respond(w, r, err, "cleanup expired permission")
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error, op string) {
	if err != nil {
		h.logger.WarnContext(r.Context(), op+" failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"code", string(dErrors.CodeOf(err)),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"keygate/internal/audit"
	"keygate/internal/identity"
	"keygate/internal/platform/middleware"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/testutil"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	caller, err := id.ParsePrincipal(token)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{Caller: caller}, nil
}

type IdentityHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	publisher := audit.NewPublisher([]audit.Store{audit.NewInMemoryStore()})
	service := identity.NewService(
		identity.NewInMemoryRootStore(),
		identity.NewInMemorySubIdentityStore(),
		publisher,
		slog.Default(),
	)
	s.router = chi.NewRouter()
	New(service, slog.Default(), nil, stubValidator{}).Register(s.router)
}

func (s *IdentityHandlerSuite) do(method, path, caller string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+caller)
	return req
}

func (s *IdentityHandlerSuite) createRoot(caller string) *rootIdentityResponse {
	rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities", caller, nil))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[rootIdentityResponse](s.T(), rr)
}

func (s *IdentityHandlerSuite) TestCreateAndFetchRoot() {
	root := s.createRoot("alice")
	s.Equal("alice", root.Owner)
	s.NotEmpty(root.ID)

	rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/v1/identities/"+root.ID, "alice", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	fetched := testutil.UnmarshalResponse[rootIdentityResponse](s.T(), rr)
	s.Equal(root.ID, fetched.ID)

	s.Run("unknown root is not found", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/v1/identities/missing", "alice", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeRootIdentityNotFound))
	})
}

func (s *IdentityHandlerSuite) TestRegisterSubIdentity() {
	root := s.createRoot("alice")

	s.Run("derive matches the registered context id", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities/"+root.ID+"/derive", "alice",
			map[string]string{"app_id": "social"}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		derived := testutil.UnmarshalResponse[deriveResponse](s.T(), rr)

		rr = testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities/"+root.ID+"/subidentities", "alice",
			map[string]string{"app_id": "social"}))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		registered := testutil.UnmarshalResponse[subIdentityResponse](s.T(), rr)

		s.Equal(derived.ContextID, registered.ContextID)
		s.Equal([]string{"read:own", "write:own"}, registered.PermissionTags)
	})

	s.Run("non-owner cannot register", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities/"+root.ID+"/subidentities", "mallory",
			map[string]string{"app_id": "storage"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeNotOwner))
	})

	s.Run("duplicate app registration conflicts", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities/"+root.ID+"/subidentities", "alice",
			map[string]string{"app_id": "social"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeSubIdentityAlreadyExists))
	})

	s.Run("empty app id is rejected", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/v1/identities/"+root.ID+"/subidentities", "alice",
			map[string]string{"app_id": ""}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidAppID))
	})
}

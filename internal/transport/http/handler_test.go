package http_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"erthid/internal/analytics"
	"erthid/internal/chain"
	"erthid/internal/identity"
	"erthid/internal/platform/logger"
	"erthid/internal/registration"
	transporthttp "erthid/internal/transport/http"
	"erthid/internal/verification"
	"erthid/pkg/testutil"
)

type stubVerifier struct {
	verdict verification.Verdict
}

func (v *stubVerifier) Verify(_ context.Context, _ string) verification.Verdict {
	return v.verdict
}

type stubRegistrar struct {
	result chain.BroadcastResult
	err    error
}

func (r *stubRegistrar) Execute(_ context.Context, _ chain.RegisterMsg) (chain.BroadcastResult, error) {
	return r.result, r.err
}

type stubHealth struct{ err error }

func (h *stubHealth) Health(_ context.Context) error { return h.err }

const adminSecret = "test-admin-secret"

type HandlerSuite struct {
	suite.Suite
	store     *analytics.FileStore
	verifier  *stubVerifier
	registrar *stubRegistrar
	router    chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	log := logger.New("development")

	store, err := analytics.NewFileStore(filepath.Join(s.T().TempDir(), "analytics.json"), log)
	s.Require().NoError(err)
	s.store = store

	s.verifier = &stubVerifier{verdict: passingVerdict()}
	s.registrar = &stubRegistrar{result: chain.BroadcastResult{Code: 0, TxHash: "TXOK"}}

	service := registration.NewService(s.verifier, s.registrar, store, registration.WithLogger(log))
	handler := transporthttp.New(service, store, log)
	s.router = transporthttp.NewRouter(handler, &stubHealth{}, log, nil, transporthttp.RouterConfig{
		AllowedOrigins: []string{"https://erth.network"},
		MaxBodyBytes:   50 << 20,
		RequestTimeout: 30 * time.Second,
		AdminJWTSecret: adminSecret,
	})
}

func passingVerdict() verification.Verdict {
	country := "USA"
	idNumber := "D12345678"
	name := "Jane Smith"
	dob := int64(639878400)
	exp := int64(1925000000)
	return verification.Verdict{
		Success: true,
		Identity: &identity.Record{
			Country:            &country,
			IDNumber:           &idNumber,
			FullName:           &name,
			DateOfBirth:        &dob,
			DocumentExpiration: &exp,
		},
	}
}

func (s *HandlerSuite) registerBody() map[string]string {
	return map[string]string{
		"address": "secret1user",
		"idImage": "aGVsbG8=",
	}
}

func (s *HandlerSuite) TestRegisterSuccess() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "success", true)
	testutil.AssertJSONContains(s.T(), rr, "hash", identity.Hash(passingVerdict().Identity))

	body := testutil.UnmarshalResponse[struct {
		Response chain.BroadcastResult `json:"response"`
	}](s.T(), rr)
	s.Equal("TXOK", body.Response.TxHash)
	s.Equal(uint32(0), body.Response.Code)
}

func (s *HandlerSuite) TestRegisterMissingFields() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", map[string]string{
		"idImage": "aGVsbG8=",
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertJSONContains(s.T(), rr, "error", "Missing required fields")
}

func (s *HandlerSuite) TestRegisterMalformedJSON() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/register", "{not json")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertJSONContains(s.T(), rr, "error", "Missing required fields")
}

func (s *HandlerSuite) TestRegisterRejectedDocument() {
	reason := "Hologram missing"
	s.verifier.verdict = verification.Verdict{
		Success:    false,
		Identity:   identity.Empty(),
		IsFake:     true,
		FakeReason: &reason,
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertJSONContains(s.T(), rr, "error", "Identity verification failed")
	testutil.AssertJSONContains(s.T(), rr, "is_fake", true)
	testutil.AssertJSONContains(s.T(), rr, "reason", "Hologram missing")
}

func (s *HandlerSuite) TestRegisterOnChainRejection() {
	s.registrar.result = chain.BroadcastResult{Code: 7, TxHash: "TXBAD", RawLog: "duplicate id_hash"}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertJSONContains(s.T(), rr, "error", "Contract interaction failed")

	body := testutil.UnmarshalResponse[struct {
		Response chain.BroadcastResult `json:"response"`
	}](s.T(), rr)
	s.Equal(uint32(7), body.Response.Code)
	s.Equal("duplicate id_hash", body.Response.RawLog)
}

func (s *HandlerSuite) TestRegisterBroadcastFailure() {
	s.registrar.result = chain.BroadcastResult{}
	s.registrar.err = context.DeadlineExceeded

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	testutil.AssertJSONContains(s.T(), rr, "error", "Registration failed")
}

func (s *HandlerSuite) TestAnalyticsReflectsTraffic() {
	// One success, one rejection.
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	testutil.DoRequest(s.router, req)

	reason := "Not a document"
	s.verifier.verdict = verification.Verdict{
		Success:    false,
		Identity:   identity.Empty(),
		IsFake:     true,
		FakeReason: &reason,
	}
	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", s.registerBody())
	testutil.DoRequest(s.router, req)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/analytics"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	body := testutil.UnmarshalResponse[struct {
		Latest  analytics.Snapshot   `json:"latest"`
		History []analytics.Snapshot `json:"history"`
	}](s.T(), rr)
	s.Equal(int64(1), body.Latest.Registrations)
	s.Equal(int64(1), body.Latest.Verifications)
	s.Equal(int64(1), body.Latest.Rejections)
	s.NotNil(body.History)
	s.Empty(body.History, "no snapshots taken yet")
}

func (s *HandlerSuite) TestHealthz() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	testutil.AssertJSONContains(s.T(), rr, "chain", "ok")
}

func (s *HandlerSuite) TestHealthzDegradedWhenChainUnreachable() {
	log := logger.New("development")
	service := registration.NewService(s.verifier, s.registrar, s.store, registration.WithLogger(log))
	handler := transporthttp.New(service, s.store, log)
	router := transporthttp.NewRouter(handler, &stubHealth{err: context.DeadlineExceeded}, log, nil, transporthttp.RouterConfig{
		AllowedOrigins: []string{"https://erth.network"},
		MaxBodyBytes:   50 << 20,
		RequestTimeout: 30 * time.Second,
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(s.T(), rr, "chain", "unreachable")
}

func (s *HandlerSuite) TestRegisterRequiresJSONContentType() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/register", `{"address":"a"}`)
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnsupportedMediaType)
}

func (s *HandlerSuite) TestCORSAllowedOrigin() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/analytics")
	req.Header.Set("Origin", "https://erth.network")
	rr := testutil.DoRequest(s.router, req)

	s.Equal("https://erth.network", rr.Header().Get("Access-Control-Allow-Origin"))
}

func (s *HandlerSuite) TestCORSUnknownOriginNotEchoed() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/analytics")
	req.Header.Set("Origin", "https://evil.example")
	rr := testutil.DoRequest(s.router, req)

	s.Empty(rr.Header().Get("Access-Control-Allow-Origin"))
}

func (s *HandlerSuite) adminToken(role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	s.Require().NoError(err)
	return signed
}

func (s *HandlerSuite) TestAdminSnapshotRequiresToken() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/api/admin/snapshot")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestAdminSnapshotRejectsNonAdminRole() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/api/admin/snapshot")
	req.Header.Set("Authorization", "Bearer "+s.adminToken("viewer"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestAdminSnapshotAppendsHistory() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/api/admin/snapshot")
	req.Header.Set("Authorization", "Bearer "+s.adminToken("admin"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	history, err := s.store.History(context.Background())
	s.Require().NoError(err)
	s.Len(history, 1)
}

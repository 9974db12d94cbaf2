package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/api/http/handlers"
	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/observability"
	"github.com/tasi-app/auth-service/internal/service"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

type mockCredentials struct {
	LoginFunc func(ctx context.Context, in service.LoginInput, meta domain.ClientMeta) (*domain.Session, error)
}

func (m *mockCredentials) Login(ctx context.Context, in service.LoginInput, meta domain.ClientMeta) (*domain.Session, error) {
	return m.LoginFunc(ctx, in, meta)
}

type mockOTP struct {
	IssueFunc  func(ctx context.Context, phone string) (*domain.OTPIssue, error)
	VerifyFunc func(ctx context.Context, phone, code string, meta domain.ClientMeta) (*domain.Session, error)
}

func (m *mockOTP) Issue(ctx context.Context, phone string) (*domain.OTPIssue, error) {
	return m.IssueFunc(ctx, phone)
}

func (m *mockOTP) Verify(ctx context.Context, phone, code string, meta domain.ClientMeta) (*domain.Session, error) {
	return m.VerifyFunc(ctx, phone, code, meta)
}

type mockAccounts struct {
	CreateFunc    func(ctx context.Context, in service.CreateAccountInput) (*domain.Identity, error)
	GetFunc       func(ctx context.Context, partition domain.Partition, id string) (*domain.Identity, error)
	SetStatusFunc func(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) (*domain.Identity, error)
	SetRolesFunc  func(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) (*domain.Identity, error)
}

func (m *mockAccounts) Create(ctx context.Context, in service.CreateAccountInput) (*domain.Identity, error) {
	return m.CreateFunc(ctx, in)
}

func (m *mockAccounts) Get(ctx context.Context, partition domain.Partition, id string) (*domain.Identity, error) {
	return m.GetFunc(ctx, partition, id)
}

func (m *mockAccounts) SetStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) (*domain.Identity, error) {
	return m.SetStatusFunc(ctx, partition, id, status)
}

func (m *mockAccounts) SetRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) (*domain.Identity, error) {
	return m.SetRolesFunc(ctx, partition, id, roles)
}

type testServer struct {
	app         *fiber.App
	tokens      *auth.TokenManager
	credentials *mockCredentials
	otp         *mockOTP
	accounts    *mockAccounts
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("secret", "tasi-auth", time.Hour)
	pf := auth.DefaultPolicyFile()
	checker, err := auth.NewPolicyChecker(pf.Policies)
	require.NoError(t, err)

	s := &testServer{
		tokens:      tokens,
		credentials: &mockCredentials{},
		otp:         &mockOTP{},
		accounts:    &mockAccounts{},
	}
	s.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(s.app, logger, metrics, 5*time.Second)
	RegisterRoutes(s.app, RouteConfig{
		Health:  handlers.NewHealthHandler("tasi-auth", "test", metrics),
		Auth:    handlers.NewAuthHandler(s.credentials, s.otp, handlers.CookieSettings{Name: "token"}),
		Admin:   handlers.NewAdminHandler(s.accounts),
		Carrier: handlers.NewCarrierHandler(s.accounts),
		Gate:    auth.NewSessionGate(pf.Gate, tokens, checker, "token", logger),
	})
	return s
}

func (s *testServer) token(t *testing.T, partition domain.Partition, roles ...domain.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(&domain.Identity{ID: "acc-1", Email: "a@tasi.test", Partition: partition, Roles: roles})
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, bearer string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func sessionFor(id string) *domain.Session {
	return &domain.Session{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		Identity:  &domain.Identity{ID: id, Email: "test@example.com", Roles: []domain.Role{domain.RoleCustomer}},
	}
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.credentials.LoginFunc = func(_ context.Context, in service.LoginInput, meta domain.ClientMeta) (*domain.Session, error) {
		if in.Password != "right-pass" {
			return nil, apperrors.NewInvalidCredential()
		}
		assert.Equal(t, domain.PartitionCustomer, in.Partition)
		return sessionFor("acc-1"), nil
	}

	resp, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"partition": "customer", "email": "test@example.com", "password": "right-pass",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "token=signed.jwt.token")
	assert.Contains(t, strings.ToLower(resp.Header.Get("Set-Cookie")), "httponly")
	assert.NotEmpty(t, resp.Header.Get(observability.RequestIDHeader))

	var data struct {
		Token   string         `json:"token"`
		Account map[string]any `json:"account"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "signed.jwt.token", data.Token)
	assert.Equal(t, "acc-1", data.Account["id"])
	assert.NotContains(t, data.Account, "password_hash")

	resp, env = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"partition": "customer", "email": "test@example.com", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeInvalidCredential, env.Error.Code)
}

func TestLoginEndpointStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not eligible", apperrors.NewAccountNotEligible("account application was rejected", "REJECTED"), http.StatusForbidden, apperrors.CodeAccountNotEligible},
		{"dependency", apperrors.NewDependencyError(errors.New("mongo: no reachable servers")), http.StatusInternalServerError, apperrors.CodeDependency},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.credentials.LoginFunc = func(context.Context, service.LoginInput, domain.ClientMeta) (*domain.Session, error) {
				return nil, tt.err
			}
			resp, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
				"partition": "company", "email": "ops@carrier.test", "password": "x",
			}, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "mongo")
		})
	}
}

func TestLoginEndpointValidation(t *testing.T) {
	s := newTestServer(t)
	resp, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"partition": "staff"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Details, "partition")
	assert.Contains(t, env.Error.Details, "email")
}

func TestOTPEndpoints(t *testing.T) {
	s := newTestServer(t)
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	calls := 0
	s.otp.IssueFunc = func(_ context.Context, phone string) (*domain.OTPIssue, error) {
		calls++
		if calls > 1 {
			return nil, apperrors.NewRateLimited("wait", 42)
		}
		return &domain.OTPIssue{Phone: phone, ExpiresAt: expires}, nil
	}
	s.otp.VerifyFunc = func(_ context.Context, phone, code string, _ domain.ClientMeta) (*domain.Session, error) {
		if code != "123456" {
			return nil, apperrors.NewInvalidOrExpired()
		}
		return sessionFor("acc-phone"), nil
	}

	resp, env := s.do(t, http.MethodPost, "/api/auth/otp/request", map[string]string{"phone": "+905551234567"}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var issued map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Equal(t, "+905551234567", issued["phone"])
	assert.NotContains(t, issued, "code")

	resp, env = s.do(t, http.MethodPost, "/api/auth/otp/request", map[string]string{"phone": "+905551234567"}, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "42", resp.Header.Get("Retry-After"))
	assert.Equal(t, apperrors.CodeRateLimited, env.Error.Code)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/otp/verify", map[string]string{"phone": "+905551234567", "code": "123456"}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "token=")

	resp, env = s.do(t, http.MethodPost, "/api/auth/otp/verify", map[string]string{"phone": "+905551234567", "code": "654321"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInvalidOrExpired, env.Error.Code)

	resp, env = s.do(t, http.MethodPost, "/api/auth/otp/verify", map[string]string{"phone": "+905551234567", "code": "12"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
}

func TestMeAndLogout(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)

	resp, env = s.do(t, http.MethodGet, "/api/auth/me", nil, s.token(t, domain.PartitionCustomer, domain.RoleCustomer))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "acc-1", me["account_id"])
	assert.Equal(t, "customer", me["partition"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "token=;")
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.accounts.CreateFunc = func(_ context.Context, in service.CreateAccountInput) (*domain.Identity, error) {
		return &domain.Identity{ID: "new-1", Email: in.Email, Partition: in.Partition, Roles: in.Roles, Status: domain.AccountStatusPending}, nil
	}
	s.accounts.SetStatusFunc = func(_ context.Context, p domain.Partition, id string, status domain.AccountStatus) (*domain.Identity, error) {
		return &domain.Identity{ID: id, Partition: p, Status: status}, nil
	}
	s.accounts.SetRolesFunc = func(_ context.Context, p domain.Partition, id string, roles []domain.Role) (*domain.Identity, error) {
		return &domain.Identity{ID: id, Partition: p, Roles: roles}, nil
	}
	s.accounts.GetFunc = func(_ context.Context, p domain.Partition, id string) (*domain.Identity, error) {
		return nil, apperrors.NewNotFound("account", nil)
	}
	admin := s.token(t, domain.PartitionUser, domain.RoleAdmin)
	carrier := s.token(t, domain.PartitionCompany, domain.RoleCarrier)

	createBody := map[string]any{
		"partition": "company", "email": "ops@carrier.test", "password": "long-enough",
		"name": "Carrier", "roles": []string{"carrier"}, "company_name": "Taşı Lojistik",
	}
	resp, env := s.do(t, http.MethodPost, "/api/admin/accounts", createBody, admin)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	resp, _ = s.do(t, http.MethodPost, "/api/admin/accounts", createBody, carrier)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/admin/accounts", createBody, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = s.do(t, http.MethodPatch, "/api/admin/accounts/company/abc/status", map[string]string{"status": "ACTIVE"}, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "ACTIVE", updated["status"])

	resp, _ = s.do(t, http.MethodPatch, "/api/admin/accounts/company/abc/status", map[string]string{"status": "DELETED"}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/admin/accounts/company/abc/roles", map[string]any{"roles": []string{"carrier", "driver"}}, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodGet, "/api/admin/accounts/company/missing", nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestCarrierProfile(t *testing.T) {
	s := newTestServer(t)
	s.accounts.GetFunc = func(_ context.Context, p domain.Partition, id string) (*domain.Identity, error) {
		assert.Equal(t, domain.PartitionCompany, p)
		return &domain.Identity{ID: id, Partition: p, Profile: &domain.Profile{CompanyName: "Taşı Lojistik"}}, nil
	}

	resp, _ := s.do(t, http.MethodGet, "/api/carrier/profile", nil, s.token(t, domain.PartitionCompany, domain.RoleDriver))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/carrier/profile", nil, s.token(t, domain.PartitionCustomer, domain.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoutingErrors(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodGet, "/api/auth/login", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, apperrors.CodeMethodNotAllowed, env.Error.Code)

	resp, env = s.do(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestPanicRecovered(t *testing.T) {
	s := newTestServer(t)
	s.credentials.LoginFunc = func(context.Context, service.LoginInput, domain.ClientMeta) (*domain.Session, error) {
		panic("unexpected nil")
	}
	resp, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"partition": "user", "email": "admin@tasi.app", "password": "x",
	}, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInternal, env.Error.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/health/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

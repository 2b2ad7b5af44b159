package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradechamp/tradechamp-server/internal/api"
	"github.com/tradechamp/tradechamp-server/internal/handler"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/token"
	service "github.com/tradechamp/tradechamp-server/internal/services"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// stubService cans the service layer so the tests exercise only the
// HTTP boundary: routing, CORS gating and error rendering.
type stubService struct {
	registerErr error
	loginResult service.LoginResult
	loginErr    error
	balance     int64
	balanceErr  error
}

func (s *stubService) Register(_ context.Context, input service.RegisterInput) (bool, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return false, apperrors.InvalidInput("username, email and userPassword are required")
	}
	if s.registerErr != nil {
		return false, s.registerErr
	}
	return true, nil
}

func (s *stubService) Login(_ context.Context, username, password string) (service.LoginResult, error) {
	if s.loginErr != nil {
		return service.LoginResult{}, s.loginErr
	}
	return s.loginResult, nil
}

func (s *stubService) Balance(context.Context, int64) (int64, error) {
	return s.balance, s.balanceErr
}

func (s *stubService) Deposit(_ context.Context, _ int64, amount int64) (int64, error) {
	return s.balance + amount, nil
}

func (s *stubService) Withdraw(_ context.Context, _ int64, amount int64) (int64, error) {
	return s.balance - amount, nil
}

func (s *stubService) ToggleStatus(context.Context, int64) (string, error) {
	return "online", nil
}

func (s *stubService) Export(context.Context, int64, string) error { return nil }

const testSecret = "test-secret"

func newTestServer(t *testing.T, svc service.UserService, production bool) *httptest.Server {
	t.Helper()
	router := api.SetupRouter(api.Options{
		Handler:        handler.NewHandler(svc, production),
		RedisClient:    nil,
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
		Production:     production,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCORSGating(t *testing.T) {
	srv := newTestServer(t, &stubService{}, false)

	t.Run("disallowed origin rejected with 403 envelope carrying origin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/register", strings.NewReader(`{}`))
		req.Header.Set("Origin", "http://evil.test")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "http://evil.test", body["origin"])
	})

	t.Run("allowed origin passes and is echoed", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/register",
			strings.NewReader(`{"username":"alice","email":"a@x.com","userPassword":"secret123"}`))
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("request without origin passes", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/register", "application/json",
			strings.NewReader(`{"username":"alice","email":"a@x.com","userPassword":"secret123"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("preflight answered", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/register", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestRegisterEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubService{}, false)

	t.Run("success", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/register", "application/json",
			strings.NewReader(`{"username":"alice","email":"a@x.com","userPassword":"secret123"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, true, body["message"])
	})

	t.Run("missing field renders 400 envelope", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/register", "application/json",
			strings.NewReader(`{"username":"alice"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, "error", body["status"])
		assert.Nil(t, body["origin"])
		assert.NotNil(t, body["stack"], "stack rendered outside production")
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("match returns token", func(t *testing.T) {
		srv := newTestServer(t, &stubService{
			loginResult: service.LoginResult{Match: true, UserID: 7, Token: "jwt-token"},
		}, false)

		resp, err := http.Post(srv.URL+"/login", "application/json",
			strings.NewReader(`{"username":"alice","userPassword":"secret123"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, true, body["message"])
		assert.Equal(t, "jwt-token", body["token"])
	})

	t.Run("non-match is 200 with message false", func(t *testing.T) {
		srv := newTestServer(t, &stubService{loginResult: service.LoginResult{Match: false}}, false)

		resp, err := http.Post(srv.URL+"/login", "application/json",
			strings.NewReader(`{"username":"alice","userPassword":"wrong"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, false, body["message"])
	})

	t.Run("unknown user propagates 404 envelope", func(t *testing.T) {
		srv := newTestServer(t, &stubService{
			loginErr: apperrors.User("user \"ghost\" not found", http.StatusNotFound),
		}, true)

		resp, err := http.Post(srv.URL+"/login", "application/json",
			strings.NewReader(`{"username":"ghost","userPassword":"x"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, "error", body["status"])
		assert.Nil(t, body["stack"], "stack suppressed in production")
	})
}

func TestProtectedRoutes(t *testing.T) {
	srv := newTestServer(t, &stubService{balance: 500}, false)

	t.Run("rejects missing token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/balance")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("serves balance with valid token", func(t *testing.T) {
		jwt, err := token.Generate(7, testSecret, time.Hour)
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/balance", nil)
		req.Header.Set("Authorization", "Bearer "+jwt)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeEnvelope(t, resp)
		assert.Equal(t, float64(500), body["balance"])
	})

	t.Run("rejects tampered token", func(t *testing.T) {
		jwt, err := token.Generate(7, "other-secret", time.Hour)
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/balance", nil)
		req.Header.Set("Authorization", "Bearer "+jwt)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

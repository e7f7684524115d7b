package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultguard/vaultguard/internal/config"
	"github.com/vaultguard/vaultguard/internal/identity"
	"github.com/vaultguard/vaultguard/internal/models"
	"github.com/vaultguard/vaultguard/internal/vault"
)

type testEnv struct {
	server   *Server
	provider *identity.LocalProvider
	mailer   *identity.RecordingMailer
	store    *vault.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mailer := &identity.RecordingMailer{}
	provider := identity.NewLocalProvider(identity.NewMemoryUserStore(), mailer, nil)
	store := vault.NewMemoryStore()

	server := NewServer(
		config.ServerConfig{Host: "127.0.0.1", HTTPPort: 0},
		config.APIConfig{RateLimit: config.RateLimitConfig{RequestsPerMinute: 10000, Burst: 10000}},
		store,
		provider,
	)
	return &testEnv{server: server, provider: provider, mailer: mailer, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.server.Router().ServeHTTP(recorder, req)
	return recorder
}

// signUpAndSignIn provisions a verified account and returns its token.
func (e *testEnv) signUpAndSignIn(t *testing.T, email, password string) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = e.do(t, http.MethodGet, "/auth/verify?token="+e.mailer.LastVerificationToken(), "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = e.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var auth identity.Authenticated
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "healthy")
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestServer_AuthFlow(t *testing.T) {
	env := newTestEnv(t)

	t.Run("signup then signin before verification is forbidden", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@b.com", "password": "secret1"})
		require.Equal(t, http.StatusCreated, resp.Code)

		resp = env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@b.com", "password": "secret1"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("verify then signin succeeds", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/auth/verify?token="+env.mailer.LastVerificationToken(), "", nil)
		require.Equal(t, http.StatusOK, resp.Code)

		resp = env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@b.com", "password": "secret1"})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@b.com", "password": "secret1"})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("weak password is a bad request", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "weak@b.com", "password": "123"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@b.com", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("missing body fields are a bad request", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@b.com"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestServer_SessionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUpAndSignIn(t, "session@b.com", "secret1")

	t.Run("session echo", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/auth/session", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var session models.Session
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
		assert.Equal(t, "session@b.com", session.Email)
		assert.True(t, session.EmailVerified)
	})

	t.Run("profile update", func(t *testing.T) {
		resp := env.do(t, http.MethodPatch, "/auth/profile", token, map[string]string{"display_name": "Ada"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "Ada")
	})

	t.Run("signout then session is unauthorized", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/signout", token, nil)
		require.Equal(t, http.StatusNoContent, resp.Code)

		resp = env.do(t, http.MethodGet, "/auth/session", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestServer_VaultAuthz(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/vault/records", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/vault/records", "not-a-session", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestServer_VaultCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUpAndSignIn(t, "vault@b.com", "secret1")

	var created models.CredentialRecord

	t.Run("create", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/vault/records", token, map[string]string{
			"title":    "GitHub",
			"username": "octocat",
			"password": "s3cret",
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, models.DefaultCategory, created.Category)
	})

	t.Run("create without title is a bad request", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/vault/records", token, map[string]string{"password": "pw"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("list", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/vault/records", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var records []models.CredentialRecord
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, created.ID, records[0].ID)
	})

	t.Run("get", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/vault/records/"+created.ID, token, nil)
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("get missing is not found", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/vault/records/missing", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("update", func(t *testing.T) {
		resp := env.do(t, http.MethodPatch, "/vault/records/"+created.ID, token, map[string]string{"title": "GitHub Work"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "GitHub Work")
	})

	t.Run("toggle favorite", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/vault/records/"+created.ID+"/favorite", token, map[string]bool{"current": false})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"favorite": true}`, resp.Body.String())
	})

	t.Run("records are owner scoped", func(t *testing.T) {
		other := env.signUpAndSignIn(t, "other@b.com", "secret1")
		resp := env.do(t, http.MethodGet, "/vault/records/"+created.ID, other, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/vault/records/"+created.ID, token, nil)
		assert.Equal(t, http.StatusNoContent, resp.Code)

		resp = env.do(t, http.MethodDelete, "/vault/records/"+created.ID, token, nil)
		assert.Equal(t, http.StatusNoContent, resp.Code)

		resp = env.do(t, http.MethodGet, "/vault/records/"+created.ID, token, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestServer_Tools(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUpAndSignIn(t, "tools@b.com", "secret1")

	t.Run("generate with defaults", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/tools/generate", token, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var result struct {
			Password string `json:"password"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		assert.Len(t, result.Password, 16)
	})

	t.Run("generate with no classes enabled", func(t *testing.T) {
		no := false
		resp := env.do(t, http.MethodPost, "/tools/generate", token, map[string]interface{}{
			"length": 10, "lowercase": no, "uppercase": no, "digits": no, "symbols": no,
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("strength", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/tools/strength", token, map[string]string{"candidate": "password"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "Very Weak")
	})

	t.Run("tools require a session", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/tools/strength", "", map[string]string{"candidate": "x"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestServer_OAuthUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/auth/oauth", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestServer_RateLimit(t *testing.T) {
	mailer := &identity.RecordingMailer{}
	provider := identity.NewLocalProvider(identity.NewMemoryUserStore(), mailer, nil)
	server := NewServer(
		config.ServerConfig{Host: "127.0.0.1", HTTPPort: 0},
		config.APIConfig{RateLimit: config.RateLimitConfig{RequestsPerMinute: 60, Burst: 3}},
		vault.NewMemoryStore(),
		provider,
	)

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		recorder := httptest.NewRecorder()
		server.Router().ServeHTTP(recorder, req)
		if recorder.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst of 3 must reject within 5 requests")
}

func TestServer_Shutdown(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, env.server.Shutdown(ctx))
}

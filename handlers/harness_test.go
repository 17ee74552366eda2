package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/profiles"
	"github.com/sitework/sitework/internal/server"
	"github.com/sitework/sitework/internal/tokens"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const testPassword = "Sup3rSecret"

var userSeq atomic.Int64

type env struct {
	t   *testing.T
	cfg *config.Config
	svc *server.Services
	r   *gin.Engine
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{Secret: "test-secret", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour}
	cfg.MinIO.Bucket = "uploads"
	cfg.Cleanup.OlderThan = time.Hour
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

func newEnv(t *testing.T, opts ...func(*server.Options)) *env {
	t.Helper()
	cfg := testConfig()
	svc, err := server.Build(context.Background(), cfg, server.Backends{})
	require.NoError(t, err)
	o := server.Options{Version: "test"}
	for _, fn := range opts {
		fn(&o)
	}
	return &env{t: t, cfg: cfg, svc: svc, r: server.New(cfg, svc, o)}
}

// user registers a profile with role and returns it with a signed access token.
func (e *env) user(role string) (*models.Profile, string) {
	e.t.Helper()
	p, err := e.svc.Profiles.Register(context.Background(), profiles.RegisterInput{
		Email:    fmt.Sprintf("%s%d@example.com", role, userSeq.Add(1)),
		Password: testPassword,
		FullName: role,
		Role:     role,
	})
	require.NoError(e.t, err)
	tok, _, err := tokens.GenerateAccessToken(e.cfg.JWT, p)
	require.NoError(e.t, err)
	return p, tok
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Meta json.RawMessage `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// data decodes the envelope payload of a successful response into out.
func data(t *testing.T, w *httptest.ResponseRecorder, status int, out interface{}) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.True(t, env.Success)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Code
}

// seedProject creates a client and a project and returns the project id.
func (e *env) seedProject(token string) string {
	e.t.Helper()
	var cl models.Client
	data(e.t, e.do("POST", "/api/clients", token, gin.H{"name": "Acme Homes", "companyType": "company"}), http.StatusCreated, &cl)
	var p models.Project
	data(e.t, e.do("POST", "/api/projects", token, gin.H{"code": fmt.Sprintf("P-%d", userSeq.Add(1)), "name": "Riverside", "clientId": cl.ID}), http.StatusCreated, &p)
	return p.ID
}

func jsonUnmarshal(raw json.RawMessage, out interface{}) error { return json.Unmarshal(raw, out) }

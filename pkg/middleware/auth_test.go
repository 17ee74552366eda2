package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/sessions"
	"github.com/sitework/sitework/pkg/metrics"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts exactly one token.
type fakeVerifier struct {
	token, sub string
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (Token, error) {
	if raw == f.token {
		return &fakeToken{data: map[string]interface{}{"sub": f.sub, "email": f.sub + "@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeProfiles map[string]*models.Profile

func (f fakeProfiles) ResolveProfile(_ context.Context, claims map[string]interface{}) (*models.Profile, error) {
	p, ok := f[claims["sub"].(string)]
	if !ok {
		return nil, apperr.Unauthorized("unknown user")
	}
	return p, nil
}

func do(g *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func errorCode(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.False(t, body.Success)
	return body.Error.Code
}

func TestAuthMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	g := gin.New()
	g.POST("/", AuthMiddleware(&fakeVerifier{token: "good", sub: "u1"}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, h := range []string{"", "BadHeader", "Basic abc", "Bearer ", "Bearer wrong"} {
		rw := do(g, h)
		require.Equal(t, http.StatusUnauthorized, rw.Code, h)
		require.Equal(t, "unauthorized", errorCode(t, rw))
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.POST("/", AuthMiddleware(&fakeVerifier{token: "good", sub: "u1"}), func(c *gin.Context) {
		require.Equal(t, "u1", CurrentUserID(c))
		require.Equal(t, "u1@example.com", CurrentClaims(c)["email"])
		require.Nil(t, CurrentProfile(c))
		c.Status(http.StatusNoContent)
	})
	require.Equal(t, http.StatusNoContent, do(g, "bearer good").Code)
}

func TestAuthMiddleware_ChainTriesEachVerifier(t *testing.T) {
	chain := Chain{nil, &fakeVerifier{token: "local", sub: "u1"}, &fakeVerifier{token: "oidc", sub: "kc-1"}}
	g := gin.New()
	g.POST("/", AuthMiddleware(chain), func(c *gin.Context) { c.String(http.StatusOK, CurrentUserID(c)) })

	rw := do(g, "Bearer oidc")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "kc-1", rw.Body.String())
	require.Equal(t, http.StatusUnauthorized, do(g, "Bearer nope").Code)

	_, err := Chain{}.Verify(context.Background(), "x")
	require.Error(t, err)
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	bl := sessions.NewMemoryBlacklist()
	require.NoError(t, bl.Revoke(context.Background(), "good", 5*time.Second))

	g := gin.New()
	g.POST("/", AuthMiddleware(&fakeVerifier{token: "good", sub: "u1"}, WithRevocation(bl)), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, do(g, "Bearer good").Code)
}

func TestAuthMiddleware_ResolvesProfile(t *testing.T) {
	profiles := fakeProfiles{"u1": {ID: "u1", Role: permissions.RoleFieldWorker, IsActive: true}}
	g := gin.New()
	g.POST("/", AuthMiddleware(Chain{&fakeVerifier{token: "good", sub: "u1"}, &fakeVerifier{token: "other", sub: "u2"}}, WithProfiles(profiles)),
		func(c *gin.Context) { c.String(http.StatusOK, CurrentProfile(c).Role) })

	rw := do(g, "Bearer good")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, permissions.RoleFieldWorker, rw.Body.String())
	require.Equal(t, http.StatusUnauthorized, do(g, "Bearer other").Code)
}

func TestRequirePermission(t *testing.T) {
	profiles := fakeProfiles{
		"worker":  {ID: "worker", Role: permissions.RoleFieldWorker, IsActive: true},
		"manager": {ID: "manager", Role: permissions.RoleManagement, IsActive: true},
	}
	g := gin.New()
	auth := AuthMiddleware(Chain{&fakeVerifier{token: "w", sub: "worker"}, &fakeVerifier{token: "m", sub: "manager"}}, WithProfiles(profiles))
	reached := false
	g.POST("/", auth, RequirePermission(permissions.ClientsWrite), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusCreated)
	})

	before := testutil.ToFloat64(metrics.PermissionDenied.WithLabelValues(permissions.ClientsWrite))
	rw := do(g, "Bearer w")
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, "forbidden", errorCode(t, rw))
	require.False(t, reached)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.PermissionDenied.WithLabelValues(permissions.ClientsWrite)))

	require.Equal(t, http.StatusCreated, do(g, "Bearer m").Code)
	require.True(t, reached)

	// without authentication the gate answers 401
	bare := gin.New()
	bare.POST("/", RequirePermission(permissions.ClientsRead), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, do(bare, "").Code)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	g := gin.New()
	g.Use(Metrics())
	g.GET("/clients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/clients/:id", "GET", "200"))
	g.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clients/42", nil))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/clients/:id", "GET", "200")))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	g := gin.New()
	g.Use(CORS([]string{"https://app.example.com"}))
	g.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, "https://app.example.com", rw.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusForbidden, rw.Code)
}

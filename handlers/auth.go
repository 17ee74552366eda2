package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/oidc"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/profiles"
	"github.com/sitework/sitework/internal/sessions"
	"github.com/sitework/sitework/internal/tokens"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

// LoginRequest supports local email/password login and the OIDC
// authorization-code exchange.
type LoginRequest struct {
	Mode        string `json:"mode" binding:"omitempty,oneof=password auth_code"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	// RefreshToken, when given, keeps the caller's current session alive.
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string          `json:"accessToken"`
	AccessExpiresAt  time.Time       `json:"accessExpiresAt"`
	RefreshToken     string          `json:"refreshToken"`
	RefreshExpiresAt time.Time       `json:"refreshExpiresAt"`
	User             *models.Profile `json:"user"`
}

// CodeExchanger trades an authorization code for provider tokens.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oidc.TokenResponse, error)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	jwt       config.JWTConfig
	profiles  *profiles.Service
	sessions  *sessions.Service
	blacklist sessions.Blacklist
	exchanger CodeExchanger
	idTokens  middleware.Verifier
}

func NewAuthHandler(jwt config.JWTConfig, p *profiles.Service, s *sessions.Service, bl sessions.Blacklist) *AuthHandler {
	return &AuthHandler{jwt: jwt, profiles: p, sessions: s, blacklist: bl}
}

// WithOIDC enables auth_code login against an external provider.
func (h *AuthHandler) WithOIDC(ex CodeExchanger, idTokens middleware.Verifier) *AuthHandler {
	h.exchanger = ex
	h.idTokens = idTokens
	return h
}

// Register routes under /auth. auth authenticates the caller.
func (h *AuthHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", auth, h.Logout)
	a.GET("/me", auth, h.Me)
	a.POST("/change-password", auth, h.ChangePassword)
	a.POST("/register", auth, middleware.RequirePermission(permissions.UsersCreate), h.CreateUser)
}

func client(c *gin.Context) sessions.Client {
	return sessions.Client{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	ctx := c.Request.Context()
	var (
		p   *models.Profile
		err error
	)
	if req.Mode == "auth_code" {
		p, err = h.exchange(ctx, req)
	} else {
		if req.Email == "" || req.Password == "" {
			response.Error(c, apperr.Validation("validation failed", map[string]string{"email": "is required", "password": "is required"}))
			return
		}
		p, err = h.profiles.Authenticate(ctx, req.Email, req.Password)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	pair, err := h.issue(ctx, c, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	logger.With(logger.Fields{"user": p.ID, "mode": req.Mode}).Infof("login")
	response.OK(c, pair)
}

func (h *AuthHandler) exchange(ctx context.Context, req LoginRequest) (*models.Profile, error) {
	if h.exchanger == nil || h.idTokens == nil {
		return nil, apperr.Field("mode", "external login is not configured")
	}
	if req.Code == "" || req.RedirectURI == "" {
		return nil, apperr.Validation("validation failed", map[string]string{"code": "is required", "redirectUri": "is required"})
	}
	tr, err := h.exchanger.ExchangeCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		logger.Warnf("auth-code exchange failed (redirect_uri=%q): %v", req.RedirectURI, err)
		return nil, apperr.Unauthorized("authentication failed")
	}
	tok, err := h.idTokens.Verify(ctx, tr.IDToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid id token")
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, apperr.Unauthorized("invalid id token")
	}
	return h.profiles.ResolveProfile(ctx, claims)
}

func (h *AuthHandler) issue(ctx context.Context, c *gin.Context, p *models.Profile) (*TokenPair, error) {
	sess, err := h.sessions.CreateSession(ctx, p.ID, client(c))
	if err != nil {
		return nil, apperr.Internal("create session", err)
	}
	access, exp, err := tokens.GenerateAccessToken(h.jwt, p)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}
	return &TokenPair{AccessToken: access, AccessExpiresAt: exp, RefreshToken: sess.RefreshToken, RefreshExpiresAt: sess.ExpiresAt, User: p}, nil
}

// Refresh rotates the refresh token and returns a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessions.Rotate(ctx, req.RefreshToken, client(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := h.profiles.Get(ctx, sess.UserID)
	if err != nil || !p.IsActive {
		_ = h.sessions.DeleteRefresh(ctx, sess.RefreshToken)
		response.Abort(c, apperr.KindUnauthorized, "invalid refresh token")
		return
	}
	access, exp, err := tokens.GenerateAccessToken(h.jwt, p)
	if err != nil {
		response.Error(c, apperr.Internal("sign access token", err))
		return
	}
	response.OK(c, &TokenPair{AccessToken: access, AccessExpiresAt: exp, RefreshToken: sess.RefreshToken, RefreshExpiresAt: sess.ExpiresAt, User: p})
}

// Logout revokes the presented access token until it expires and drops the
// refresh session.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	ctx := c.Request.Context()
	if raw, ok := middleware.BearerToken(c); ok && h.blacklist != nil {
		ttl := h.jwt.AccessTokenTTL
		if exp, ok := middleware.CurrentClaims(c)["exp"].(float64); ok {
			ttl = time.Until(time.Unix(int64(exp), 0))
		}
		if ttl > 0 {
			if err := h.blacklist.Revoke(ctx, raw, ttl); err != nil {
				response.Error(c, apperr.Internal("revoke access token", err))
				return
			}
		}
	}
	if err := h.sessions.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.CurrentProfile(c)
	if p == nil {
		response.Abort(c, apperr.KindUnauthorized, "authentication required")
		return
	}
	response.OK(c, gin.H{"user": p, "permissions": permissions.Of(p.Role)})
}

// ChangePassword verifies the current password, stores the new one and ends
// the caller's other sessions.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	ctx := c.Request.Context()
	id := middleware.CurrentUserID(c)
	if err := h.profiles.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	revoked, err := h.sessions.RevokeOthers(ctx, id, req.RefreshToken)
	if err != nil {
		logger.Warnf("revoke sessions for %s after password change: %v", id, err)
	}
	response.OK(c, gin.H{"message": "password changed", "revokedSessions": revoked})
}

// CreateUser creates a local account.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req profiles.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}
	p, err := h.profiles.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/response"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey  = "claims"
	ProfileKey = "profile"
	UserKey    = "user"
	TokenKey   = "token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (ch Chain) Verify(ctx context.Context, raw string) (Token, error) {
	err := errors.New("no token verifier configured")
	for _, v := range ch {
		if v == nil {
			continue
		}
		var tok Token
		if tok, err = v.Verify(ctx, raw); err == nil {
			return tok, nil
		}
	}
	return nil, err
}

// RevocationChecker reports whether an access token has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// ProfileResolver maps verified claims to the caller's profile.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, claims map[string]interface{}) (*models.Profile, error)
}

type authOptions struct {
	revoked  RevocationChecker
	profiles ProfileResolver
}

type AuthOption func(*authOptions)

// WithRevocation rejects tokens the checker reports as revoked.
func WithRevocation(r RevocationChecker) AuthOption {
	return func(o *authOptions) { o.revoked = r }
}

// WithProfiles loads the caller's profile into the context.
func WithProfiles(p ProfileResolver) AuthOption {
	return func(o *authOptions) { o.profiles = p }
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	scheme, tok, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, fn := range opts {
		fn(&o)
	}
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Abort(c, apperr.KindUnauthorized, "missing Authorization header")
			return
		}
		token, ok := BearerToken(c)
		if !ok {
			response.Abort(c, apperr.KindUnauthorized, "invalid Authorization header")
			return
		}
		ctx := c.Request.Context()

		if o.revoked != nil {
			revoked, err := o.revoked.IsRevoked(ctx, token)
			if err != nil {
				logger.Warnf("blacklist lookup failed: %v", err)
			}
			if revoked {
				response.Abort(c, apperr.KindUnauthorized, "token has been revoked")
				return
			}
		}

		verified, err := ver.Verify(ctx, token)
		if err != nil {
			logger.Debugf("token verification failed: %v", err)
			response.Abort(c, apperr.KindUnauthorized, "invalid token")
			return
		}
		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			response.Abort(c, apperr.KindUnauthorized, "failed to parse claims")
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		if sub, _ := claims["sub"].(string); sub != "" {
			c.Set(UserKey, sub)
		}

		if o.profiles != nil {
			p, err := o.profiles.ResolveProfile(ctx, claims)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					response.Error(c, err)
					return
				}
				response.Abort(c, apperr.KindUnauthorized, "unknown or inactive user")
				return
			}
			c.Set(ProfileKey, p)
			c.Set(UserKey, p.ID)
		}
		c.Next()
	}
}

// CurrentProfile returns the profile stored by AuthMiddleware, or nil.
func CurrentProfile(c *gin.Context) *models.Profile {
	if v, ok := c.Get(ProfileKey); ok {
		if p, ok := v.(*models.Profile); ok {
			return p
		}
	}
	return nil
}

// CurrentUserID returns the authenticated subject, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserKey)
}

// CurrentClaims returns the verified token claims, or nil.
func CurrentClaims(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(ClaimsKey); ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

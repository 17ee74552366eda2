// Package tokens issues and verifies the service's own HS256 access tokens.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/pkg/middleware"
)

// Issuer marks tokens minted by this service.
const Issuer = "sitework"

// GenerateAccessToken creates a signed JWT access token for the profile and
// returns it with its expiry.
func GenerateAccessToken(cfg config.JWTConfig, p *models.Profile) (string, time.Time, error) {
	if cfg.Secret == "" {
		return "", time.Time{}, ErrNoSecret
	}
	now := time.Now()
	exp := now.Add(cfg.AccessTokenTTL)
	claims := jwt.MapClaims{
		"jti":   uuid.NewString(),
		"iss":   Issuer,
		"sub":   p.ID,
		"email": p.Email,
		"name":  p.FullName,
		"role":  p.Role,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ErrNoSecret is returned for every token when the verifier has no key.
var ErrNoSecret = errors.New("jwt secret not configured")

// Verifier checks tokens issued by GenerateAccessToken. A verifier built with
// an empty secret rejects everything.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}

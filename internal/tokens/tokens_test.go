package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/models"
	"github.com/stretchr/testify/require"
)

func testCfg(secret string, ttl time.Duration) config.JWTConfig {
	return config.JWTConfig{Secret: secret, AccessTokenTTL: ttl}
}

var profile = &models.Profile{ID: "user-123", Email: "pm@example.com", FullName: "Pat", Role: "project_manager"}

func TestGenerateAndVerify(t *testing.T) {
	cfg := testCfg("test-secret-32-bytes-should-be-long-enough", 2*time.Minute)
	tok, exp, err := GenerateAccessToken(cfg, profile)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(2*time.Minute), exp, 5*time.Second)

	verified, err := NewVerifier(cfg.Secret).Verify(context.Background(), tok)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, verified.Claims(&claims))
	require.Equal(t, "user-123", claims["sub"])
	require.Equal(t, "project_manager", claims["role"])
	require.Equal(t, Issuer, claims["iss"])
}

func TestGenerateWithoutSecretFails(t *testing.T) {
	_, _, err := GenerateAccessToken(testCfg("", time.Minute), profile)
	require.Error(t, err)
}

func TestVerifyWithoutSecretRejectsEverything(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": Issuer, "sub": "victim-profile", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = NewVerifier("").Verify(context.Background(), forged)
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestVerifyExpired(t *testing.T) {
	cfg := testCfg("another-secret-32-bytes-longgggg", -time.Second)
	tok, _, err := GenerateAccessToken(cfg, profile)
	require.NoError(t, err)
	_, err = NewVerifier(cfg.Secret).Verify(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyWrongSecretFails(t *testing.T) {
	tok, _, err := GenerateAccessToken(testCfg("secret-one-32-bytes-xxxxxxxxxxxxxxxx", time.Minute), profile)
	require.NoError(t, err)
	_, err = NewVerifier("different-secret-xxxxxxxxxxxxxxxx").Verify(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyMalformed(t *testing.T) {
	_, err := NewVerifier("x").Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

func TestVerifyAlgNoneRejected(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tok := enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(`{"sub":"u-none","iss":"sitework","exp":9999999999}`)) + "."
	_, err := NewVerifier("x").Verify(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyForeignIssuerRejected(t *testing.T) {
	secret := "issuer-secret-32-bytes-xxxxxxxxxxx"
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "someone-else", "sub": "u", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewVerifier(secret).Verify(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyTamperedPayload(t *testing.T) {
	cfg := testCfg("tamper-test-secret-32-bytes-xxxxxxx", 5*time.Minute)
	tok, _, err := GenerateAccessToken(cfg, profile)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "project_manager", "admin", 1)))

	_, err = NewVerifier(cfg.Secret).Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerifyWithoutExpiryRejected(t *testing.T) {
	secret := "no-exp-secret-32-bytes-xxxxxxxxxxxx"
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": Issuer, "sub": "u"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewVerifier(secret).Verify(context.Background(), tok)
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

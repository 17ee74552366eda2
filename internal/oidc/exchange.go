package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/pkg/logger"
)

// TokenResponse is the subset of the token endpoint response we use.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// Exchanger trades an authorization code for tokens at the realm's token endpoint.
type Exchanger struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
}

func NewExchanger(cfg config.KeycloakConfig) *Exchanger {
	return &Exchanger{
		tokenURL:     cfg.Issuer() + "/protocol/openid-connect/token",
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *Exchanger) post(ctx context.Context, body string, basic bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic && e.clientSecret != "" {
		req.SetBasicAuth(e.clientID, e.clientSecret)
	}
	return e.client.Do(req)
}

// ExchangeCode performs the authorization_code grant. The client secret is sent
// in the form first; on 401 the request is retried once with HTTP Basic
// client authentication. A "Code not valid" 400 is retried once.
func (e *Exchanger) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", e.clientID)
	form.Set("client_secret", e.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	body := form.Encode()

	logger.Debugf("oidc code exchange url=%s client_id=%s code_len=%d redirect_uri=%s", e.tokenURL, e.clientID, len(code), redirectURI)
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := e.post(ctx, body, false)
		if err == nil && resp.StatusCode == http.StatusUnauthorized {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			logger.Warnf("oidc code exchange returned 401 (%s); retrying with basic auth", strings.TrimSpace(string(b)))
			resp, err = e.post(ctx, body, true)
		}
		if err != nil {
			if attempt == 2 {
				return nil, err
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		tr, retry, err := decodeTokenResponse(resp, attempt == 1)
		if retry {
			time.Sleep(150 * time.Millisecond)
			continue
		}
		return tr, err
	}
	return nil, fmt.Errorf("token exchange failed after retries")
}

func decodeTokenResponse(resp *http.Response, canRetry bool) (*TokenResponse, bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(b), "Code not valid") && canRetry {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(b))
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, false, err
	}
	return &tr, false, nil
}

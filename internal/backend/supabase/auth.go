package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"taskboard/internal/config"
)

const (
	tokenPath  = "/auth/v1/token"
	logoutPath = "/auth/v1/logout"
)

// Auth signs users in against the project's auth endpoint.
type Auth struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// NewAuth creates an Auth. A nil httpClient means http.DefaultClient.
func NewAuth(baseURL, anonKey string, httpClient *http.Client) *Auth {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Auth{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
	}
}

// SignIn exchanges an email and password for a token.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*oauth2.Token, error) {
	return a.grant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Refresh exchanges a refresh token for a new token.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return a.grant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// SignOut revokes the session that issued accessToken.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+logoutPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return nil
}

// TokenSource returns a source that hands out token until it expires and
// then refreshes it.
func (a *Auth) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, &refresher{ctx: ctx, auth: a, refresh: token.RefreshToken})
}

func (a *Auth) grant(ctx context.Context, grantType string, body map[string]string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+tokenPath+"?grant_type="+grantType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &oauth2.RetrieveError{
			Response:         resp,
			Body:             respBody,
			ErrorDescription: errorMessage(respBody),
		}
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	token := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return token, nil
}

type refresher struct {
	ctx     context.Context
	auth    *Auth
	refresh string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	if r.refresh == "" {
		return nil, fmt.Errorf("token expired and has no refresh token")
	}
	token, err := r.auth.Refresh(r.ctx, r.refresh)
	if err != nil {
		return nil, err
	}
	// Refresh tokens are single use.
	r.refresh = token.RefreshToken
	return token, nil
}

// savingTokenSource writes each newly issued token back to token.json so the
// rotated refresh token survives the process.
type savingTokenSource struct {
	base oauth2.TokenSource
	cfg  *config.Config

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.cfg.SaveToken(token); err != nil {
			s.cfg.Logger.Warn("save refreshed token", "err", err)
		}
	}
	return token, nil
}

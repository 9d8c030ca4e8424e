// Copyright 2026 Province of British Columbia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package identity bridges to the external OIDC identity provider and
// owns the token lifecycle. It is the only component that mutates
// sessions.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/bcgov/met-gateway/internal/observability/logger"
	"github.com/bcgov/met-gateway/internal/session"
)

// Domain errors
var (
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrNoCredential  = errors.New("no refresh credential")
)

// Config holds identity provider configuration.
type Config struct {
	// BaseURL is the provider root, e.g. https://idp.example.ca/auth.
	BaseURL  string
	Realm    string
	ClientID string

	// RedirectURI is the well-known callback path registered with the
	// provider.
	RedirectURI string

	// RefreshInterval is how often the refresh loop fires while a
	// session is authenticated.
	RefreshInterval time.Duration

	// MinValidity is the remaining-token-lifetime threshold below which
	// a refresh actually requests a new token.
	MinValidity time.Duration

	SessionLifetime time.Duration
}

// AssignmentFetcher loads the engagement IDs a user is explicitly
// assigned to. Implemented against the upstream API.
type AssignmentFetcher interface {
	FetchAssignments(ctx context.Context, token, tenantID, userID string) ([]int, error)
}

// Client wraps the identity provider. It owns session mutation: the
// store is written here and nowhere else.
type Client struct {
	cfg         Config
	http        *http.Client
	store       session.Store
	assignments AssignmentFetcher
	refreshing  singleflight.Group
}

// NewClient creates an identity client.
func NewClient(cfg Config, store session.Store, assignments AssignmentFetcher) *Client {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.MinValidity <= 0 {
		cfg.MinValidity = 5 * time.Minute
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = 24 * time.Hour
	}
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 15 * time.Second},
		store:       store,
		assignments: assignments,
	}
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.cfg.BaseURL, c.cfg.Realm)
}

// Initialize performs the non-interactive "check existing session"
// handshake for a stored session. It never returns an error: every
// provider failure degrades to an unauthenticated session so the public
// experience can render.
//
// On success the session moves through ReadinessPendingRoles while the
// assignment fetch runs, and reaches ReadinessReady only once role and
// assignment data are both in place.
func (c *Client) Initialize(ctx context.Context, sess *session.Session) *session.Session {
	if sess == nil {
		sess = c.newSession()
	}

	if sess.RefreshToken == "" {
		return c.markUnauthenticated(ctx, sess)
	}

	tok, err := c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"refresh_token": {sess.RefreshToken},
	})
	if err != nil {
		// Fail open to the public routes; a broken IdP must not take the
		// whole site down.
		slog.WarnContext(ctx, "silent handshake failed, continuing unauthenticated",
			logger.Component("identity"), logger.Error(err))
		return c.markUnauthenticated(ctx, sess)
	}

	if err := c.adoptToken(ctx, sess, tok); err != nil {
		slog.WarnContext(ctx, "token from handshake unusable, continuing unauthenticated",
			logger.Component("identity"), logger.Error(err))
		return c.markUnauthenticated(ctx, sess)
	}
	return sess
}

// Exchange completes the interactive authorization-code flow at the
// callback path. Unlike Initialize, a failure here is surfaced: the user
// just came back from the provider and deserves an error page, not a
// silent downgrade.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*session.Session, error) {
	tok, err := c.requestToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {c.cfg.RedirectURI},
	})
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	sess := c.newSession()
	if err := c.adoptToken(ctx, sess, tok); err != nil {
		return nil, err
	}
	return sess, nil
}

// Refresh requests a new token for the session when the current one is
// close to expiry. Concurrent calls for the same session collapse into a
// single in-flight request.
//
// A refresh failure forces logout: a stale token is a security risk, so
// unlike Initialize this fails closed.
func (c *Client) Refresh(ctx context.Context, sessionID string) (*session.Session, error) {
	v, err, _ := c.refreshing.Do(sessionID, func() (any, error) {
		return c.refreshOnce(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (c *Client) refreshOnce(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if time.Until(sess.TokenExpiry) > c.cfg.MinValidity {
		return sess, nil
	}

	if sess.RefreshToken == "" {
		c.forceLogout(ctx, sess)
		return nil, ErrNoCredential
	}

	tok, err := c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"refresh_token": {sess.RefreshToken},
	})
	if err != nil {
		c.forceLogout(ctx, sess)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	if err := c.adoptToken(ctx, sess, tok); err != nil {
		c.forceLogout(ctx, sess)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return sess, nil
}

// RunRefreshLoop drives periodic refresh for a session until the context
// is cancelled or a refresh fails. The interval ticker guarantees
// sequential fires; overlap across callers is handled by singleflight in
// Refresh.
func (c *Client) RunRefreshLoop(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx, sessionID); err != nil {
				slog.InfoContext(ctx, "refresh loop ended",
					logger.Component("identity"), logger.SessionID(sessionID), logger.Error(err))
				return
			}
		}
	}
}

// Logout deletes the stored session. The transport layer redirects the
// browser to LogoutURL separately.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	if err := c.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// LoginRequest carries everything the transport needs to start the
// redirect-based login flow: the provider URL plus the PKCE verifier and
// state to bind to the browser.
type LoginRequest struct {
	URL      string
	State    string
	Verifier string
}

// LoginURL builds the authorization-code-with-PKCE redirect.
func (c *Client) LoginURL() (*LoginRequest, error) {
	verifier, err := randomURLSafe(32)
	if err != nil {
		return nil, err
	}
	state, err := randomURLSafe(16)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.cfg.ClientID},
		"redirect_uri":          {c.cfg.RedirectURI},
		"scope":                 {"openid"},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	return &LoginRequest{
		URL:      fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth?%s", c.cfg.BaseURL, c.cfg.Realm, q.Encode()),
		State:    state,
		Verifier: verifier,
	}, nil
}

// LogoutURL builds the provider's front-channel logout redirect.
func (c *Client) LogoutURL(postLogoutRedirect string) string {
	q := url.Values{
		"client_id":                {c.cfg.ClientID},
		"post_logout_redirect_uri": {postLogoutRedirect},
	}
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/logout?%s", c.cfg.BaseURL, c.cfg.Realm, q.Encode())
}

// adoptToken installs a fresh token on the session, decodes role claims,
// loads assignments, and persists. The session is only marked Ready
// after both phases complete; readers observing PendingRoles must treat
// role checks as unresolved.
func (c *Client) adoptToken(ctx context.Context, sess *session.Session, tok *tokenResponse) error {
	claims, err := DecodeClaims(tok.AccessToken)
	if err != nil {
		return err
	}

	sess.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	sess.TokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if !claims.ExpiresAt.IsZero() {
		sess.TokenExpiry = claims.ExpiresAt
	}
	sess.UserID = claims.Subject
	sess.Roles = claims.Roles
	sess.Readiness = session.ReadinessPendingRoles
	sess.LastSeenAt = time.Now()

	if err := c.upsert(ctx, sess); err != nil {
		return err
	}

	assigned, err := c.assignments.FetchAssignments(ctx, sess.Token, sess.TenantID, sess.UserID)
	if err != nil {
		// Roles came from the token; missing assignment data narrows
		// access rather than widening it. Resolve the session so the UI
		// is not stuck loading.
		slog.WarnContext(ctx, "assignment fetch failed, proceeding without assignments",
			logger.Component("identity"), logger.UserID(sess.UserID), logger.Error(err))
		assigned = nil
	}
	sess.AssignedEngagementIDs = assigned
	sess.Readiness = session.ReadinessReady

	return c.upsert(ctx, sess)
}

func (c *Client) markUnauthenticated(ctx context.Context, sess *session.Session) *session.Session {
	sess.Token = ""
	sess.RefreshToken = ""
	sess.Roles = nil
	sess.AssignedEngagementIDs = nil
	sess.Readiness = session.ReadinessUnauthenticated
	if err := c.upsert(ctx, sess); err != nil {
		slog.WarnContext(ctx, "failed to persist unauthenticated session",
			logger.Component("identity"), logger.Error(err))
	}
	return sess
}

func (c *Client) forceLogout(ctx context.Context, sess *session.Session) {
	if err := c.store.Delete(ctx, sess.ID); err != nil {
		slog.WarnContext(ctx, "failed to delete session on forced logout",
			logger.Component("identity"), logger.SessionID(sess.ID), logger.Error(err))
	}
}

func (c *Client) newSession() *session.Session {
	now := time.Now()
	return &session.Session{
		ID:         uuid.NewString(),
		Readiness:  session.ReadinessUnresolved,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(c.cfg.SessionLifetime),
	}
}

func (c *Client) upsert(ctx context.Context, sess *session.Session) error {
	err := c.store.Update(ctx, sess)
	if errors.Is(err, session.ErrSessionNotFound) {
		err = c.store.Create(ctx, sess)
	}
	return err
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}
	return &tok, nil
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

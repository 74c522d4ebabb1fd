package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domain "nailbliss/session/internal/domain/session"
	"nailbliss/session/internal/infrastructure/broadcast"
	"nailbliss/session/internal/infrastructure/token"
)

// SessionKey is the key the current session is persisted under.
const SessionKey = "nailbliss_auth_session"

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

var errSessionMissing = &domain.BackendError{Status: http.StatusUnauthorized, Code: "session_not_found", Message: "Auth session missing!"}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client talks to a GoTrue-compatible auth REST API and keeps the current
// session in a KeyValueStore so it survives restarts.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	tokens  *token.JWTManager
	store   domain.KeyValueStore
	events  *broadcast.Broadcaster

	mu      sync.Mutex
	session *domain.Session
	loaded  bool
}

// NewClient builds a client for the service at baseURL (for example
// https://project.example.co). Requests are sent to baseURL + "/auth/v1".
func NewClient(baseURL, anonKey string, tokens *token.JWTManager, store domain.KeyValueStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		anonKey: anonKey,
		http:    &http.Client{Timeout: defaultTimeout},
		tokens:  tokens,
		store:   store,
		events:  broadcast.New(broadcast.LogMissed),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.AuthBackend = (*Client)(nil)

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u *userResponse) identity() *domain.Identity {
	if u == nil || u.ID == "" {
		return nil
	}
	return &domain.Identity{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

// signUpResponse covers both shapes /signup returns: a session when the
// project auto-confirms, the bare user otherwise.
type signUpResponse struct {
	tokenResponse
	userResponse
}

type errorResponse struct {
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Ping calls the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, "", nil)
}

// GetSession returns the current session, loading it from the store on
// first use. Sessions whose access token no longer validates are dropped.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		sess, err := c.loadLocked(ctx)
		if err != nil {
			return nil, err
		}
		c.session, c.loaded = sess, true
	}
	if c.session == nil {
		return nil, nil
	}
	if _, err := c.tokens.Parse(c.session.AccessToken); err != nil {
		c.session = nil
		if rmErr := c.store.Remove(ctx, SessionKey); rmErr != nil {
			return nil, rmErr
		}
		return nil, nil
	}
	return copySession(c.session), nil
}

func (c *Client) loadLocked(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := c.store.Get(ctx, SessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Unreadable entries are discarded rather than failing every start.
		return nil, c.store.Remove(ctx, SessionKey)
	}
	if !sess.Authenticated() {
		return nil, nil
	}
	return &sess, nil
}

// SignUp registers a new account. When the service returns a session the
// client stores it and publishes SIGNED_UP.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	var resp signUpResponse
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, "", &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		sess, err := c.sessionFrom(&resp.tokenResponse)
		if err != nil {
			return nil, err
		}
		if err := c.setSession(ctx, sess, domain.EventSignedUp); err != nil {
			return nil, err
		}
		return sess.User, nil
	}
	identity := resp.userResponse.identity()
	if identity == nil {
		return nil, domain.ErrNoIdentity
	}
	return identity, nil
}

// SignInWithPassword exchanges credentials for a session and publishes SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	query := url.Values{"grant_type": {"password"}}
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token", query, body, "", &resp); err != nil {
		return err
	}
	sess, err := c.sessionFrom(&resp)
	if err != nil {
		return err
	}
	return c.setSession(ctx, sess, domain.EventSignedIn)
}

// SignOut revokes the session server side and always clears it locally.
// An already-revoked session is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	current, _ := c.GetSession(ctx)

	var remoteErr error
	if current != nil {
		remoteErr = c.do(ctx, http.MethodPost, "/logout", nil, nil, current.AccessToken, nil)
		var backendErr *domain.BackendError
		if errors.As(remoteErr, &backendErr) && (backendErr.Status == http.StatusUnauthorized || backendErr.Status == http.StatusNotFound) {
			remoteErr = nil
		}
	}
	if err := c.setSession(ctx, nil, domain.EventSignedOut); err != nil && remoteErr == nil {
		remoteErr = err
	}
	return remoteErr
}

// ResetPasswordForEmail asks the service to email a recovery link that
// lands on redirectTo.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", query, map[string]string{"email": email}, "", nil)
}

// VerifyRecovery redeems the token from a recovery link. The resulting
// session is stored and PASSWORD_RECOVERY is published.
func (c *Client) VerifyRecovery(ctx context.Context, tokenHash string) error {
	body := map[string]string{"type": "recovery", "token_hash": tokenHash}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/verify", nil, body, "", &resp); err != nil {
		return err
	}
	sess, err := c.sessionFrom(&resp)
	if err != nil {
		return err
	}
	return c.setSession(ctx, sess, domain.EventPasswordRecovery)
}

// UpdateUser changes attributes of the signed-in user and publishes USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, attrs domain.UserAttributes) error {
	current, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return errSessionMissing
	}

	var resp userResponse
	body := map[string]string{"password": attrs.Password}
	if err := c.do(ctx, http.MethodPut, "/user", nil, body, current.AccessToken, &resp); err != nil {
		return err
	}
	if identity := resp.identity(); identity != nil {
		current.User = identity
	}
	return c.setSession(ctx, current, domain.EventUserUpdated)
}

// Subscribe delivers INITIAL_SESSION with the current session followed by
// every later session change.
func (c *Client) Subscribe() domain.Subscription {
	sess, _ := c.GetSession(context.Background())
	return c.events.Subscribe(domain.AuthEvent{Type: domain.EventInitialSession, Session: sess})
}

func (c *Client) sessionFrom(resp *tokenResponse) (*domain.Session, error) {
	if resp.AccessToken == "" {
		return nil, &domain.BackendError{Message: "auth service returned no session"}
	}
	sess := &domain.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User.identity(),
	}
	switch {
	case resp.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		sess.ExpiresAt = time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	claims, err := c.tokens.Parse(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if sess.User == nil {
		sess.User = claims.Identity()
	}
	if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return sess, nil
}

func (c *Client) setSession(ctx context.Context, sess *domain.Session, event domain.EventType) error {
	c.mu.Lock()
	c.session, c.loaded = sess, true
	c.mu.Unlock()

	var err error
	if sess == nil {
		err = c.store.Remove(ctx, SessionKey)
	} else {
		var raw []byte
		if raw, err = json.Marshal(sess); err == nil {
			err = c.store.Set(ctx, SessionKey, string(raw))
		}
	}
	c.events.Publish(domain.AuthEvent{Type: event, Session: copySession(sess)})
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeError turns an error response into a BackendError. Only the code
// and message fields are kept; the body is never echoed.
func decodeError(resp *http.Response) error {
	backendErr := &domain.BackendError{Status: resp.StatusCode}

	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err == nil {
		backendErr.Code = body.ErrorCode
		if backendErr.Code == "" {
			var code string
			if json.Unmarshal(body.Code, &code) == nil {
				backendErr.Code = code
			}
		}
		if backendErr.Code == "" {
			backendErr.Code = body.Error
		}
		for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription} {
			if msg != "" {
				backendErr.Message = msg
				break
			}
		}
	}
	if backendErr.Message == "" {
		backendErr.Message = http.StatusText(resp.StatusCode)
	}
	return backendErr
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return &out
}

// Package easyplu talks to the easyPLU quiz API.
//
// A Client is unauthenticated and only knows how to log in. Authenticate and
// FromToken return a Session that carries the bearer token on its own HTTP
// transport; everything after login happens on the Session.
package easyplu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// Defaults mirror what the vendor web app sends.
const (
	DefaultBaseURL     = "https://easy-plu.knowledge-hero.com/api/plu"
	DefaultCatalogSize = 154
	DefaultLocale      = "SI"
	DefaultLanguageID  = 1
	DefaultSettleDelay = time.Second

	maxBodyBytes = 8 << 20
)

// Client is the unauthenticated vendor API client.
type Client struct {
	baseURL     string
	http        *http.Client
	timeout     time.Duration
	settleDelay time.Duration
	catalogSize int
	locale      string
	languageID  int
	log         logger.Logger
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		http:        &http.Client{},
		settleDelay: DefaultSettleDelay,
		catalogSize: DefaultCatalogSize,
		locale:      DefaultLocale,
		languageID:  DefaultLanguageID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("vendor")
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Authenticate logs in with an identifier and secret.
func (c *Client) Authenticate(ctx context.Context, creds model.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}

	var resp loginResponse
	err := c.do(ctx, c.http, "login", http.MethodPost, "/login",
		loginRequest{Email: creds.Identifier, Password: creds.Secret}, &resp)
	if err != nil {
		var up *UpstreamError
		if errors.As(err, &up) && (up.Unauthorized() || up.Status == http.StatusUnprocessableEntity) {
			return nil, &AuthError{Reason: fmt.Sprintf("login rejected with status %d", up.Status)}
		}
		return nil, err
	}
	if resp.APIToken == "" {
		return nil, &AuthError{Reason: "no api_token in login response"}
	}
	uid := resp.userID()
	if uid.IsZero() {
		return nil, &AuthError{Reason: "no user id in login response"}
	}

	c.log.Info(ctx, "logged in", logger.String("user_id", uid.String()))
	return c.session(resp.APIToken, uid), nil
}

// FromToken builds a Session from a bearer token captured elsewhere, such as
// the SSO browser flow. The token is not verified; its claims only supply the
// user id and expiry.
func (c *Client) FromToken(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, &AuthError{Reason: "empty token"}
	}
	uid, err := userIDFromToken(token, time.Now())
	if err != nil {
		return nil, err
	}
	c.log.Info(ctx, "session from token", logger.String("user_id", uid.String()))
	return c.session(token, uid), nil
}

func userIDFromToken(token string, now time.Time) (model.ID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", &AuthError{Reason: "token is not a JWT: " + err.Error()}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !exp.After(now) {
		return "", &AuthError{Reason: "token expired at " + exp.UTC().Format(time.RFC3339)}
	}
	for _, key := range []string{"user_id", "uid", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return model.ID(v), nil
			}
		case float64:
			return model.ID(strconv.FormatFloat(v, 'f', -1, 64)), nil
		case json.Number:
			return model.ID(v.String()), nil
		}
	}
	return "", &AuthError{Reason: "no user id claim in token"}
}

// session wraps the client transport so every request carries the token.
func (c *Client) session(token string, uid model.ID) *Session {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	h := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		},
		Timeout:       c.http.Timeout,
		Jar:           c.http.Jar,
		CheckRedirect: c.http.CheckRedirect,
	}
	return &Session{client: c, http: h, userID: uid}
}

// do sends one JSON request and decodes a 2xx response into out (when non-nil).
func (c *Client) do(ctx context.Context, h *http.Client, call, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", call, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", call, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := h.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordVendorRequest(call, "error", elapsed)
		metrics.RecordErrorByComponent("vendor", "transport")
		c.log.Warn(ctx, "vendor call failed", logger.String("call", call), logger.Error(err))
		return &TransportError{Call: call, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	metrics.RecordVendorRequest(call, strconv.Itoa(res.StatusCode), elapsed)
	if err != nil {
		return &TransportError{Call: call, Err: err}
	}

	c.log.Debug(ctx, "vendor call",
		logger.String("call", call),
		logger.Int("status", res.StatusCode),
		logger.Float64("duration_ms", elapsed),
	)

	if res.StatusCode/100 != 2 {
		metrics.RecordErrorByComponent("vendor", "upstream")
		return &UpstreamError{Call: call, Status: res.StatusCode, Body: bodySnippet(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{Call: call, Status: res.StatusCode, Body: "undecodable body: " + bodySnippet(raw)}
	}
	return nil
}

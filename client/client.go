package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRefreshPath    = "/api/auth/refresh"
	defaultRefreshTimeout = 10 * time.Second
	maxErrorBody          = 64 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API origin, e.g. "http://localhost:8080".
	BaseURL     string
	RefreshPath string
	// RefreshTimeout bounds each refresh call. Queued callers wait at most
	// this long plus their own context.
	RefreshTimeout time.Duration
	// HTTPClient is used for all calls. When nil, a client with an in-memory
	// cookie jar is created; a supplied client without a jar gets one.
	HTTPClient *http.Client
	Tokens     TokenStore
	Logger     *zap.Logger
	// OnSessionExpired runs after a refresh fails and the stored token has
	// been cleared. Use it to send the user back to the login screen.
	OnSessionExpired func(err error)
}

// Client talks to the socialn API.
type Client struct {
	baseURL    *url.URL
	refreshURL string
	http       *http.Client
	tokens     TokenStore
	logger     *zap.Logger
	onExpired  func(error)
	refresher  *refresher
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	if cfg.RefreshPath == "" {
		cfg.RefreshPath = defaultRefreshPath
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if cfg.Tokens == nil {
		cfg.Tokens = NewMemoryTokenStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    base,
		refreshURL: base.String() + cfg.RefreshPath,
		http:       httpClient,
		tokens:     cfg.Tokens,
		logger:     cfg.Logger.Named("client"),
		onExpired:  cfg.OnSessionExpired,
	}
	c.refresher = newRefresher(cfg.RefreshTimeout, c.tokens.Token, c.runRefresh)
	c.refresher.failed = c.onExpired
	return c, nil
}

// Token returns the stored access token.
func (c *Client) Token() string {
	return c.tokens.Token()
}

// SetToken replaces the stored access token.
func (c *Client) SetToken(token string) {
	c.tokens.SetToken(token)
}

// Do sends req with the stored access token. A 401 triggers one refresh and
// one resubmission; any other status, or a 401 on the resubmission, is
// returned unchanged. Requests with a body must have GetBody set to be
// resubmitted (http.NewRequest sets it for in-memory bodies).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.send(req, c.tokens.Token(), false)
}

func (c *Client) send(req *http.Request, token string, retried bool) (*http.Response, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || retried {
		return resp, nil
	}

	next, err := c.refresher.obtain(req.Context(), token)
	if err != nil {
		drain(resp)
		return nil, err
	}

	again, err := rewind(req)
	if err != nil {
		c.logger.Warn("token refreshed but request cannot be resubmitted",
			zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.Error(err))
		return resp, nil
	}
	drain(resp)
	return c.send(again, next, true)
}

// Refresh obtains a new access token with the refresh cookie, joining a
// refresh that is already in flight.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refresher.force(ctx)
}

// runRefresh performs the refresh call and updates the token store before the
// refresher settles its waiters.
func (c *Client) runRefresh(ctx context.Context) (string, error) {
	c.logger.Debug("refreshing access token")

	token, err := c.postRefresh(ctx)
	if err != nil {
		c.tokens.Clear()
		c.logger.Warn("access token refresh failed", zap.Error(err))
		return "", err
	}

	c.tokens.SetToken(token)
	return token, nil
}

func (c *Client) postRefresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newAPIError(resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return payload.AccessToken, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	again := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return again, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	again.Body = body
	return again, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doJSON sends a JSON request and decodes a 2xx JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

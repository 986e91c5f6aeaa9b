package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL   = "http://localhost:8000/api"
	defaultUserAgent = "bookmybox-cli/1.0"
)

// TokenSource supplies the bearer token attached to authenticated requests.
// It is read once per attempt, at request-build time.
type TokenSource interface {
	AccessToken() string
}

// Refresher renews the access token after a 401. It reports whether a new
// token is available.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Client is the single outbound gateway to the booking backend.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	UserAgent string
	Tokens    TokenSource
	Refresher Refresher
	Logger    *slog.Logger
}

func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		BaseURL:   baseURL,
		UserAgent: defaultUserAgent,
	}
}

// attempt tracks one logical request through the refresh-and-replay cycle.
type attempt int

const (
	attemptInitial attempt = iota
	attemptRefreshing
	attemptRetried
)

func (a attempt) String() string {
	switch a {
	case attemptRefreshing:
		return "refreshing"
	case attemptRetried:
		return "retried"
	default:
		return "initial"
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// auth attaches the bearer token and enables refresh-and-replay on 401.
	// Login and token refresh go out without it.
	auth bool
}

func jsonRequest(method, path string, payload any, auth bool) (request, error) {
	r := request{method: method, path: path, auth: auth}
	if payload == nil {
		return r, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, err
	}
	r.body = body
	r.contentType = "application/json"
	return r, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Client) newRequest(ctx context.Context, r request, requestID string) (*http.Request, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(r.path, "/")
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + path
	if r.query != nil {
		base.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, base.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth && c.Tokens != nil {
		if token := c.Tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// do sends r and returns the response body of a 2xx answer. A 401 on the
// first attempt of an authenticated request triggers one refresh; when the
// refresh succeeds the request is replayed once with the new token, otherwise
// the original 401 is returned.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	requestID := uuid.NewString()
	state := attemptInitial
	for {
		status, body, err := c.roundTrip(ctx, r, requestID)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized && r.auth && state == attemptInitial && c.Refresher != nil {
			state = attemptRefreshing
			c.logger().Debug("access token rejected, refreshing",
				"method", r.method, "path", r.path, "request_id", requestID)
			if c.Refresher.Refresh(ctx) {
				state = attemptRetried
				continue
			}
		}
		if status < 200 || status >= 300 {
			c.logger().Debug("request failed",
				"method", r.method, "path", r.path, "status", status,
				"attempt", state.String(), "request_id", requestID)
			return nil, &APIError{
				Method:     r.method,
				Path:       r.path,
				StatusCode: status,
				Body:       body,
			}
		}
		return body, nil
	}
}

func (c *Client) roundTrip(ctx context.Context, r request, requestID string) (int, []byte, error) {
	req, err := c.newRequest(ctx, r, requestID)
	if err != nil {
		return 0, nil, err
	}
	return c.send(req)
}

// send performs req and reads the whole response body.
func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) doJSON(ctx context.Context, r request, dest any) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, dest)
}

func (c *Client) doStatus(ctx context.Context, r request) error {
	_, err := c.do(ctx, r)
	return err
}

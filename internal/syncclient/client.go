// Package syncclient talks to iron-server, the hosted copy of the app state.
package syncclient

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
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TokenHeader = "X-IRON-TOKEN"
	// tokenKey holds the login token in the iron-state namespace
	tokenKey = "auth_token"

	DefaultTimeout = 15 * time.Second
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrWrongCredentials = errors.New("wrong credentials")
	ErrUserExists       = errors.New("user already exists")
)

// RemoteState is the server copy of the app state.
type RemoteState struct {
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

type PushResult struct {
	Applied   bool      `json:"applied"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     faststore.Store
}

// NewTracedHTTPClient returns an http client whose requests are traced with otelhttp.
func NewTracedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewClient returns a client of the server at baseURL. The login token is kept in tokens.
func NewClient(baseURL string, tokens faststore.Store, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewTracedHTTPClient(DefaultTimeout)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

func (c *Client) token() (string, error) {
	token, found, err := c.tokens.GetString(tokenKey)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if !found || token == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// IsAuthenticated reports whether a login token is stored. It does not call the server.
func (c *Client) IsAuthenticated(_ context.Context) (bool, error) {
	_, err := c.token()
	if errors.Is(err, ErrNotAuthenticated) {
		return false, nil
	}
	return err == nil, err
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	resp, err := c.do(ctx, http.MethodPost, "/a/register", credentials{username, password}, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrUserExists
	default:
		return statusError(resp)
	}
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.do(ctx, http.MethodPost, "/a/login", credentials{username, password}, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusBadRequest:
		return ErrWrongCredentials
	default:
		return statusError(resp)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if loginResp.Token == "" {
		return errors.New("login response without token")
	}

	if err := c.tokens.Set(tokenKey, loginResp.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Logout drops the local token even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/a/logout", nil, true)
	if delErr := c.tokens.Delete(tokenKey); delErr != nil {
		log.Errorf("sync client, delete token: %s", delErr)
	}
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
		return statusError(resp)
	}
	return nil
}

// Pull returns the server copy of the state, or nil when the server has none.
func (c *Client) Pull(ctx context.Context) (_ *RemoteState, err error) {
	ctx, span := tracing.ClientTracer.Start(ctx, "syncclient.pull")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	resp, err := c.do(ctx, http.MethodGet, "/state", nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		span.SetAttributes(attribute.Bool("remote.empty", true))
		return nil, nil
	default:
		return nil, c.failure(resp)
	}

	var remote RemoteState
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return nil, fmt.Errorf("decode remote state: %w", err)
	}
	return &remote, nil
}

// Push uploads the encoded state. The server applies it only if timestamp is newer
// than its own copy.
func (c *Client) Push(ctx context.Context, data []byte, timestamp time.Time) (_ *PushResult, err error) {
	ctx, span := tracing.ClientTracer.Start(ctx, "syncclient.push")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	resp, err := c.do(ctx, http.MethodPut, "/state", RemoteState{State: data, Timestamp: timestamp}, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.failure(resp)
	}

	var result PushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	span.SetAttributes(attribute.Bool("remote.applied", result.Applied))
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := c.token()
		if err != nil {
			return nil, err
		}
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// failure maps an error response. A rejected token is forgotten so that
// IsAuthenticated turns false.
func (c *Client) failure(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.tokens.Delete(tokenKey); err != nil {
			log.Errorf("sync client, delete rejected token: %s", err)
		}
		return ErrNotAuthenticated
	}
	return statusError(resp)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Package api talks to the request/response side of the chat server:
// conversation history, the contact directory and session termination.
package api

import (
	"chat-client/domain/chat"
	"chat-client/errors"
	"chat-client/infrastructure/wire"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodySize = 8 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the server root, e.g. "http://localhost:4040".
	BaseURL string
	// Token is the session token sent as a cookie on every request.
	Token string
	// CookieName defaults to "token".
	CookieName string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

type Client struct {
	baseURL    string
	token      string
	cookieName string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = "token"
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		cookieName: cookieName,
		httpClient: httpClient,
		log:        log,
	}, nil
}

// History returns the conversation with contactID in server order.
func (c *Client) History(ctx context.Context, contactID chat.UserID) ([]chat.Message, error) {
	path := "/messages/" + url.PathEscape(string(contactID))
	body, err := c.doRequest(ctx, http.MethodGet, path, errors.ErrFetchFailed)
	if err != nil {
		return nil, err
	}
	messages, skipped, err := wire.DecodeHistory(body, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrFetchFailed, path, err)
	}
	if skipped > 0 {
		c.log.Warn("Skipped history entries without id or participants", "contact_id", contactID, "skipped", skipped)
	}
	return messages, nil
}

// Contacts returns every registered user, self included.
func (c *Client) Contacts(ctx context.Context) ([]chat.Contact, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/people", errors.ErrFetchFailed)
	if err != nil {
		return nil, err
	}
	contacts, err := wire.DecodeDirectory(body)
	if err != nil {
		return nil, fmt.Errorf("%w: /people: %w", errors.ErrFetchFailed, err)
	}
	return contacts, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/logout", errors.ErrLogoutFailed)
	return err
}

// doRequest returns the body of a 2xx response. Any other outcome is wrapped
// in kind so that callers can match on the sentinel.
func (c *Client) doRequest(ctx context.Context, method, path string, kind error) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", kind, err)
	}
	request.Header.Set("Accept", "application/json")
	if c.token != "" {
		request.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.token})
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: request to %s %s failed: %w", kind, method, path, err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", kind, err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}
	return nil, &Error{
		Method:     method,
		Path:       path,
		StatusCode: response.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		kind:       kind,
	}
}

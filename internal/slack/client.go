// Package slack talks to the Slack Web API: it lists and deletes files and
// posts notification messages.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lucasew/slackoffload/internal/errutil"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

var (
	// ErrListingFailed is returned when any page of files.list could not be fetched.
	ErrListingFailed = errors.New("listing failed")

	// ErrDeleteFailed is returned when files.delete did not confirm the deletion.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrPostFailed is returned when chat.postMessage did not accept the message.
	ErrPostFailed = errors.New("post message failed")
)

// HTTPStatusError is returned when the API responds with a non-200 status code.
type HTTPStatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// APIError is returned when the API responds 200 with "ok": false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Code)
}

// Client is a minimal Slack Web API client authenticated with a bot or user token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	// CallTimeout bounds every single request. Zero means no extra deadline.
	CallTimeout time.Duration

	// PageSize is the files.list "count" parameter. Zero lets Slack decide.
	PageSize int

	// ListAttempts is how many times a single page is tried before the
	// listing fails.
	ListAttempts uint

	// RetryDelay is the base backoff between page attempts.
	RetryDelay time.Duration
}

func NewClient(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Token:        token,
		HTTP:         client,
		ListAttempts: 3,
		RetryDelay:   time.Second,
	}
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// call performs one API request and decodes the JSON response into out.
// A 200 response whose body carries "ok": false yields an *APIError.
func (c *Client) call(ctx context.Context, method, apiMethod string, query url.Values, body io.Reader, contentType string, out any) error {
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}

	u := c.BaseURL + "/" + apiMethod
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		errutil.LogMsg(ctx, resp.Body.Close(), "Failed to close response body", "method", apiMethod)
	}()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", apiMethod, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", apiMethod, err)
	}
	if !env.OK {
		return &APIError{Method: apiMethod, Code: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", apiMethod, err)
		}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

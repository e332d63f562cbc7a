package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lucasew/slackoffload/internal/errutil"
)

// DefaultMaxSize is the largest body Fetch buffers when no limit is configured.
const DefaultMaxSize int64 = 1 << 30

var (
	// ErrTooLarge is returned when a body exceeds the configured maximum.
	ErrTooLarge = errors.New("object too large")
)

// HTTPStatusError is returned when the source responds with a non-200 status code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Fetcher downloads private files into memory using a bearer token.
type Fetcher struct {
	Client  *http.Client
	Token   string
	MaxSize int64
}

func NewFetcher(client *http.Client, token string, maxSize int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Fetcher{
		Client:  client,
		Token:   token,
		MaxSize: maxSize,
	}
}

// Fetch downloads url and returns the full body.
//
// The body is never buffered beyond MaxSize bytes; a larger body fails with
// ErrTooLarge.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		errutil.LogMsg(ctx, resp.Body.Close(), "Failed to close response body")
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.MaxSize {
		return nil, fmt.Errorf("%w: content length %d exceeds %d", ErrTooLarge, resp.ContentLength, f.MaxSize)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}

	n, err := io.Copy(&buf, io.LimitReader(resp.Body, f.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if n > f.MaxSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, f.MaxSize)
	}

	return buf.Bytes(), nil
}

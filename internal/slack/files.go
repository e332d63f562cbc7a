package slack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/lucasew/slackoffload/internal/inventory"
	"github.com/lucasew/slackoffload/internal/logctx"
)

type file struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Size       uint64 `json:"size"`
	URLPrivate string `json:"url_private"`
	Filetype   string `json:"filetype"`
	Mimetype   string `json:"mimetype"`
	User       string `json:"user"`
	Created    int64  `json:"created"`
}

type paging struct {
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type filesListResponse struct {
	Files  []file `json:"files"`
	Paging paging `json:"paging"`
}

func (f file) record() inventory.FileRecord {
	rec := inventory.FileRecord{
		ID:       f.ID,
		Name:     f.Name,
		Title:    f.Title,
		Size:     f.Size,
		URL:      f.URLPrivate,
		Filetype: f.Filetype,
		Mimetype: f.Mimetype,
		User:     f.User,
	}
	if f.Created > 0 {
		rec.Created = time.Unix(f.Created, 0).UTC()
	}
	return rec
}

// ListFiles walks files.list page by page until the reported page count is
// exhausted and returns every file in page order.
//
// Any page that still fails after ListAttempts tries fails the whole listing
// with ErrListingFailed; a partial inventory is never returned.
func (c *Client) ListFiles(ctx context.Context) (inventory.Inventory, error) {
	logger := logctx.FromContext(ctx)

	var all inventory.Inventory
	for page := 1; ; page++ {
		resp, err := c.listPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrListingFailed, page, err)
		}

		for _, f := range resp.Files {
			all = append(all, f.record())
		}

		logger.Debug().
			Int("page", page).
			Int("pages", resp.Paging.Pages).
			Int("files", len(resp.Files)).
			Msg("Listed files page")

		if page >= resp.Paging.Pages {
			break
		}
	}

	logger.Info().Int("count", len(all)).Uint64("total_bytes", all.TotalSize()).Msg("Listed files")
	return all, nil
}

func (c *Client) listPage(ctx context.Context, page int) (*filesListResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if c.PageSize > 0 {
		query.Set("count", strconv.Itoa(c.PageSize))
	}

	attempts := c.ListAttempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.DoWithData(
		func() (*filesListResponse, error) {
			var resp filesListResponse
			if err := c.call(ctx, http.MethodGet, "files.list", query, nil, "", &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retryAfterDelay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isTransient(err)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger := logctx.FromContext(ctx)
			logger.Warn().Err(err).Int("page", page).Uint("attempt", n+1).Msg("Retrying files.list page")
		}),
	)
}

// retryAfterDelay honours Retry-After on rate-limited responses and falls back
// to exponential backoff otherwise.
func retryAfterDelay(n uint, err error, config *retry.Config) time.Duration {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter
	}
	return retry.BackOffDelay(n, err, config)
}

func isTransient(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "ratelimited"
	}
	// Transport failures only; decode errors are permanent.
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Evict deletes the file from Slack. It must only be called once the file has
// been archived; Slack offers no way to undo it.
func (c *Client) Evict(ctx context.Context, rec inventory.FileRecord) error {
	form := url.Values{}
	form.Set("file", rec.ID)

	err := c.call(ctx, http.MethodPost, "files.delete", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeleteFailed, rec.ID, err)
	}
	return nil
}

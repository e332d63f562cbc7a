// Package archive copies a source-store file into cold storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucasew/slackoffload/internal/hashutil"
	"github.com/lucasew/slackoffload/internal/inventory"
	"github.com/lucasew/slackoffload/internal/logctx"
	"github.com/lucasew/slackoffload/internal/repository"
)

// ErrTooLarge is returned for records whose listed size exceeds MaxObjectSize.
var ErrTooLarge = errors.New("file exceeds maximum in-memory object size")

// Downloader fetches the full body behind a private URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Archiver downloads a record into memory and writes it to cold storage
// under a key derived from the record, so archiving twice overwrites.
type Archiver struct {
	Source Downloader
	Target repository.Repository
	Prefix string

	// MaxObjectSize rejects records before downloading them. Zero disables
	// the check; the Downloader still enforces its own limit.
	MaxObjectSize uint64

	// CallTimeout bounds the download and the upload separately.
	CallTimeout time.Duration

	// Checksum names the digest stored as "content-<name>" metadata.
	// Empty disables it.
	Checksum string
}

func New(source Downloader, target repository.Repository, prefix string) *Archiver {
	return &Archiver{
		Source:   source,
		Target:   target,
		Prefix:   prefix,
		Checksum: "sha256",
	}
}

// Archive copies rec to cold storage and returns the object key once the
// target acknowledged the write.
func (a *Archiver) Archive(ctx context.Context, rec inventory.FileRecord) (string, error) {
	key := inventory.ArchiveKey(a.Prefix, rec)

	if a.MaxObjectSize > 0 && rec.Size > a.MaxObjectSize {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, rec.ID, rec.Size, a.MaxObjectSize)
	}

	data, err := a.download(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rec.ID, err)
	}

	obj := repository.Object{
		Key:         key,
		Body:        data,
		ContentType: rec.Mimetype,
		Metadata:    objectMetadata(rec),
	}
	if a.Checksum != "" {
		sum, err := hashutil.Sum(a.Checksum, data)
		if err != nil {
			return "", err
		}
		obj.Metadata["content-"+a.Checksum] = sum
	}
	if err := a.upload(ctx, obj); err != nil {
		return "", fmt.Errorf("upload %s: %w", rec.ID, err)
	}

	logger := logctx.FromContext(ctx)
	logger.Debug().
		Str("key", key).
		Str("location", a.Target.Location()).
		Int("bytes", len(data)).
		Msg("Archived file")
	return key, nil
}

func (a *Archiver) download(ctx context.Context, rec inventory.FileRecord) ([]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.Source.Fetch(ctx, rec.URL)
}

func (a *Archiver) upload(ctx context.Context, obj repository.Object) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.Target.Put(ctx, obj)
}

func (a *Archiver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.CallTimeout > 0 {
		return context.WithTimeout(ctx, a.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func objectMetadata(rec inventory.FileRecord) map[string]string {
	meta := map[string]string{"slack-file-id": rec.ID}
	if rec.User != "" {
		meta["slack-user"] = rec.User
	}
	if rec.Filetype != "" {
		meta["slack-filetype"] = rec.Filetype
	}
	if !rec.Created.IsZero() {
		meta["slack-created"] = rec.Created.UTC().Format(time.RFC3339)
	}
	return meta
}

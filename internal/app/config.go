package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrConfigMissing is returned by Validate before any I/O happens.
var ErrConfigMissing = errors.New("missing required configuration")

// Config holds everything needed to run the offloader.
type Config struct {
	SlackAPIToken string
	SlackAPIURL   string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Region           string
	S3Bucket           string
	S3Prefix           string
	S3Endpoint         string

	// ArchiveDir archives into a local directory instead of S3.
	ArchiveDir string

	MaxTotalFileSize uint64
	FileSizeBuffer   uint64
	Room             string

	EvictionStrategy string
	MaxAttempts      int
	MaxObjectSize    uint64
	ListAttempts     uint
	CallTimeout      time.Duration
	RunTimeout       time.Duration

	// Journal is the sqlite path of the migration journal. Empty disables it.
	Journal string

	// CAFile adds PEM certificates to the trust store of the Slack client.
	CAFile string
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	var missing []string
	if c.SlackAPIToken == "" {
		missing = append(missing, "slack-api-token")
	}
	if c.MaxTotalFileSize == 0 {
		missing = append(missing, "max-total-file-size")
	}
	if c.ArchiveDir == "" {
		if c.S3Bucket == "" {
			missing = append(missing, "s3-bucket")
		}
		if c.S3Region == "" {
			missing = append(missing, "s3-region-name")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}
	return nil
}

// ParseSize accepts plain byte counts and humanized sizes such as 1GB or
// 500MiB. The empty string is zero.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

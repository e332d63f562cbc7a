package eviction

import "errors"

var (
	// ErrListingFailed aborts a run before any migration.
	ErrListingFailed = errors.New("listing failed")
	// ErrArchiveFailed marks a failed download or upload of a candidate.
	ErrArchiveFailed = errors.New("archive failed")
	// ErrEvictFailed marks a candidate that was archived but not deleted.
	ErrEvictFailed = errors.New("evict failed")
	// ErrQuotaUnmet is returned when a run ends above its target because
	// every remaining candidate was skipped.
	ErrQuotaUnmet = errors.New("quota not met")
)

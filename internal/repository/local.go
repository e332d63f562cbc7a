package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucasew/slackoffload/internal/logctx"
)

// LocalRepository implements a Repository backed by the local filesystem.
//
// Objects are stored at {Dir}/{key}; key separators become directories.
type LocalRepository struct {
	Dir string
}

func NewLocalRepository(dir string) *LocalRepository {
	return &LocalRepository{Dir: dir}
}

func (r *LocalRepository) Location() string {
	return r.Dir
}

func (r *LocalRepository) getPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(r.Dir, rel), nil
}

func (r *LocalRepository) Exists(ctx context.Context, key string) (bool, error) {
	path, err := r.getPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Put writes the object to a temporary file and atomically renames it over
// the final path, replacing any previous version.
func (r *LocalRepository) Put(ctx context.Context, obj Object) error {
	finalPath, err := r.getPath(obj.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(finalPath), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmpFile.Name()) }()
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.Write(obj.Body); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		return fmt.Errorf("failed to rename to final path: %w", err)
	}

	logger := logctx.FromContext(ctx)
	logger.Debug().Str("path", finalPath).Int("size", len(obj.Body)).Msg("Stored object")
	return nil
}

package repository

import (
	"context"
)

// Object is a single cold-storage write.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// Repository is a cold-storage target. Put must overwrite an existing object
// with the same key, so repeated writes of the same record are idempotent.
type Repository interface {
	Put(ctx context.Context, obj Object) error
	Exists(ctx context.Context, key string) (bool, error)
	// Location names the bucket or directory objects end up in.
	Location() string
}

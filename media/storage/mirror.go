package storage

import (
	"context"
	"path"
	"strings"
)

// Mirror publishes finished derivatives to a remote object store.
type Mirror interface {
	Name() string
	// Publish uploads the local file under its base name and returns the
	// public URL.
	Publish(ctx context.Context, localPath string) (string, error)
	// Remove deletes the object stored for name. Deleting an absent object
	// is not an error.
	Remove(ctx context.Context, name string) error
}

// ObjectKey joins prefix and file name into an object key without a leading
// slash.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	name = strings.TrimPrefix(path.Base(strings.ReplaceAll(name, "\\", "/")), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

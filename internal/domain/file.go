package domain

import (
	"context"
)

// ImageStore defines the interface for source image storage
type ImageStore interface {
	// Upload saves an object under key
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Download returns the object stored under key
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

package domain

import (
	"context"
	"strings"
	"time"
)

// AvatarKey addresses a generic avatar. Both parts are opaque to the service.
type AvatarKey struct {
	Type string
	ID   string
}

// Valid reports whether the key can be used as a storage path segment
func (k AvatarKey) Valid() bool {
	return validPart(k.Type) && validPart(k.ID)
}

func (k AvatarKey) String() string {
	return k.Type + "/" + k.ID
}

func validPart(s string) bool {
	if s == "" || s == "." || strings.Contains(s, "..") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// ImageArtifact is a rendition produced for a single request
type ImageArtifact struct {
	Data     []byte
	MimeType string
}

// FetchResult is what the gateway hands back for a successful fetch
type FetchResult struct {
	Image    *ImageArtifact
	IsCustom bool
}

// ValidatedUpload is an upload that passed the request normalizer
type ValidatedUpload struct {
	Filename string
	Data     []byte
}

// AvatarRecord is the metadata stored for a custom (uploaded) avatar
type AvatarRecord struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	AvatarType string    `bson:"avatar_type" json:"avatar_type"`
	AvatarID   string    `bson:"avatar_id" json:"avatar_id"`
	ObjectKey  string    `bson:"object_key" json:"object_key"`
	MimeType   string    `bson:"mime_type" json:"mime_type"`
	Version    string    `bson:"version" json:"version"` // ULID, changes on every upload
	Size       int       `bson:"size" json:"size"`       // edge length in px
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// Avatar is a resolved generic avatar
type Avatar interface {
	// GetFile renders the avatar at the given edge size
	GetFile(ctx context.Context, size int) (*ImageArtifact, error)

	// IsCustomAvatar reports whether the avatar was uploaded rather than generated
	IsCustomAvatar() bool

	// Set replaces the source image. Returns ErrNotSquare for non 1:1 images.
	Set(ctx context.Context, data []byte) error

	// Remove deletes the custom image, reverting to the generated one
	Remove(ctx context.Context) error
}

// AvatarManager resolves generic avatars
type AvatarManager interface {
	GetGenericAvatar(ctx context.Context, avatarType, avatarID string) (Avatar, error)
}

// AvatarRepository defines persistence for AvatarRecord
type AvatarRepository interface {
	// GetByKey returns ErrNotFound when no record exists
	GetByKey(ctx context.Context, key AvatarKey) (*AvatarRecord, error)

	// Upsert creates or replaces the record for record's key
	Upsert(ctx context.Context, record *AvatarRecord) error

	// Delete removes the record. Returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, key AvatarKey) error
}

// RenditionCache caches rendered avatar images
type RenditionCache interface {
	// GetRendition returns ErrCacheMiss when nothing is cached
	GetRendition(ctx context.Context, key AvatarKey, version string, size int) (*ImageArtifact, error)
	SetRendition(ctx context.Context, key AvatarKey, version string, size int, image *ImageArtifact, ttl time.Duration) error

	// InvalidateRenditions drops every cached size of every version of key
	InvalidateRenditions(ctx context.Context, key AvatarKey) error
}

// AvatarGateway is the only entry point handlers use to reach avatars
type AvatarGateway interface {
	Fetch(ctx context.Context, key AvatarKey, size int) (*FetchResult, error)
	Replace(ctx context.Context, key AvatarKey, upload *ValidatedUpload) error
	Delete(ctx context.Context, key AvatarKey) error
}

// Translator produces localized user-facing messages
type Translator interface {
	T(lang, message string) string
}

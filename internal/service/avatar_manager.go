package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// generatedVersion is the cache version used for placeholder renditions
const generatedVersion = "generated"

// GenericAvatarManager implements domain.AvatarManager on top of Mongo
// metadata, an object store for source images and a rendition cache
type GenericAvatarManager struct {
	records  domain.AvatarRepository
	store    domain.ImageStore
	cache    domain.RenditionCache
	types    map[string]struct{}
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewGenericAvatarManager creates a manager that resolves only the given avatar types
func NewGenericAvatarManager(
	records domain.AvatarRepository,
	store domain.ImageStore,
	cache domain.RenditionCache,
	avatarTypes []string,
	cacheTTL time.Duration,
) *GenericAvatarManager {
	types := make(map[string]struct{}, len(avatarTypes))
	for _, t := range avatarTypes {
		types[t] = struct{}{}
	}
	return &GenericAvatarManager{
		records:  records,
		store:    store,
		cache:    cache,
		types:    types,
		cacheTTL: cacheTTL,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for best-effort cleanup failures
func (m *GenericAvatarManager) WithLogger(logger *slog.Logger) *GenericAvatarManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// GetGenericAvatar resolves (type, id). Unknown types and unusable keys are ErrNotFound.
func (m *GenericAvatarManager) GetGenericAvatar(ctx context.Context, avatarType, avatarID string) (domain.Avatar, error) {
	key := domain.AvatarKey{Type: avatarType, ID: avatarID}
	if !key.Valid() {
		return nil, fmt.Errorf("invalid avatar key %q: %w", key.String(), domain.ErrNotFound)
	}
	if _, ok := m.types[avatarType]; !ok {
		return nil, fmt.Errorf("unknown avatar type %q: %w", avatarType, domain.ErrNotFound)
	}

	record, err := m.records.GetByKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return &genericAvatar{manager: m, key: key, record: record}, nil
}

// genericAvatar is bound to the record seen at resolution time
type genericAvatar struct {
	manager *GenericAvatarManager
	key     domain.AvatarKey
	record  *domain.AvatarRecord // nil for generated avatars
}

func (a *genericAvatar) IsCustomAvatar() bool {
	return a.record != nil
}

// GetFile renders the avatar at size, serving from the cache when possible
func (a *genericAvatar) GetFile(ctx context.Context, size int) (*domain.ImageArtifact, error) {
	if size <= 0 || size > domain.MaxAvatarSize {
		return nil, fmt.Errorf("rendition size %d out of range", size)
	}

	version := generatedVersion
	if a.record != nil {
		version = a.record.Version
	}

	if cached, err := a.manager.cache.GetRendition(ctx, a.key, version, size); err == nil {
		return cached, nil
	}

	var (
		artifact *domain.ImageArtifact
		err      error
	)
	if a.record != nil {
		artifact, err = a.renderCustom(ctx, size)
	} else {
		artifact, err = renderPlaceholder(a.key, size)
	}
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = a.manager.cache.SetRendition(ctx, a.key, version, size, artifact, a.manager.cacheTTL)

	return artifact, nil
}

func (a *genericAvatar) renderCustom(ctx context.Context, size int) (*domain.ImageArtifact, error) {
	source, err := a.manager.store.Download(ctx, a.record.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image for %s: %w", a.key, err)
	}

	// the stored source is already a square png
	if size == a.record.Size {
		return &domain.ImageArtifact{Data: source, MimeType: a.record.MimeType}, nil
	}

	img, err := decodeSquare(source)
	if err != nil {
		return nil, fmt.Errorf("stored image for %s is unusable: %w", a.key, err)
	}

	data, err := encodePNG(scaleSquare(img, size))
	if err != nil {
		return nil, err
	}
	return &domain.ImageArtifact{Data: data, MimeType: mimePNG}, nil
}

// Set stores data as the new source image.
// The upload is normalized to a png no larger than MaxAvatarSize.
func (a *genericAvatar) Set(ctx context.Context, data []byte) error {
	img, err := decodeSquare(data)
	if err != nil {
		return err
	}

	edge := img.Bounds().Dx()
	if edge > domain.MaxAvatarSize {
		edge = domain.MaxAvatarSize
		img = scaleSquare(img, edge)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return err
	}

	version := ulid.Make().String()
	objectKey := fmt.Sprintf("avatars/%s/%s/%s.png", a.key.Type, a.key.ID, version)

	if err := a.manager.store.Upload(ctx, objectKey, encoded, mimePNG); err != nil {
		return err
	}

	record := &domain.AvatarRecord{
		AvatarType: a.key.Type,
		AvatarID:   a.key.ID,
		ObjectKey:  objectKey,
		MimeType:   mimePNG,
		Version:    version,
		Size:       edge,
	}
	if err := a.manager.records.Upsert(ctx, record); err != nil {
		// nothing references the new object yet
		_ = a.manager.store.Delete(ctx, objectKey)
		return err
	}

	previous := a.record
	a.record = record

	if previous != nil && previous.ObjectKey != objectKey {
		if err := a.manager.store.Delete(ctx, previous.ObjectKey); err != nil {
			a.manager.logger.WarnContext(ctx, "previous avatar source left behind",
				"avatar", a.key.String(), "object_key", previous.ObjectKey, "error", err)
		}
	}
	if err := a.manager.cache.InvalidateRenditions(ctx, a.key); err != nil {
		a.manager.logger.WarnContext(ctx, "rendition invalidation failed", "avatar", a.key.String(), "error", err)
	}

	return nil
}

// Remove deletes the custom image. Generated avatars have nothing to remove.
// Deleting the record is the commit point; object and cache cleanup after it
// is best effort and only logged.
func (a *genericAvatar) Remove(ctx context.Context) error {
	if a.record == nil {
		return nil
	}

	if err := a.manager.records.Delete(ctx, a.key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	record := a.record
	a.record = nil

	// independent steps, one failing must not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		if err := a.manager.store.Delete(ctx, record.ObjectKey); err != nil {
			return fmt.Errorf("delete source %s: %w", record.ObjectKey, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.manager.cache.InvalidateRenditions(ctx, a.key); err != nil {
			return fmt.Errorf("invalidate renditions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.manager.logger.WarnContext(ctx, "avatar cleanup incomplete", "avatar", a.key.String(), "error", err)
	}
	return nil
}

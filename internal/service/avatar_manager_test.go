package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/mansoorceksport/generic-avatar/internal/logging"
	"github.com/mansoorceksport/generic-avatar/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type memoryRecords struct {
	mu        sync.Mutex
	records   map[domain.AvatarKey]domain.AvatarRecord
	upsertErr error
	getErr    error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: map[domain.AvatarKey]domain.AvatarRecord{}}
}

func (r *memoryRecords) GetByKey(ctx context.Context, key domain.AvatarKey) (*domain.AvatarRecord, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

func (r *memoryRecords) Upsert(ctx context.Context, record *domain.AvatarRecord) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[domain.AvatarKey{Type: record.AvatarType, ID: record.AvatarID}] = *record
	return nil
}

func (r *memoryRecords) Delete(ctx context.Context, key domain.AvatarKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, key)
	return nil
}

type managerFixture struct {
	manager *GenericAvatarManager
	store   *memoryStore
	records *memoryRecords
	redis   *miniredis.Miniredis
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMemoryStore()
	records := newMemoryRecords()
	cache := repository.NewRedisCacheRepository(client)

	return &managerFixture{
		manager: NewGenericAvatarManager(records, store, cache, []string{"guest", "room"}, time.Hour),
		store:   store,
		records: records,
		redis:   mr,
	}
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestGetGenericAvatarResolution(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.GetGenericAvatar(ctx, "user", "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound, "unknown type")

	_, err = f.manager.GetGenericAvatar(ctx, "room", "../etc")
	assert.ErrorIs(t, err, domain.ErrNotFound, "invalid id")

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	assert.False(t, avatar.IsCustomAvatar())

	f.records.getErr = errors.New("mongo down")
	_, err = f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestGeneratedAvatarRendition(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	avatar, err := f.manager.GetGenericAvatar(ctx, "guest", "g-42")
	require.NoError(t, err)

	file, err := avatar.GetFile(ctx, 96)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.MimeType)
	w, h := decodedSize(t, file.Data)
	assert.Equal(t, 96, w)
	assert.Equal(t, 96, h)

	again, err := avatar.GetFile(ctx, 96)
	require.NoError(t, err)
	assert.Equal(t, file.Data, again.Data, "placeholder is deterministic")
	assert.Len(t, f.redis.Keys(), 1, "rendition cached")

	_, err = avatar.GetFile(ctx, 0)
	assert.Error(t, err)
	_, err = avatar.GetFile(ctx, 4096)
	assert.Error(t, err)
}

func TestSetAndRenderCustomAvatar(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc123")
	require.NoError(t, err)

	require.NoError(t, avatar.Set(ctx, pngImage(t, 200, 200)))
	assert.True(t, avatar.IsCustomAvatar())
	assert.Equal(t, 1, f.store.count())

	// a fresh resolution sees the stored record
	resolved, err := f.manager.GetGenericAvatar(ctx, "room", "abc123")
	require.NoError(t, err)
	assert.True(t, resolved.IsCustomAvatar())

	same, err := resolved.GetFile(ctx, 200)
	require.NoError(t, err)
	w, _ := decodedSize(t, same.Data)
	assert.Equal(t, 200, w)

	small, err := resolved.GetFile(ctx, 64)
	require.NoError(t, err)
	w, h := decodedSize(t, small.Data)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)
	assert.Equal(t, "image/png", small.MimeType)
}

func TestSetReplacesPreviousSourceAndInvalidatesCache(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc123")
	require.NoError(t, err)
	require.NoError(t, avatar.Set(ctx, pngImage(t, 100, 100)))

	_, err = avatar.GetFile(ctx, 50)
	require.NoError(t, err)
	require.NotEmpty(t, f.redis.Keys())

	require.NoError(t, avatar.Set(ctx, pngImage(t, 120, 120)))
	assert.Equal(t, 1, f.store.count(), "previous source deleted")
	assert.Empty(t, f.redis.Keys(), "renditions invalidated")
}

func TestSetAcceptsJPEGAndScalesDownLargeSources(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 2100, 2100))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	avatar, err := f.manager.GetGenericAvatar(ctx, "guest", "big")
	require.NoError(t, err)
	require.NoError(t, avatar.Set(ctx, buf.Bytes()))

	record, err := f.records.GetByKey(ctx, domain.AvatarKey{Type: "guest", ID: "big"})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxAvatarSize, record.Size)
	assert.Equal(t, "image/png", record.MimeType)
}

func TestSetRejectsBadImages(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)

	err = avatar.Set(ctx, pngImage(t, 100, 80))
	assert.ErrorIs(t, err, domain.ErrNotSquare)

	err = avatar.Set(ctx, []byte("definitely not an image"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotSquare)

	assert.False(t, avatar.IsCustomAvatar())
	assert.Zero(t, f.store.count())
}

func TestSetCleansUpWhenMetadataFails(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.records.upsertErr = errors.New("write conflict")

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)

	require.Error(t, avatar.Set(ctx, pngImage(t, 10, 10)))
	assert.Zero(t, f.store.count(), "orphaned object removed")
	assert.False(t, avatar.IsCustomAvatar())
}

func TestRemoveCustomAvatar(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	require.NoError(t, avatar.Set(ctx, pngImage(t, 32, 32)))
	_, err = avatar.GetFile(ctx, 16)
	require.NoError(t, err)

	require.NoError(t, avatar.Remove(ctx))
	assert.False(t, avatar.IsCustomAvatar())
	assert.Zero(t, f.store.count())
	assert.Empty(t, f.redis.Keys())

	resolved, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	assert.False(t, resolved.IsCustomAvatar())

	// removing a generated avatar is a no-op
	require.NoError(t, resolved.Remove(ctx))
}

func TestCustomRenditionMissingSource(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	key := domain.AvatarKey{Type: "room", ID: "ghost"}
	require.NoError(t, f.records.Upsert(ctx, &domain.AvatarRecord{
		AvatarType: key.Type,
		AvatarID:   key.ID,
		ObjectKey:  "avatars/room/ghost/missing.png",
		MimeType:   "image/png",
		Version:    "v1",
		Size:       100,
	}))

	avatar, err := f.manager.GetGenericAvatar(ctx, key.Type, key.ID)
	require.NoError(t, err)

	_, err = avatar.GetFile(ctx, 64)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveSucceedsWhenSourceCleanupFails(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	var logs bytes.Buffer
	f.manager.WithLogger(logging.New(logging.Config{Writer: &logs}))

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	require.NoError(t, avatar.Set(ctx, pngImage(t, 32, 32)))
	_, err = avatar.GetFile(ctx, 16)
	require.NoError(t, err)

	f.store.deleteErr = errors.New("s3 unavailable")
	require.NoError(t, avatar.Remove(ctx), "record is gone, the delete is committed")
	assert.False(t, avatar.IsCustomAvatar())

	resolved, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	assert.False(t, resolved.IsCustomAvatar())

	assert.Equal(t, 1, f.store.count(), "source object left for later cleanup")
	assert.Empty(t, f.redis.Keys(), "cache still invalidated")
	assert.Contains(t, logs.String(), "avatar cleanup incomplete")
	assert.Contains(t, logs.String(), "s3 unavailable")
}

func TestSetLogsWhenPreviousSourceCannotBeDeleted(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	var logs bytes.Buffer
	f.manager.WithLogger(logging.New(logging.Config{Writer: &logs}))

	avatar, err := f.manager.GetGenericAvatar(ctx, "room", "abc")
	require.NoError(t, err)
	require.NoError(t, avatar.Set(ctx, pngImage(t, 32, 32)))

	f.store.deleteErr = errors.New("s3 unavailable")
	require.NoError(t, avatar.Set(ctx, pngImage(t, 48, 48)))
	assert.True(t, avatar.IsCustomAvatar())
	assert.Equal(t, 2, f.store.count())
	assert.Contains(t, logs.String(), "previous avatar source left behind")
}

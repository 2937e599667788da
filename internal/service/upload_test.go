package service

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpload struct {
	name    string
	size    int64
	data    []byte
	openErr error
	closed  bool
}

func (f *fakeUpload) Name() string { return f.name }
func (f *fakeUpload) Size() int64  { return f.size }

func (f *fakeUpload) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &trackingReader{Reader: bytes.NewReader(f.data), upload: f}, nil
}

type trackingReader struct {
	io.Reader
	upload *fakeUpload
}

func (r *trackingReader) Close() error {
	r.upload.closed = true
	return nil
}

// zeroFile is an upload of n zero bytes
func zeroFile(name string, n int64) *fakeUpload {
	return &fakeUpload{name: name, size: n, data: make([]byte, n)}
}

func TestValidateUploadMissingFile(t *testing.T) {
	_, err := ValidateUpload(nil)
	assert.ErrorIs(t, err, domain.ErrMissingFile)

	_, err = ValidateUpload([]UploadedFile{})
	assert.ErrorIs(t, err, domain.ErrMissingFile)
}

func TestValidateUploadInvalidFile(t *testing.T) {
	tests := []struct {
		name   string
		upload *fakeUpload
	}{
		{name: "transport failure", upload: &fakeUpload{name: "a.png", size: 3, openErr: errors.New("unexpected EOF")}},
		{name: "path in name", upload: &fakeUpload{name: "../../etc/passwd", size: 3, data: []byte("abc")}},
		{name: "windows path in name", upload: &fakeUpload{name: `C:\tmp\a.png`, size: 3, data: []byte("abc")}},
		{name: "blacklisted name", upload: &fakeUpload{name: ".htaccess", size: 3, data: []byte("abc")}},
		{name: "blacklisted name any case", upload: &fakeUpload{name: ".HTAccess", size: 3, data: []byte("abc")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpload([]UploadedFile{tt.upload})
			assert.ErrorIs(t, err, domain.ErrInvalidFile)
		})
	}
}

func TestValidateUploadSizeBoundary(t *testing.T) {
	t.Run("one byte over the limit", func(t *testing.T) {
		upload := &fakeUpload{name: "big.png", size: domain.MaxUploadBytes + 1}
		_, err := ValidateUpload([]UploadedFile{upload})
		assert.ErrorIs(t, err, domain.ErrFileTooLarge)
		assert.True(t, upload.closed, "opened file must be closed")
	})

	t.Run("exactly at the limit", func(t *testing.T) {
		upload := zeroFile("exact.png", domain.MaxUploadBytes)
		got, err := ValidateUpload([]UploadedFile{upload})
		require.NoError(t, err)
		assert.Len(t, got.Data, domain.MaxUploadBytes)
		assert.True(t, upload.closed)
	})

	t.Run("declared small but streams too much", func(t *testing.T) {
		upload := zeroFile("liar.png", domain.MaxUploadBytes+10)
		upload.size = 10
		_, err := ValidateUpload([]UploadedFile{upload})
		assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	})
}

func TestValidateUploadSuccess(t *testing.T) {
	upload := &fakeUpload{name: "avatar.png", size: 4, data: []byte{1, 2, 3, 4}}
	second := &fakeUpload{name: "ignored.png", size: 1, data: []byte{9}}

	got, err := ValidateUpload([]UploadedFile{upload, second})
	require.NoError(t, err)
	assert.Equal(t, "avatar.png", got.Filename)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Data)
	assert.True(t, upload.closed)
	assert.False(t, second.closed)
}

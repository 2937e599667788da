package service

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngWithHeaderSize encodes a 1x1 png and rewrites its IHDR to claim w x h
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()

	// 8 byte signature, 4 byte length, then "IHDR" and its 13 byte body
	const ihdr = 8 + 4
	require.Equal(t, "IHDR", string(data[ihdr:ihdr+4]))
	binary.BigEndian.PutUint32(data[ihdr+4:], w)
	binary.BigEndian.PutUint32(data[ihdr+8:], h)
	binary.BigEndian.PutUint32(data[ihdr+4+13:], crc32.ChecksumIEEE(data[ihdr:ihdr+4+13]))
	return data
}

func TestDecodeSquareRejectsHugeSources(t *testing.T) {
	_, err := decodeSquare(pngWithHeaderSize(t, maxSourceEdge+1, maxSourceEdge+1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotSquare)
	assert.Contains(t, err.Error(), "limit is 4096px")
}

func TestDecodeSquareChecksShapeBeforeSize(t *testing.T) {
	_, err := decodeSquare(pngWithHeaderSize(t, 9000, 10))
	assert.ErrorIs(t, err, domain.ErrNotSquare)
}

func TestPlaceholderIsStablePerID(t *testing.T) {
	a := placeholderColor("room-1")
	assert.Equal(t, a, placeholderColor("room-1"))

	artifact, err := renderPlaceholder(domain.AvatarKey{Type: "room", ID: "room-1"}, 20)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(a.R), r>>8)
	assert.Equal(t, uint32(a.G), g>>8)
	assert.Equal(t, uint32(a.B), b>>8)
}

package service

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	mimePNG = "image/png"

	// maxSourceEdge bounds decoded pixel dimensions before any allocation
	maxSourceEdge = 4096
)

// placeholderPalette backs generated (non-custom) avatars
var placeholderPalette = []color.RGBA{
	{R: 0x00, G: 0x82, B: 0xc9, A: 0xff},
	{R: 0x1e, G: 0x78, B: 0xc1, A: 0xff},
	{R: 0x6e, G: 0xa6, B: 0x8f, A: 0xff},
	{R: 0xc9, G: 0x8f, B: 0x1b, A: 0xff},
	{R: 0xd0, G: 0x6a, B: 0x4a, A: 0xff},
	{R: 0x9c, G: 0x5d, B: 0xb8, A: 0xff},
	{R: 0x4a, G: 0x4e, B: 0x8e, A: 0xff},
	{R: 0x2d, G: 0x9c, B: 0x5b, A: 0xff},
}

// decodeSquare decodes an uploaded image and enforces the 1:1 aspect ratio.
// Dimensions are checked from the header so oversized images are never decoded.
func decodeSquare(data []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image data: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	if cfg.Width != cfg.Height {
		return nil, domain.ErrNotSquare
	}
	if cfg.Width > maxSourceEdge {
		return nil, fmt.Errorf("%s image is %dpx wide, limit is %dpx", format, cfg.Width, maxSourceEdge)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	return img, nil
}

// scaleSquare resizes src to size x size. src is returned as-is when it already fits.
func scaleSquare(src image.Image, size int) image.Image {
	b := src.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// placeholderColor derives a stable colour from the avatar id
func placeholderColor(id string) color.RGBA {
	sum := md5.Sum([]byte(id))
	return placeholderPalette[int(sum[0])%len(placeholderPalette)]
}

// renderPlaceholder draws the generated avatar for key at size
func renderPlaceholder(key domain.AvatarKey, size int) (*domain.ImageArtifact, error) {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(placeholderColor(key.ID)), image.Point{}, draw.Src)

	data, err := encodePNG(dst)
	if err != nil {
		return nil, err
	}
	return &domain.ImageArtifact{Data: data, MimeType: mimePNG}, nil
}

package domain

const (
	// DefaultAvatarSize is served when the client asks for a non-positive size
	DefaultAvatarSize = 64
	// MaxAvatarSize is the largest rendition ever produced
	MaxAvatarSize = 2048

	// MaxUploadBytes is the upload ceiling for replacement images (20 MiB)
	MaxUploadBytes = 20 * 1024 * 1024
)

// NormalizeSize clamps an untrusted size parameter.
//
// Sizes above MaxAvatarSize are clamped, non-positive sizes fall back to
// DefaultAvatarSize. Anything in between, including values below 64, is
// returned unchanged.
func NormalizeSize(raw int) int {
	if raw > MaxAvatarSize {
		return MaxAvatarSize
	} else if raw <= 0 {
		return DefaultAvatarSize
	}
	return raw
}

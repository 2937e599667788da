package domain

import "errors"

// Upload validation errors. All of them are client-correctable.
var (
	ErrMissingFile  = errors.New("no file provided")
	ErrInvalidFile  = errors.New("invalid file provided")
	ErrFileTooLarge = errors.New("file is too big")
)

// Gateway outcomes. Collaborator failures are narrowed to one of these
// before they leave the service layer.
var (
	ErrNotFound  = errors.New("avatar not found")
	ErrNotSquare = errors.New("crop is not square")
	ErrInternal  = errors.New("internal avatar error")
)

// ErrCacheMiss is returned by RenditionCache.GetRendition when nothing is cached.
var ErrCacheMiss = errors.New("cache miss")

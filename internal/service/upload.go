package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
)

// blacklistedFiles are never accepted as uploads, compared case-insensitively
var blacklistedFiles = []string{".htaccess"}

// UploadedFile is one file received through the transport
type UploadedFile interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type multipartFile struct {
	header *multipart.FileHeader
}

// FromMultipart adapts a parsed multipart file header
func FromMultipart(header *multipart.FileHeader) UploadedFile {
	return multipartFile{header: header}
}

func (f multipartFile) Name() string { return f.header.Filename }
func (f multipartFile) Size() int64  { return f.header.Size }

func (f multipartFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

// ValidateUpload checks the first uploaded file and reads it into memory.
//
// Errors are always one of domain.ErrMissingFile, domain.ErrInvalidFile or
// domain.ErrFileTooLarge. Removing the transport's temporary files is the
// caller's job; the opened file is closed here on every path.
func ValidateUpload(files []UploadedFile) (*domain.ValidatedUpload, error) {
	if len(files) == 0 || files[0] == nil {
		return nil, domain.ErrMissingFile
	}
	file := files[0]

	name := file.Name()
	if !isPlainFileName(name) || isBlacklisted(name) {
		return nil, domain.ErrInvalidFile
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFile, err)
	}
	defer rc.Close()

	if file.Size() > domain.MaxUploadBytes {
		return nil, domain.ErrFileTooLarge
	}

	// the declared size is not trusted, cap the read as well
	data, err := io.ReadAll(io.LimitReader(rc, domain.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFile, err)
	}
	if len(data) > domain.MaxUploadBytes {
		return nil, domain.ErrFileTooLarge
	}

	return &domain.ValidatedUpload{
		Filename: name,
		Data:     data,
	}, nil
}

// isPlainFileName rejects names that carry any path component
func isPlainFileName(name string) bool {
	if name == "" {
		return true
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

func isBlacklisted(name string) bool {
	for _, blocked := range blacklistedFiles {
		if strings.EqualFold(name, blocked) {
			return true
		}
	}
	return false
}

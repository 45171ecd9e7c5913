// Package uploads stages screenshot files before they are forwarded to the
// collaborator, which owns storage.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyImage   = errors.New("image is empty")
	ErrInvalidImage = errors.New("file is not an image")
	ErrTooLarge     = errors.New("image is too large")
)

type Screenshot struct {
	OriginalName string
	Filename     string
	ContentType  string
	Data         []byte
}

// Read buffers at most maxSize+1 bytes of r so Normalize can tell an
// oversize upload apart from one that is exactly maxSize.
func Read(r io.Reader, originalName string, maxSize int64) (*Screenshot, error) {
	const op = "uploads.Read"

	if r == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyImage)
	}

	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Screenshot{Data: data}
	if originalName != "" {
		s.OriginalName = filepath.Base(originalName)
	}

	return s, nil
}

// Normalize checks the payload and assigns the content type and a fresh
// file name with the detected extension.
func (s *Screenshot) Normalize(maxSize int64) error {
	if len(s.Data) == 0 {
		return ErrEmptyImage
	}

	if maxSize > 0 && int64(len(s.Data)) > maxSize {
		return ErrTooLarge
	}

	mt := mimetype.Detect(s.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return ErrInvalidImage
	}

	ext := mt.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(s.OriginalName))
	}

	s.ContentType = mt.String()
	s.Filename = uuid.New().String() + ext

	return nil
}

// Package filepolicy enforces the size, count and type limits on uploaded files
// before they reach object storage. Content types are sniffed from the bytes.
package filepolicy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tggeco/challenge-api/internal/types"
)

var (
	ErrUnknownKind    = errors.New("unknown file kind")
	ErrTooLarge       = errors.New("file too large")
	ErrEmpty          = errors.New("file is empty")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

type Limit struct {
	Allowed  []string
	MaxBytes int64
	MaxCount int
}

var (
	documentLimit = Limit{
		MaxBytes: 10 << 20,
		MaxCount: 3,
		Allowed: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		},
	}
	imageLimit = Limit{
		MaxBytes: 5 << 20,
		MaxCount: 5,
		Allowed:  []string{"image/jpeg", "image/png"},
	}

	// Profile photos replace each other so only the size and type matter
	PhotoLimit = Limit{
		MaxBytes: 5 << 20,
		MaxCount: 1,
		Allowed:  []string{"image/jpeg", "image/png"},
	}
)

func For(kind types.FileKind) (Limit, error) {
	switch kind {
	case types.FileKindDocument:
		return documentLimit, nil
	case types.FileKindImage:
		return imageLimit, nil
	default:
		return Limit{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Reads the whole file, refusing anything over the size cap or of a type that
// is not allowed. Returns the bytes and the detected content type.
func (l Limit) Check(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmpty
	}

	if int64(len(data)) > l.MaxBytes {
		return nil, "", fmt.Errorf("%w: limit is %d MB", ErrTooLarge, l.MaxBytes>>20)
	}

	detected := mimetype.Detect(data)
	for _, allowed := range l.Allowed {
		if detected.Is(allowed) {
			return data, allowed, nil
		}
	}

	return nil, "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, detected.String())
}

// Reader over checked bytes, for handing to an uploader
func NewReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// File name safe to embed in an object key
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	if len(base) > 100 {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:100-len(ext)] + ext
	}
	return base
}

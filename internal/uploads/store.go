package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmpty is returned for a zero-byte upload
	ErrEmpty = errors.New("upload is empty")

	// ErrTooLarge is returned when an upload exceeds the configured limit
	ErrTooLarge = errors.New("upload too large")

	// ErrNotImage is returned when the content is not a recognised image type
	ErrNotImage = errors.New("upload is not an image")
)

const sniffLen = 512

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ImageStore writes uploaded images into a single directory.
type ImageStore struct {
	dir      string
	maxBytes int64
	log      *zap.Logger
}

// NewImageStore creates the directory if needed.
func NewImageStore(dir string, maxBytes int64, log *zap.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{dir: dir, maxBytes: maxBytes, log: log}, nil
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string { return s.dir }

// Save stores the image under a fresh uuid-prefixed name and returns its path.
func (s *ImageStore) Save(filename string, content io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", ErrEmpty
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", ErrNotImage
	}

	path := filepath.Join(s.dir, StorageName(filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), content)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write image file: %w", err)
	case written > s.maxBytes:
		err = ErrTooLarge
	case closeErr != nil:
		err = fmt.Errorf("close image file: %w", closeErr)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	s.log.Info("Image stored", zap.String("path", path), zap.Int64("bytes", written))
	return path, nil
}

// Remove deletes a stored image. Paths outside the store are refused.
func (s *ImageStore) Remove(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel != filepath.Base(path) {
		return fmt.Errorf("refusing to remove %q outside %q", path, s.dir)
	}
	return os.Remove(path)
}

// StorageName derives a collision-free on-disk name from an uploaded filename.
func StorageName(filename string) string {
	return uuid.NewString() + "-" + SanitizeFilename(filename)
}

// SanitizeFilename reduces a client-supplied filename to a flat ASCII name
// with no directory components.
func SanitizeFilename(filename string) string {
	filename = strings.NewReplacer("/", " ", "\\", " ").Replace(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeChars.ReplaceAllString(filename, "")
	filename = strings.Trim(filename, "._")
	if filename == "" {
		return "image"
	}
	return filename
}

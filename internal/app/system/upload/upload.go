// Package upload persists church certificate files to local storage.
//
// Accepted types are PDF, JPEG and PNG; files are size-capped and written
// under a collision-resistant generated name. Only the relative path is
// handed back for persistence — the file itself is served statically.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxCertificateSize caps certificate uploads at 10 MB.
const MaxCertificateSize = 10 << 20

var (
	// ErrMissingFile is returned when no certificate part was supplied.
	ErrMissingFile = errors.New("certificate file is required")
	// ErrFileTooLarge is returned when the upload exceeds MaxCertificateSize.
	ErrFileTooLarge = errors.New("certificate file exceeds the 10 MB limit")
	// ErrBadFileType is returned for anything that is not PDF/JPEG/PNG.
	ErrBadFileType = errors.New("certificate must be a PDF, JPEG, or PNG file")
)

// extByType maps detected content types to the stored file extension.
var extByType = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Store saves uploaded files beneath a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveCertificate validates and writes an uploaded certificate, returning
// the path (relative to the base directory) to persist.
func (s *Store) SaveCertificate(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrMissingFile
	}
	if fh.Size > MaxCertificateSize {
		return "", ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// Sniff the real content type; the client-supplied header is advisory.
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	// DetectContentType can return a charset suffix for some types.
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := extByType[contentType]
	if !ok {
		return "", ErrBadFileType
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	name := fmt.Sprintf("%s-%d%s", uuid.NewString(), time.Now().UnixMilli(), ext)
	dstPath := filepath.Join(s.baseDir, name)

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create certificate file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(f, MaxCertificateSize+1)); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("write certificate file: %w", err)
	}

	return name, nil
}

// BaseDir returns the storage root, for mounting the static file server.
func (s *Store) BaseDir() string {
	return s.baseDir
}

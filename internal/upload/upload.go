// Package upload pushes source documents to public blob hosts so the
// generation service can fetch them by URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Backend names as used in configuration.
const (
	BackendZeroXZero = "0x0"
	BackendCatbox    = "catbox"
	BackendTmpfiles  = "tmpfiles"
	BackendS3        = "s3"
)

// ErrUploadExhausted is returned when every backend in the chain failed.
var ErrUploadExhausted = errors.New("no upload backend available")

// ErrRejected is returned by a backend that answered without a usable URL.
var ErrRejected = errors.New("upload rejected")

// File is a document to upload.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Backend is one blob host.
type Backend interface {
	// Name returns the backend identifier (e.g., "0x0").
	Name() string
	// Upload transfers the file and returns its public URL.
	Upload(ctx context.Context, f File) (string, error)
}

// parsePublicURL accepts s when it is an absolute http(s) URL.
func parsePublicURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty url", ErrRejected)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: not a url: %.80q", ErrRejected, s)
	}
	return u, nil
}

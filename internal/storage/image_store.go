// Package storage holds the binary image store backing product images.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"adminpanel/internal/apperr"
)

// Upload is an image payload received from a client.
type Upload struct {
	Filename    string
	ContentType string // declared by the client, may be empty
	Reader      io.Reader
}

// ImageStore saves, deletes and resolves binary images by reference.
type ImageStore interface {
	// Save stores the upload and returns its reference.
	Save(ctx context.Context, upload Upload) (string, error)
	// Delete removes ref. Deleting a missing reference is not an error.
	Delete(ctx context.Context, ref string) error
	// Resolve returns the retrievable location of ref, or a not-found error.
	Resolve(ctx context.Context, ref string) (string, error)
	// URL returns the public path of ref without checking that it exists.
	URL(ref string) string
}

// DefaultAllowedTypes are the media types accepted when none are configured.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Policy limits what an ImageStore accepts.
type Policy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// accepted is the validated payload of an upload.
type accepted struct {
	data      []byte
	mediaType string
	ref       string
}

// check reads the upload (at most MaxBytes+1), sniffs its media type and
// generates a fresh reference for it.
func (p Policy) check(upload Upload) (*accepted, error) {
	if upload.Reader == nil {
		return nil, apperr.Validation("image is required", map[string]string{"image": "field is required"})
	}

	if declared := baseMediaType(upload.ContentType); declared != "" && declared != "application/octet-stream" && !p.allows(declared) {
		return nil, apperr.UnsupportedMedia(fmt.Sprintf("media type %s is not allowed", declared))
	}

	data, err := io.ReadAll(io.LimitReader(upload.Reader, p.MaxBytes+1))
	if err != nil {
		return nil, apperr.Storage("could not read upload", err)
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, apperr.PayloadTooLarge(fmt.Sprintf("image exceeds the maximum size of %d bytes", p.MaxBytes))
	}
	if len(data) == 0 {
		return nil, apperr.Validation("image is empty", map[string]string{"image": "must not be empty"})
	}

	detected := mimetype.Detect(data)
	mediaType := baseMediaType(detected.String())
	if !p.allows(mediaType) {
		return nil, apperr.UnsupportedMedia(fmt.Sprintf("media type %s is not allowed", mediaType))
	}

	return &accepted{
		data:      data,
		mediaType: mediaType,
		ref:       uuid.New().String() + detected.Extension(),
	}, nil
}

func (p Policy) allows(mediaType string) bool {
	allowed := p.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	for _, t := range allowed {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// validRef rejects references that could escape the store's namespace.
func validRef(ref string) bool {
	return ref != "" && ref == path.Base(ref) && !strings.ContainsAny(ref, `/\`) && ref != "." && ref != ".."
}

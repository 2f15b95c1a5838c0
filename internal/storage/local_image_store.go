package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"adminpanel/internal/apperr"
)

// LocalImageStore keeps images as files in a single directory that is
// served under URLPrefix. Uploads in progress live in a sibling staging
// directory so they are never reachable under URLPrefix.
type LocalImageStore struct {
	dir        string
	stagingDir string
	urlPrefix  string
	policy     Policy
}

// StagingDir returns the directory holding partially written uploads for
// dir. It sits next to dir so the final rename stays on one filesystem.
func StagingDir(dir string) string {
	dir = filepath.Clean(dir)
	return filepath.Join(filepath.Dir(dir), "."+filepath.Base(dir)+"-staging")
}

// NewLocalImageStore creates the upload and staging directories if needed.
func NewLocalImageStore(dir, urlPrefix string, policy Policy) (*LocalImageStore, error) {
	staging := StagingDir(dir)
	for _, d := range []string{dir, staging} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory %s: %w", d, err)
		}
	}
	return &LocalImageStore{
		dir:        dir,
		stagingDir: staging,
		urlPrefix:  strings.TrimSuffix(urlPrefix, "/"),
		policy:     policy,
	}, nil
}

// Save writes the upload to a staging file and renames it into place, so a
// reference never points at a partially written file.
func (s *LocalImageStore) Save(ctx context.Context, upload Upload) (string, error) {
	img, err := s.policy.check(upload)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.stagingDir, "upload-*")
	if err != nil {
		return "", apperr.Storage("could not store image", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(img.data)); err != nil {
		tmp.Close()
		return "", apperr.Storage("could not store image", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", apperr.Storage("could not store image", err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.Storage("could not store image", err)
	}

	if err := ctx.Err(); err != nil {
		return "", apperr.Storage("image upload aborted", err)
	}
	if err := os.Rename(tmpName, s.path(img.ref)); err != nil {
		return "", apperr.Storage("could not store image", err)
	}
	committed = true
	return img.ref, nil
}

// Delete removes ref from disk; a missing file counts as deleted.
func (s *LocalImageStore) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return nil
	}
	if err := os.Remove(s.path(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Storage("could not delete image", err)
	}
	return nil
}

func (s *LocalImageStore) Resolve(_ context.Context, ref string) (string, error) {
	if !validRef(ref) {
		return "", apperr.NotFound("image not found")
	}
	info, err := os.Stat(s.path(ref))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", apperr.NotFound("image not found")
	}
	if err != nil {
		return "", apperr.Storage("could not resolve image", err)
	}
	return s.URL(ref), nil
}

func (s *LocalImageStore) URL(ref string) string {
	return s.urlPrefix + "/" + ref
}

func (s *LocalImageStore) path(ref string) string {
	return filepath.Join(s.dir, ref)
}

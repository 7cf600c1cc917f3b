// Package storage keeps durable copies of uploaded PDFs between the
// failed detection and the manual page selection.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Fetch when the referenced blob is gone.
var ErrNotFound = errors.New("blob not found")

// Blobs stores whole files under a key and returns a reference that can
// be resolved later by Fetch and Delete.
type Blobs interface {
	Save(ctx context.Context, key, srcPath string) (string, error)
	Fetch(ctx context.Context, ref, dstPath string) error
	Delete(ctx context.Context, ref string) error
}

// LocalBlobs keeps blobs as plain files in one directory.
type LocalBlobs struct {
	dir string
}

// DefaultLocalDir is used when no BLOB_DIR is configured.
func DefaultLocalDir() string {
	return filepath.Join(os.TempDir(), "editorial_bot_files")
}

func NewLocalBlobs(dir string) (*LocalBlobs, error) {
	if dir == "" {
		dir = DefaultLocalDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalBlobs{dir: dir}, nil
}

func (b *LocalBlobs) Dir() string { return b.dir }

func (b *LocalBlobs) path(key string) (string, error) {
	name := filepath.Base(key)
	if name == "." || name == string(filepath.Separator) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(b.dir, name), nil
}

// Save copies srcPath into the blob dir. The ref is the file name.
func (b *LocalBlobs) Save(ctx context.Context, key, srcPath string) (string, error) {
	dst, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := copyFile(srcPath, dst); err != nil {
		return "", fmt.Errorf("save blob: %w", err)
	}
	log.Debug().Str("key", key).Str("path", dst).Msg("blob saved locally")
	return filepath.Base(dst), nil
}

func (b *LocalBlobs) Fetch(ctx context.Context, ref, dstPath string) error {
	src, err := b.path(ref)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err := copyFile(src, dstPath); err != nil {
		return fmt.Errorf("fetch blob: %w", err)
	}
	return nil
}

func (b *LocalBlobs) Delete(ctx context.Context, ref string) error {
	p, err := b.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

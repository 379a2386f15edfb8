// Package media stores uploaded menu photos, on local disk or in an
// S3-compatible bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store saves an object under name and returns its public URL.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// DiskStore writes into Dir; the files are served under PublicPrefix.
type DiskStore struct {
	Dir          string
	PublicPrefix string
}

func NewDiskStore(dir, publicPrefix string) *DiskStore {
	return &DiskStore{Dir: dir, PublicPrefix: strings.TrimRight(publicPrefix, "/")}
}

func (d *DiskStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if name != filepath.Base(name) || name == "." || name == "" {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	path := filepath.Join(d.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return d.PublicPrefix + "/" + name, nil
}

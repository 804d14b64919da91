// Package blob abstracts file hosting behind an upload/URL interface.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage stores uploaded files and resolves public URLs for them.
type Storage interface {
	// Put writes the file at the given path and returns a handle.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// URL resolves a handle to a public URL.
	URL(handle string) string
}

// Disk stores files under a local directory and serves them from a base URL.
type Disk struct {
	Root    string
	BaseURL string
}

// NewDisk returns disk-backed storage rooted at root.
func NewDisk(root, baseURL string) *Disk {
	return &Disk{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Put implements Storage.
func (d *Disk) Put(_ context.Context, name string, r io.Reader) (string, error) {
	clean := path.Clean("/" + name)
	dst := filepath.Join(d.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

// URL implements Storage.
func (d *Disk) URL(handle string) string {
	return d.BaseURL + "/" + handle
}

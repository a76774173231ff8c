package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalDisk stores files in a directory. URLs are built from baseURL and are
// never signed.
type LocalDisk struct {
	root    string
	baseURL string
}

// NewLocalDisk creates the root directory when missing.
func NewLocalDisk(root, baseURL string) (*LocalDisk, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local disk root is required", ErrInvalidConfig)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &LocalDisk{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (d *LocalDisk) path(key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

func (d *LocalDisk) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (d *LocalDisk) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	_, target, err := d.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("drive: open %s: %w", key, err)
	}
	return file, nil
}

func (d *LocalDisk) Exists(ctx context.Context, key string) (bool, error) {
	_, target, err := d.path(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the file. Deleting a missing file is not an error.
func (d *LocalDisk) Delete(ctx context.Context, key string) error {
	_, target, err := d.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func (d *LocalDisk) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	cleaned, _, err := d.path(key)
	if err != nil {
		return "", err
	}

	escaped := (&url.URL{Path: cleaned}).EscapedPath()
	return d.baseURL + "/" + escaped, nil
}

// Package drive provides the Kubit/Core/Drive file storage manager with local
// and S3-compatible disks.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidConfig = errors.New("drive: invalid configuration")
	ErrInvalidKey    = errors.New("drive: invalid key")
	ErrNotFound      = errors.New("drive: file not found")
	ErrAccessDenied  = errors.New("drive: access denied")
	ErrUploadFailed  = errors.New("drive: upload failed")
	ErrDeleteFailed  = errors.New("drive: delete failed")
	ErrPresignFailed = errors.New("drive: presign failed")
	ErrUnknownDisk   = errors.New("drive: unknown disk")
)

// DefaultURLExpiry is the lifetime of signed URLs.
const DefaultURLExpiry = 15 * time.Minute

// Disk stores files under slash separated keys.
type Disk interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// URL returns an address for the file. Signed URLs expire after expiry;
	// disks that cannot sign return a public URL.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Drive holds named disks and forwards calls to the default one.
type Drive struct {
	mu          sync.RWMutex
	disks       map[string]Disk
	defaultDisk string
}

// New creates a Drive whose default disk is named defaultDisk.
func New(defaultDisk string) *Drive {
	return &Drive{disks: make(map[string]Disk), defaultDisk: defaultDisk}
}

// Mount registers disk under name, replacing any previous disk.
func (d *Drive) Mount(name string, disk Disk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disks[name] = disk
}

// Use returns the named disk.
func (d *Drive) Use(name string) (Disk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	disk, ok := d.disks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDisk, name)
	}
	return disk, nil
}

// Disks returns the mounted disk names in sorted order.
func (d *Drive) Disks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.disks))
	for name := range d.disks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Drive) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	disk, err := d.Use(d.defaultDisk)
	if err != nil {
		return err
	}
	return disk.Put(ctx, key, r, size, contentType)
}

func (d *Drive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	disk, err := d.Use(d.defaultDisk)
	if err != nil {
		return nil, err
	}
	return disk.Get(ctx, key)
}

func (d *Drive) Exists(ctx context.Context, key string) (bool, error) {
	disk, err := d.Use(d.defaultDisk)
	if err != nil {
		return false, err
	}
	return disk.Exists(ctx, key)
}

func (d *Drive) Delete(ctx context.Context, key string) error {
	disk, err := d.Use(d.defaultDisk)
	if err != nil {
		return err
	}
	return disk.Delete(ctx, key)
}

func (d *Drive) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	disk, err := d.Use(d.defaultDisk)
	if err != nil {
		return "", err
	}
	return disk.URL(ctx, key, expiry)
}

var _ Disk = (*Drive)(nil)

// CleanKey normalizes key and rejects keys that are empty or escape the disk
// root.
func CleanKey(key string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	cleaned := strings.TrimPrefix(path.Clean("/"+normalized), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for segment := range strings.SplitSeq(normalized, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return cleaned, nil
}

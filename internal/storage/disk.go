package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrTooLarge     = errors.New("storage: object exceeds size limit")
	ErrObjectExists = errors.New("storage: object already exists")
)

// ObjectStore writes uploaded objects.
type ObjectStore interface {
	Put(ctx context.Context, bucket, objectPath string, r io.Reader, maxBytes int64) (int64, error)
}

// DiskStore keeps objects under root/<bucket>/<path>. Objects are never
// overwritten.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: upload directory is not configured")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Put streams r into a temp file and links it into place. Bodies longer than
// maxBytes are discarded with ErrTooLarge.
func (d *DiskStore) Put(ctx context.Context, bucket, objectPath string, r io.Reader, maxBytes int64) (int64, error) {
	target, err := d.resolve(bucket, objectPath)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write object: %w", err)
	}
	if n > maxBytes {
		return 0, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Link(tmp.Name(), target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrObjectExists
		}
		return 0, fmt.Errorf("store object: %w", err)
	}
	return n, nil
}

// resolve maps bucket/objectPath to a file under root, rejecting anything that
// is not a clean relative path.
func (d *DiskStore) resolve(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bad bucket %q", ErrInvalidInput, bucket)
	}
	if objectPath == "" || path.IsAbs(objectPath) || strings.Contains(objectPath, `\`) || path.Clean(objectPath) != objectPath {
		return "", fmt.Errorf("%w: bad object path %q", ErrInvalidInput, objectPath)
	}
	for _, part := range strings.Split(objectPath, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("%w: bad object path %q", ErrInvalidInput, objectPath)
		}
	}
	return filepath.Join(d.root, bucket, filepath.FromSlash(objectPath)), nil
}

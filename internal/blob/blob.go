// Package blob persists material bytes under keys chosen by the registry.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob: not found")
	ErrInvalidKey = errors.New("blob: invalid key")
)

// Store is the blob backend contract. Keys are slash separated and relative.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MaterialKey builds the storage key for one version of a stage record file.
// Distinct versions of the same name never share a key.
func MaterialKey(recordID int64, version int, fileName string) string {
	return fmt.Sprintf("%d/v%d_%s", recordID, version, fileName)
}

// CleanFilename strips any directory part and rejects names that cannot be stored.
func CleanFilename(filename string) (string, error) {
	filename = strings.ReplaceAll(filename, `\`, "/")
	filename = strings.TrimSpace(filepath.Base(path.Clean("/" + filename)))
	switch {
	case filename == "" || filename == "/" || filename == "." || filename == "..":
		return "", errors.New("filename is empty")
	case strings.ContainsRune(filename, 0):
		return "", errors.New("filename contains a NUL byte")
	case strings.Contains(filename, "/"):
		return "", errors.New("filename contains a slash")
	}
	return filename, nil
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, 0) || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

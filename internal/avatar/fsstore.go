package avatar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore is an ObjectStore backed by a local directory, used by the
// operator CLI. The returned URL is the absolute file path.
type FSStore struct {
	root string
}

// NewFSStore creates an FSStore rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// Put writes data under the store root and returns its path.
func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("creating avatar directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing avatar file: %w", err)
	}
	return path, nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileKeyStore keeps known keys as a single JSON array of strings.
type FileKeyStore struct {
	path string
}

func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

func (s *FileKeyStore) Path() string {
	return s.path
}

// Load reads the array. A missing file is an empty set.
func (s *FileKeyStore) Load(_ context.Context) (*KeySet, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewKeySet(), nil
		}
		return nil, fmt.Errorf("stat key store: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("key store path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read key store: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, &CorruptStateError{Path: s.path, Err: err}
	}
	set, err := NewLoadedKeySet(keys)
	if err != nil {
		return nil, &CorruptStateError{Path: s.path, Err: err}
	}
	return set, nil
}

// Flush overwrites the file with every key in set via write-then-rename.
func (s *FileKeyStore) Flush(_ context.Context, set *KeySet) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create key store dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(set.Keys(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := writeFileSync(tmpPath, data); err != nil {
		return fmt.Errorf("write key store tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename key store: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrLocked is returned when another run already holds the store.
var ErrLocked = errors.New("store is locked by another run")

// FileLock guards a file-backed store against concurrent writers.
type FileLock struct {
	path string
}

// AcquireLock creates path+".lock" exclusively.
func AcquireLock(path string) (*FileLock, error) {
	lockPath := path + ".lock"
	dir := filepath.Dir(lockPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, lockedError(lockPath)
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	return &FileLock{path: lockPath}, nil
}

// lockedError names the holder recorded in the lock file so a lock left by
// a crashed run can be told apart from a live one.
func lockedError(lockPath string) error {
	holder := "unknown pid"
	if data, err := os.ReadFile(lockPath); err == nil {
		if pid := strings.TrimSpace(string(data)); pid != "" {
			holder = "pid " + pid
		}
	}
	return fmt.Errorf("%w: %s held by %s; remove it if that process is no longer running", ErrLocked, lockPath, holder)
}

func (l *FileLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"airdropScope/internal/model"
)

// JSONLFailureLedger appends failure entries as JSON lines. Each entry is
// written with a single write call and synced. If the file ends in a torn
// line the next entry starts on a fresh line, so one bad write never
// swallows the entries after it.
type JSONLFailureLedger struct {
	path string
	mu   sync.Mutex
}

func NewJSONLFailureLedger(path string) *JSONLFailureLedger {
	return &JSONLFailureLedger{path: path}
}

func (l *JSONLFailureLedger) Location() string {
	return l.path
}

// Append writes one entry.
func (l *JSONLFailureLedger) Append(_ context.Context, entry model.FailureEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal failure entry: %w", err)
	}
	line = append(line, '\n')

	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open failure ledger: %w", err)
	}
	defer file.Close()

	torn, err := endsMidLine(file)
	if err != nil {
		return err
	}
	if torn {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("write failure entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync failure ledger: %w", err)
	}
	return nil
}

// endsMidLine reports whether a non-empty file lacks a final newline.
func endsMidLine(file *os.File) (bool, error) {
	stat, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat failure ledger: %w", err)
	}
	if stat.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, stat.Size()-1); err != nil {
		return false, fmt.Errorf("read failure ledger tail: %w", err)
	}
	return last[0] != '\n', nil
}

// ReadFailures loads every decodable entry from a ledger file. Lines that
// do not decode, such as a torn write, are skipped and counted.
func ReadFailures(path string) ([]model.FailureEntry, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open failure ledger: %w", err)
	}
	defer file.Close()

	return readFailures(file)
}

func readFailures(r io.Reader) ([]model.FailureEntry, int, error) {
	reader := bufio.NewReader(r)
	entries := make([]model.FailureEntry, 0)
	skipped := 0
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, skipped, fmt.Errorf("read failure ledger: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var entry model.FailureEntry
			if decodeErr := json.Unmarshal(line, &entry); decodeErr != nil {
				skipped++
			} else {
				entries = append(entries, entry)
			}
		}
		if err == io.EOF {
			return entries, skipped, nil
		}
	}
}

package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Local implements Store on a single JSON file holding every key.
// This is suitable for single-instance deployments.
type Local struct {
	mu       sync.RWMutex
	filePath string
}

// NewLocal creates a file-backed store. The file is created on first write.
func NewLocal(filePath string) *Local {
	return &Local{filePath: filePath}
}

// Get retrieves the value for key from the file.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries, err := l.load()
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, nil
	}
	return []byte(value), nil
}

// Set writes value under key and rewrites the file.
func (l *Local) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(append([]byte(nil), value...))
	return l.save(entries)
}

// Delete removes key and rewrites the file.
func (l *Local) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return l.save(entries)
}

// Close is a no-op for the local store.
func (l *Local) Close() error {
	return nil
}

func (l *Local) load() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	if l.filePath == "" {
		return entries, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	return entries, nil
}

func (l *Local) save(entries map[string]json.RawMessage) error {
	if l.filePath == "" {
		return nil
	}

	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := l.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmpFile, l.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename store file: %w", err)
	}
	return nil
}

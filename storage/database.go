package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	jsonFileName = "anchor-studio.json"
	boltFileName = "anchor-studio.db"
)

var (
	// ErrNotFound is returned when a key has never been saved.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store persists JSON-serializable values under string keys.
type Store interface {
	Load(key string, v any) error
	Save(key string, v any) error
	Delete(key string) error
	Close() error
}

// JSONDB keeps every key in a single JSON object on disk.
type JSONDB struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// Connect opens and initializes the JSON-based storage in dir.
func Connect(dir string) (*JSONDB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dbPath := filepath.Join(dir, jsonFileName)

	// Initialize with an empty object if the file doesn't exist
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if err := os.WriteFile(dbPath, []byte("{}"), 0600); err != nil {
			return nil, fmt.Errorf("could not create db file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("could not stat db file: %w", err)
	}

	return &JSONDB{path: dbPath}, nil
}

// Path returns the backing file.
func (db *JSONDB) Path() string { return db.path }

func (db *JSONDB) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(db.path)
	if err != nil {
		return nil, fmt.Errorf("could not read db file: %w", err)
	}

	entries := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("could not parse db file: %w", err)
	}
	return entries, nil
}

func (db *JSONDB) writeAll(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal db: %w", err)
	}

	// write-then-rename so a crash never leaves a truncated file
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("could not write db file: %w", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("could not replace db file: %w", err)
	}
	return nil
}

// Load decodes the value stored under key into v.
func (db *JSONDB) Load(key string, v any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	entries, err := db.readAll()
	if err != nil {
		return err
	}
	raw, ok := entries[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("could not parse %s: %w", key, err)
	}
	return nil
}

// Save replaces the value stored under key.
func (db *JSONDB) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", key, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	entries, err := db.readAll()
	if err != nil {
		return err
	}
	entries[key] = raw
	return db.writeAll(entries)
}

// Delete removes key. Deleting a missing key is not an error.
func (db *JSONDB) Delete(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	entries, err := db.readAll()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return db.writeAll(entries)
}

// Close marks the store closed. There is no file handle to release.
func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

// Open returns the store for backend ("json" or "bolt") rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", "json":
		return Connect(dir)
	case "bolt":
		return OpenBolt(filepath.Join(dir, boltFileName))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const sessionFileName = "session.json"

var _ Backend = (*FileBackend)(nil)

// sessionFile is the on-disk layout of a FileBackend.
type sessionFile struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// FileBackend stores values in a single JSON file, rewritten atomically on
// every change.
type FileBackend struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileBackend creates a file backed store.
// If baseDir is empty, uses ~/.polifeed/
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".polifeed")
	}

	// Tokens live here, keep it private
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file storage initialized")

	return &FileBackend{baseDir: baseDir}, nil
}

// Path returns the location of the session file.
func (f *FileBackend) Path() string {
	return filepath.Join(f.baseDir, sessionFileName)
}

func (f *FileBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, _, err := f.load()
	if err != nil {
		return "", err
	}

	v, ok := sf.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileBackend) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, _, err := f.load()
	if err != nil {
		return err
	}

	sf.Values[key] = value

	return f.save(sf)
}

func (f *FileBackend) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, corrupt, err := f.load()
	if err != nil {
		return err
	}

	// a corrupt file is rewritten so clearing always leaves a readable store
	changed := corrupt
	for _, k := range keys {
		if _, ok := sf.Values[k]; ok {
			delete(sf.Values, k)
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return f.save(sf)
}

func emptySessionFile() *sessionFile {
	return &sessionFile{Version: 1, Values: make(map[string]string)}
}

// load reads the session file. A missing file is an empty store, and so is an
// unparseable one; corrupt reports the latter so Delete can rewrite it.
func (f *FileBackend) load() (sf *sessionFile, corrupt bool, err error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return emptySessionFile(), false, nil
		}
		return nil, false, fmt.Errorf("failed to read session file: %w", err)
	}

	sf = &sessionFile{}
	if err := json.Unmarshal(data, sf); err != nil {
		log.Warn().Err(err).Str("path", f.Path()).Msg("session file is corrupt, treating it as empty")
		return emptySessionFile(), true, nil
	}

	if sf.Values == nil {
		sf.Values = make(map[string]string)
	}

	return sf, false, nil
}

// save writes the session file atomically.
func (f *FileBackend) save(sf *sessionFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	path := f.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}

	return nil
}

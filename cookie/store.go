package cookie

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/networkteam/sessionkit/config"
)

// Save validates a cookie value and writes it trimmed to path, replacing any previous content.
// An invalid value is rejected with ErrInvalidCookie so a broken token never reaches the cache.
func Save(path string, value string) error {
	if !ValidateCookie(value) {
		return fmt.Errorf("saving %s: %w", path, ErrInvalidCookie)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(strings.TrimSpace(value))); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Load reads a cookie value previously written by Save.
// A missing file is returned as an error wrapping fs.ErrNotExist, empty content as ErrInvalidCookie.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading cookie: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("loading %s: %w", path, ErrInvalidCookie)
	}
	return value, nil
}

// Store is a directory of cookie cache files, keyed by role or username.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// TextPath returns the path of the plain text cache file for key.
// Keys are sanitized, so the file always stays inside the store directory.
func (s *Store) TextPath(key string) string {
	return filepath.Join(s.dir, config.SanitizeKey(key)+"_session.txt")
}

// JSONPath returns the path of the JSON cache file for key.
func (s *Store) JSONPath(key string) string {
	return filepath.Join(s.dir, config.SanitizeKey(key)+"_cookies.json")
}

// ReadText returns the trimmed content of the text cache file for key.
// Errors from the file system are returned unchanged so callers can check fs.ErrNotExist.
func (s *Store) ReadText(key string) (string, error) {
	data, err := os.ReadFile(s.TextPath(key))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadRecords decodes the JSON cache file for key.
func (s *Store) ReadRecords(key string) ([]Record, error) {
	data, err := os.ReadFile(s.JSONPath(key))
	if err != nil {
		return nil, err
	}
	return ParseRecords(data)
}

// SaveToken writes value to the text cache file for key.
func (s *Store) SaveToken(key, value string) error {
	return Save(s.TextPath(key), value)
}

// SaveRecords writes records to the JSON cache file for key.
// The session cookie must be among them and valid.
func (s *Store) SaveRecords(key string, records []Record) error {
	session, ok := FindSession(records)
	if !ok || !ValidateCookie(session.Value) {
		return fmt.Errorf("saving %s: %w", s.JSONPath(key), ErrInvalidCookie)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cookie records: %w", err)
	}
	if err := atomic.WriteFile(s.JSONPath(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", s.JSONPath(key), err)
	}
	return nil
}

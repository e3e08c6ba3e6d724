package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fintrack/internal/core"
)

// FileCredentials persists the token and current user as a JSON file, for
// the command line client.
type FileCredentials struct {
	mu   sync.Mutex
	path string
}

type credentialsFile struct {
	Token       string      `json:"token"`
	CurrentUser core.Record `json:"currentUser"`
}

func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

// DefaultCredentialsPath is $XDG_CONFIG_HOME/fintrack/credentials.json or
// the platform equivalent.
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "fintrack", "credentials.json"), nil
}

func (f *FileCredentials) Token(context.Context) string {
	data, err := f.read()
	if err != nil {
		return ""
	}
	return data.Token
}

// User returns the cached current user, nil when not logged in.
func (f *FileCredentials) User() (core.Record, error) {
	data, err := f.read()
	if err != nil {
		return nil, err
	}
	return data.CurrentUser, nil
}

func (f *FileCredentials) Persist(_ context.Context, token string, user core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	buf, err := json.MarshalIndent(credentialsFile{Token: token, CurrentUser: user}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Clear removes both keys. A missing file is not an error.
func (f *FileCredentials) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func (f *FileCredentials) read() (credentialsFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var data credentialsFile
	buf, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("read credentials: %w", err)
	}
	if err := json.Unmarshal(buf, &data); err != nil {
		return data, fmt.Errorf("decode credentials: %w", err)
	}
	return data, nil
}

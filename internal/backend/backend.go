// Package backend opens the session store named by SESSION_BACKEND.
package backend

import (
	"errors"
	"fmt"

	"fintrack/internal/config"
	"fintrack/internal/session"
)

// BackendType names where sessions are kept.
type BackendType string

const (
	// MemoryBackend loses every session on restart.
	MemoryBackend BackendType = "memory"
	// SQLiteBackend keeps sessions in a local database file across restarts.
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	return bt == MemoryBackend || bt == SQLiteBackend
}

// Config selects and locates the session store.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// FromAppConfig picks the session store settings out of the app config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{Type: BackendType(cfg.SessionBackend), SQLiteDBPath: cfg.SQLiteDBPath}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend %q", cfg.SessionBackend)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("invalid session backend %q", c.Type)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return errors.New("sqlite session backend needs a database path")
	}
	return nil
}

// BackendResult is an opened store and the func that releases it.
type BackendResult struct {
	Store   session.Store
	Cleanup func() error
}

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// Save waits this long for another writer to release the config lock.
const (
	saveLockTimeout = 5 * time.Second
	saveLockRetry   = 50 * time.Millisecond
)

// Store guards a loaded Config for concurrent use. Readers share the lock and
// never block each other; SetWebappHost takes it exclusively.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore wraps a copy of cfg. A nil cfg yields repository defaults.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	if cfg == nil {
		s.cfg = Default()
	} else {
		s.cfg = *cfg
	}
	return s
}

// WebappHost returns the configured web application host.
func (s *Store) WebappHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Webapp.Host
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetWebappHost validates and replaces the web application host.
func (s *Store) SetWebappHost(host string) error {
	host = strings.TrimSpace(host)
	if err := ValidateHost(host); err != nil {
		return fmt.Errorf("webapp.host: %w", err)
	}
	s.mu.Lock()
	s.cfg.Webapp.Host = host
	s.mu.Unlock()
	return nil
}

// Save writes the current configuration to path as TOML. Concurrent writers
// from other processes queue on a sibling lock file for up to
// saveLockTimeout, and the file is replaced atomically.
func (s *Store) Save(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("save config: path is required")
	}
	snapshot := s.Snapshot()

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(context.Background(), saveLockTimeout)
	defer cancel()
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(lockCtx, saveLockRetry)
	if err != nil {
		return fmt.Errorf("acquire config lock for %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("config %s is locked by another writer", path)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", filepath.Base(path), time.Now().UnixNano()))
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

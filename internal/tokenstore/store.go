package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"outlookmcp/pkg/logging"
)

// DefaultPollInterval is the Watch polling interval used when fsnotify is unavailable.
const DefaultPollInterval = time.Second

// Config configures a Store.
type Config struct {
	// Dir holds the token files. Created with 0700 on first save.
	Dir string

	// FilePrefix is prepended to the escaped identity.
	FilePrefix string

	// PollInterval is the Watch fallback polling interval.
	PollInterval time.Duration
}

// Store reads and writes token records. There is no lock across identities;
// concurrent loads of the same identity share one file read.
type Store struct {
	dir          string
	prefix       string
	pollInterval time.Duration

	loads singleflight.Group
}

// Entry describes one stored record as returned by List.
type Entry struct {
	Identity string
	Path     string
	ModTime  time.Time

	// Record is nil when the file could not be parsed.
	Record *TokenRecord
}

// New returns a Store for cfg. It does not touch the filesystem.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("token directory is not configured")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Store{
		dir:          cfg.Dir,
		prefix:       cfg.FilePrefix,
		pollInterval: cfg.PollInterval,
	}, nil
}

// Dir returns the token directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the token file path for identity.
func (s *Store) Path(identity string) (string, error) {
	if err := ValidateIdentity(identity); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, fileName(s.prefix, identity)), nil
}

// Save atomically replaces the record for identity.
// SECURITY: Token values are never logged.
func (s *Store) Save(identity string, record *TokenRecord) error {
	path, err := s.Path(identity)
	if err != nil {
		return err
	}
	if record == nil {
		return errors.New("token record is nil")
	}

	if err := s.writeFile(path, record); err != nil {
		logging.Audit(logging.AuditEvent{
			Action:   "token_store_failed",
			Outcome:  "failure",
			Identity: logging.TruncateIdentity(identity),
			Error:    err,
		})
		return fmt.Errorf("failed to persist token: %w", err)
	}

	logging.Audit(logging.AuditEvent{
		Action:   "token_stored",
		Outcome:  "success",
		Identity: logging.TruncateIdentity(identity),
		Details: fmt.Sprintf("expires_at=%s has_refresh_token=%t",
			record.ExpiresAtTime().UTC().Format(time.RFC3339), record.RefreshToken != ""),
	})
	return nil
}

func (s *Store) writeFile(path string, record *TokenRecord) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// CreateTemp opens with 0600.
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	committed = true
	return nil
}

// Load returns the record for identity. Missing and unparsable files both
// report ok=false; parse failures are logged.
func (s *Store) Load(identity string) (*TokenRecord, bool) {
	path, err := s.Path(identity)
	if err != nil {
		logging.Debug("TokenStore", "Not loading token: %v", err)
		return nil, false
	}

	v, _, _ := s.loads.Do(path, func() (interface{}, error) {
		return s.readFile(path, identity), nil
	})
	record, _ := v.(*TokenRecord)
	if record == nil {
		return nil, false
	}
	// callers sharing a load must not share the record
	return record.Clone(), true
}

func (s *Store) readFile(path, identity string) *TokenRecord {
	// #nosec G304 -- path is built from a validated, escaped identity
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("TokenStore", "Failed to read token file for %s: %v", logging.TruncateIdentity(identity), err)
		}
		return nil
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		logging.Warn("TokenStore", "Ignoring unparsable token file for %s: %v", logging.TruncateIdentity(identity), err)
		return nil
	}
	return &record
}

// Delete removes the record for identity. Deleting a missing record is not an error.
func (s *Store) Delete(identity string) error {
	path, err := s.Path(identity)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Audit(logging.AuditEvent{
			Action:   "token_delete_failed",
			Outcome:  "failure",
			Identity: logging.TruncateIdentity(identity),
			Error:    err,
		})
		return fmt.Errorf("failed to delete token file: %w", err)
	}

	logging.Audit(logging.AuditEvent{
		Action:   "token_deleted",
		Outcome:  "success",
		Identity: logging.TruncateIdentity(identity),
	})
	return nil
}

// List returns every stored record, sorted by identity. A missing directory
// yields an empty list.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		identity, ok := identityFromFileName(s.prefix, de.Name())
		if !ok {
			continue
		}

		entry := Entry{
			Identity: identity,
			Path:     filepath.Join(s.dir, de.Name()),
		}
		if info, err := de.Info(); err == nil {
			entry.ModTime = info.ModTime()
		}
		entry.Record = s.readFile(entry.Path, identity)
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identity < entries[j].Identity
	})
	return entries, nil
}

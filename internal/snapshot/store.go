package snapshot

// ============================================================================
// JSON document store for the address book
// ============================================================================
//
// 1. The whole book is serialised as one indented JSON document.
// 2. Writes go to a temp file in the same directory, are fsynced, then
//    renamed over the old document, so a crash leaves either version intact.
// 3. Load checks the schema version before handing the record out.
// 4. Optionally the replaced document is kept as a timestamped backup; the
//    newest backup is used when the main document is missing.
//
// ============================================================================

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ChuLiYu/labqueue/internal/storage"
	"github.com/ChuLiYu/labqueue/pkg/types"
)

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
)

const backupTimeLayout = "20060102T150405.000000000"

// backupSuffix matches the suffix Save appends to backup copies.
var backupSuffix = regexp.MustCompile(`^\.\d{8}T\d{6}\.\d{9}$`)

// Store keeps the book in a single JSON file.
type Store struct {
	path        string
	keepBackups int
	now         func() time.Time
	log         *slog.Logger
	mu          sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// NewStore returns a store for path. keepBackups > 0 keeps that many previous
// documents next to it. It logs through the default logger current at call time.
func NewStore(path string, keepBackups int) *Store {
	return NewStoreWithLogger(path, keepBackups, slog.Default())
}

// NewStoreWithLogger is NewStore with an explicit logger.
func NewStoreWithLogger(path string, keepBackups int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:        path,
		keepBackups: keepBackups,
		now:         time.Now,
		log:         logger.With("component", "snapshot"),
	}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a document has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save atomically replaces the document with rec.
func (s *Store) Save(ctx context.Context, rec *types.PersistedAddressBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *rec
	out.SchemaVer = types.CurrentSchemaVersion
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if s.keepBackups > 0 && s.Exists() {
		backup := s.path + "." + s.now().UTC().Format(backupTimeLayout)
		if err := os.Rename(s.path, backup); err != nil {
			cleanup()
			return fmt.Errorf("back up snapshot: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot: %w", err)
	}
	if s.keepBackups > 0 {
		s.pruneBackups()
	}
	return nil
}

// Load reads the document. It returns storage.ErrNoData when neither the
// document nor a backup exists.
func (s *Store) Load(ctx context.Context) (*types.PersistedAddressBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		backups := s.backups()
		if len(backups) == 0 {
			return nil, storage.ErrNoData
		}
		path = backups[len(backups)-1]
		s.log.Warn("snapshot missing, loading newest backup", "path", s.path, "backup", path)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*types.PersistedAddressBook, error) {
	var rec types.PersistedAddressBook
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if rec.SchemaVer != types.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, rec.SchemaVer, types.CurrentSchemaVersion)
	}
	return &rec, nil
}

// Close is a no-op; every call opens and closes its own file.
func (s *Store) Close() error { return nil }

// Backups lists backup files, oldest first.
func (s *Store) Backups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backups()
}

func (s *Store) backups() []string {
	matches, err := filepath.Glob(s.path + ".*")
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		if backupSuffix.MatchString(strings.TrimPrefix(m, s.path)) {
			out = append(out, m)
		}
	}
	// fixed-width timestamps sort chronologically
	sort.Strings(out)
	return out
}

func (s *Store) pruneBackups() {
	backups := s.backups()
	for len(backups) > s.keepBackups {
		if err := os.Remove(backups[0]); err != nil {
			s.log.Warn("failed to remove old snapshot backup", "path", backups[0], "error", err)
		}
		backups = backups[1:]
	}
}

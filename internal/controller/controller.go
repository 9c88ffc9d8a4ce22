// ============================================================================
// labqueue controller
// ============================================================================
//
// Package: internal/controller
//
// Wires the pieces a command needs around one job manager:
//
//   config -> Store (JSON snapshot or SQLite)  load / save the whole book
//          -> Journal                          one line per committed change
//          -> metrics.Collector                counters from the change stream,
//                                              gauges refreshed on save
//
// Lifecycle:
//   New    opens the store and the journal
//   Start  loads the book (empty on first boot) and builds the manager
//   Save   writes the book, refreshes gauges, writes the metrics textfile
//   Stop   detaches subscribers and closes everything; safe to call twice
//
// A journal that fails verification on open is moved aside and its valid
// prefix is copied into a fresh file, so a torn last line never blocks the
// book from loading.
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ChuLiYu/labqueue/internal/config"
	"github.com/ChuLiYu/labqueue/internal/jobmanager"
	"github.com/ChuLiYu/labqueue/internal/metrics"
	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/internal/snapshot"
	"github.com/ChuLiYu/labqueue/internal/storage"
	"github.com/ChuLiYu/labqueue/internal/storage/journal"
	"github.com/ChuLiYu/labqueue/internal/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNotStarted is returned by operations that need a loaded book.
var ErrNotStarted = errors.New("controller not started")

// Controller owns the store, journal, metrics and manager of one process.
type Controller struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    storage.Store
	journal  *journal.Journal
	manager  *jobmanager.Manager
	registry *prometheus.Registry
	metrics  *metrics.Collector
	log      *slog.Logger

	unsubscribe []func()
	journalErr  error
	stopped     bool
}

// New opens the configured store and journal. Nothing is loaded yet.
func New(cfg *config.Config) (*Controller, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Controller{cfg: cfg, store: store, log: logger.With("component", "controller")}

	if cfg.Journal.Enabled {
		j, err := openJournal(cfg.Journal.Path, cfg.Journal.Sync, c.log)
		if err != nil {
			store.Close()
			return nil, err
		}
		c.journal = j
	}

	if cfg.Metrics.Enabled {
		c.registry = prometheus.NewRegistry()
		c.metrics = metrics.NewCollector(c.registry)
	}
	return c, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		return snapshot.NewStoreWithLogger(cfg.Storage.Path, cfg.Storage.Backups, logger), nil
	}
}

func openJournal(path string, syncOnAppend bool, log *slog.Logger) (*journal.Journal, error) {
	j, err := journal.Open(path, syncOnAppend)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, journal.ErrCorruptedJournal) {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	aside := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(path, aside); err != nil {
		return nil, fmt.Errorf("failed to move corrupted journal aside: %w", err)
	}
	kept, rerr := journal.Repair(aside, path)
	if rerr != nil {
		return nil, fmt.Errorf("failed to repair journal: %w", rerr)
	}
	log.Warn("Journal was corrupted, kept valid prefix",
		"error", err,
		"kept_entries", kept,
		"corrupted_copy", aside)

	j, err = journal.Open(path, syncOnAppend)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen repaired journal: %w", err)
	}
	return j, nil
}

// Start loads the book and builds the manager. An empty store starts an
// empty book. A stored book that fails validation is an error: nothing is
// loaded and the store is left untouched.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return fmt.Errorf("controller stopped")
	}
	if c.manager != nil {
		return nil
	}

	start := time.Now()
	book, err := c.loadBook(ctx)
	if err != nil {
		return err
	}

	manager, err := jobmanager.New(book, jobmanager.Options{
		Removal:      c.cfg.RemovalPolicy(),
		HistoryLimit: c.cfg.Model.HistoryLimit,
		Logger:       slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create job manager: %w", err)
	}
	c.manager = manager

	if c.journal != nil {
		c.unsubscribe = append(c.unsubscribe, manager.Subscribe(c.recordEntry))
	}
	if c.metrics != nil {
		c.unsubscribe = append(c.unsubscribe, manager.Subscribe(c.metrics.RecordEvent))
		c.metrics.SetLoadTime(time.Since(start).Seconds())
		c.metrics.UpdateStats(manager.Stats())
	}

	stats := manager.Stats()
	c.log.Info("Address book loaded",
		"backend", c.cfg.Storage.Backend,
		"path", c.cfg.Storage.Path,
		"machines", stats.Machines,
		"jobs", stats.Jobs,
		"duration", time.Since(start))
	return nil
}

func (c *Controller) loadBook(ctx context.Context) (*model.AddressBook, error) {
	rec, err := c.store.Load(ctx)
	if errors.Is(err, storage.ErrNoData) {
		c.log.Info("No stored address book, starting empty", "path", c.cfg.Storage.Path)
		return model.NewAddressBook(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address book: %w", err)
	}
	book, err := storage.FromPersisted(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load address book: %w", err)
	}
	return book, nil
}

// recordEntry appends one change to the journal. Subscribers cannot fail,
// so the first error is kept and reported by the next Save.
func (c *Controller) recordEntry(ev jobmanager.Event) {
	_, err := c.journal.Append(journal.Entry{
		Timestamp: ev.Time.UnixMilli(),
		Entity:    string(ev.Entity),
		Kind:      string(ev.Kind),
		Key:       ev.Key,
		Name:      ev.Name,
		Machine:   ev.Machine,
		From:      ev.From,
		To:        ev.To,
	})
	if err != nil {
		c.log.Error("Failed to append journal entry", "entity", ev.Entity, "kind", ev.Kind, "error", err)
		c.mu.Lock()
		if c.journalErr == nil {
			c.journalErr = err
		}
		c.mu.Unlock()
	}
}

// Manager returns the loaded manager, or nil before Start.
func (c *Controller) Manager() *jobmanager.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() *config.Config { return c.cfg }

// JournalPath is where changes are recorded, empty when disabled.
func (c *Controller) JournalPath() string {
	if c.journal == nil {
		return ""
	}
	return c.journal.Path()
}

// Save writes the current book to the store.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	manager := c.manager
	journalErr := c.journalErr
	c.journalErr = nil
	c.mu.Unlock()
	if manager == nil {
		return ErrNotStarted
	}

	start := time.Now()
	rec := storage.ToPersisted(manager.AddressBook())
	if err := c.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save address book: %w", err)
	}
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.ObserveSave(elapsed.Seconds())
		c.metrics.UpdateStats(manager.Stats())
		if err := metrics.WriteTextfile(c.cfg.Metrics.Textfile, c.registry); err != nil {
			c.log.Warn("Failed to write metrics", "path", c.cfg.Metrics.Textfile, "error", err)
		}
	}

	c.log.Debug("Address book saved",
		"path", c.cfg.Storage.Path,
		"jobs", len(rec.Jobs),
		"duration", elapsed)

	if journalErr != nil {
		return fmt.Errorf("address book saved but the journal is incomplete: %w", journalErr)
	}
	return nil
}

// GetStatus summarises the loaded book and where it lives.
func (c *Controller) GetStatus() (Status, error) {
	manager := c.Manager()
	if manager == nil {
		return Status{}, ErrNotStarted
	}
	s := Status{
		Backend:     c.cfg.Storage.Backend,
		StoragePath: c.cfg.Storage.Path,
		JournalPath: c.JournalPath(),
		Stats:       manager.Stats(),
	}
	if c.journal != nil {
		s.JournalSeq = c.journal.LastSeq()
	}
	if c.metrics != nil {
		s.MetricsTextfile = c.cfg.Metrics.Textfile
	}
	return s, nil
}

// Status is what the status command prints.
type Status struct {
	Backend         string
	StoragePath     string
	JournalPath     string
	JournalSeq      uint64
	MetricsTextfile string
	Stats           jobmanager.Stats
}

// Stop releases the manager, journal and store. It does not save.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.log.Debug("Controller already stopped")
		return nil
	}
	c.stopped = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	manager := c.manager
	c.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if manager != nil {
		manager.Close()
	}

	var errs []error
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errors.Join(errs...)
}

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChuLiYu/labqueue/internal/config"
	"github.com/ChuLiYu/labqueue/internal/jobmanager"
	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/internal/storage/journal"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func init() {
	model.HashCost = bcrypt.MinCost
}

// newTestConfig places every file of the controller under dir.
func newTestConfig(dir, backend string) *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = backend
	if backend == config.BackendSQLite {
		cfg.Storage.Path = filepath.Join(dir, "book.db")
	} else {
		cfg.Storage.Path = filepath.Join(dir, "book.json")
	}
	cfg.Journal.Path = filepath.Join(dir, "journal.log")
	cfg.Metrics.Enabled = true
	cfg.Metrics.Textfile = filepath.Join(dir, "labqueue.prom")
	return cfg
}

// startController creates and starts a controller, stopping it at cleanup.
func startController(t *testing.T, cfg *config.Config) *Controller {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Stop() })
	require.NoError(t, c.Start(context.Background()))
	return c
}

// populate adds a person, two machines and a started job.
func populate(t *testing.T, m *jobmanager.Manager) model.Job {
	t.Helper()
	p, err := model.NewPerson("Amy", "91234567", "amy@example.com", "Block 1", []string{"student"})
	require.NoError(t, err)
	require.NoError(t, m.AddPerson(p))
	for _, name := range []string{"ULTIMAKER", "ENDER"} {
		mc, err := model.NewMachine(name, types.MachineEnabled, nil)
		require.NoError(t, err)
		require.NoError(t, m.AddMachine(mc))
	}
	j, err := m.AddJob(model.JobSpec{Name: "Max Print", Machine: "ULTIMAKER", Owner: "Amy", Duration: 2.5, Tags: []string{"pla"}})
	require.NoError(t, err)
	j, err = m.UpdateJobStatus(j.ID, types.StatusOngoing)
	require.NoError(t, err)
	return j
}

// ============================================================================
// Basic Functionality Tests
// ============================================================================

func TestNewController(t *testing.T) {
	c, err := New(newTestConfig(t.TempDir(), config.BackendJSON))
	require.NoError(t, err)
	defer c.Stop()

	assert.Nil(t, c.Manager(), "nothing is loaded before Start")
	assert.ErrorIs(t, c.Save(context.Background()), ErrNotStarted)
	_, err = c.GetStatus()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNewController_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	cfg.Storage.Backend = "badger"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestStart_FirstBoot(t *testing.T) {
	c := startController(t, newTestConfig(t.TempDir(), config.BackendJSON))

	m := c.Manager()
	require.NotNil(t, m)
	assert.Empty(t, m.FilteredMachineList())
	assert.False(t, m.CanUndo())

	// Start twice keeps the same manager
	require.NoError(t, c.Start(context.Background()))
	assert.Same(t, m, c.Manager())
}

func TestSaveAndReload(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := newTestConfig(t.TempDir(), backend)

			c := startController(t, cfg)
			populate(t, c.Manager())
			want := c.Manager().AddressBook()
			require.NoError(t, c.Save(context.Background()))
			require.NoError(t, c.Stop())

			reloaded := startController(t, cfg)
			got := reloaded.Manager().AddressBook()
			assert.True(t, want.Equal(got), "reloaded book should equal the saved one")
			assert.False(t, reloaded.Manager().CanUndo(), "history starts at the loaded state")
		})
	}
}

func TestStart_CorruptedStore(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir, config.BackendJSON)
	doc := `{"schema_version":1,"persons":[],"admins":[],"machines":[],"jobs":[
		{"name":"Ghost","machine":"PRUSA","owner":"Amy","added_time":"2026-03-10T13:19:20Z",
		 "priority":"NORMAL","duration":1,"status":"QUEUED","tags":[],"note":""}]}`
	require.NoError(t, os.WriteFile(cfg.Storage.Path, []byte(doc), 0o644))

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Stop()

	err = c.Start(context.Background())
	assert.ErrorIs(t, err, types.ErrDanglingReference)
	assert.Nil(t, c.Manager())

	data, err := os.ReadFile(cfg.Storage.Path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data), "a failed load leaves the store untouched")
}

func TestRemovalPolicyFromConfig(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	cfg.Model.MachineRemoval = "cascade"
	c := startController(t, cfg)
	populate(t, c.Manager())

	_, removed, err := c.Manager().RemoveMachine(types.MustMachineName("ULTIMAKER"))
	require.NoError(t, err)
	assert.Len(t, removed, 1)
}

// ============================================================================
// Journal Tests
// ============================================================================

func TestJournalRecordsChanges(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	c := startController(t, cfg)
	j := populate(t, c.Manager())
	require.NoError(t, c.Save(context.Background()))

	entries, err := journal.ReadAll(cfg.Journal.Path)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "person", entries[0].Entity)
	assert.Equal(t, "added", entries[0].Kind)
	assert.Equal(t, "Amy", entries[0].Key)

	last := entries[4]
	assert.Equal(t, uint64(5), last.Seq)
	assert.Equal(t, "job", last.Entity)
	assert.Equal(t, "status_changed", last.Kind)
	assert.Equal(t, string(j.ID), last.Key)
	assert.Equal(t, "ULTIMAKER", last.Machine)
	assert.Equal(t, "QUEUED", last.From)
	assert.Equal(t, "ONGOING", last.To)
}

func TestJournalContinuesAcrossRestarts(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)

	c := startController(t, cfg)
	populate(t, c.Manager())
	require.NoError(t, c.Save(context.Background()))
	require.NoError(t, c.Stop())

	c2 := startController(t, cfg)
	_, err := c2.Manager().UpdateMachineStatus(types.MustMachineName("ENDER"), types.MachineDisabled)
	require.NoError(t, err)

	entries, err := journal.ReadAll(cfg.Journal.Path)
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.Equal(t, uint64(6), entries[5].Seq)
	assert.Equal(t, "machine", entries[5].Entity)
	assert.Equal(t, "DISABLED", entries[5].To)
}

func TestCorruptedJournalIsRepaired(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir, config.BackendJSON)

	c := startController(t, cfg)
	populate(t, c.Manager())
	require.NoError(t, c.Stop())

	// simulate a torn write
	f, err := os.OpenFile(cfg.Journal.Path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":6,"timestamp":`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c2 := startController(t, cfg)
	_, err = c2.Manager().UpdateMachineStatus(types.MustMachineName("ENDER"), types.MachineDisabled)
	require.Error(t, err, "the book was never saved, so ENDER does not exist")

	mc, err := model.NewMachine("PRUSA", types.MachineEnabled, nil)
	require.NoError(t, err)
	require.NoError(t, c2.Manager().AddMachine(mc))

	entries, err := journal.ReadAll(cfg.Journal.Path)
	require.NoError(t, err)
	require.Len(t, entries, 6, "valid prefix plus the new entry")
	assert.Equal(t, uint64(6), entries[5].Seq)

	aside, err := filepath.Glob(cfg.Journal.Path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, aside, 1, "the corrupted file is kept for inspection")
}

// useLogger installs a default logger writing to a buffer for the test.
func useLogger(t *testing.T, h func(io.Writer) slog.Handler) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	slog.SetDefault(slog.New(h(&buf)))
	return &buf
}

func tearJournal(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":6,"timestamp":`)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestLoggingFollowsConfiguredHandler(t *testing.T) {
	t.Run("warn level text", func(t *testing.T) {
		dir := t.TempDir()
		cfg := newTestConfig(dir, config.BackendJSON)
		c := startController(t, cfg)
		populate(t, c.Manager())
		require.NoError(t, c.Stop())
		tearJournal(t, cfg.Journal.Path)

		buf := useLogger(t, func(w io.Writer) slog.Handler {
			return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn})
		})
		c2 := startController(t, cfg)
		require.NoError(t, c2.Save(context.Background()))

		out := buf.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, `msg="Journal was corrupted, kept valid prefix"`)
		assert.Contains(t, out, "component=controller")
		assert.NotContains(t, out, "Address book saved")
		assert.NotContains(t, out, "level=INFO")
	})

	t.Run("debug level json", func(t *testing.T) {
		buf := useLogger(t, func(w io.Writer) slog.Handler {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
		})
		c := startController(t, newTestConfig(t.TempDir(), config.BackendJSON))
		require.NoError(t, c.Save(context.Background()))

		var saved map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			var record map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &record), line)
			if record["msg"] == "Address book saved" {
				saved = record
			}
		}
		require.NotNil(t, saved)
		assert.Equal(t, "DEBUG", saved["level"])
		assert.Equal(t, "controller", saved["component"])
	})
}

func TestJournalDisabled(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	cfg.Journal.Enabled = false
	c := startController(t, cfg)
	populate(t, c.Manager())
	require.NoError(t, c.Save(context.Background()))

	assert.Empty(t, c.JournalPath())
	_, err := os.Stat(cfg.Journal.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestUndoIsJournalled(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	c := startController(t, cfg)
	m := c.Manager()

	mc, err := model.NewMachine("PRUSA", types.MachineEnabled, nil)
	require.NoError(t, err)
	require.NoError(t, m.AddMachine(mc))
	m.CommitAddressBook()
	require.NoError(t, m.Undo())

	entries, err := journal.ReadAll(cfg.Journal.Path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "book", entries[1].Entity)
	assert.Equal(t, "reset", entries[1].Kind)
}

// ============================================================================
// Metrics and Status Tests
// ============================================================================

func TestSaveWritesMetrics(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	c := startController(t, cfg)
	populate(t, c.Manager())
	require.NoError(t, c.Save(context.Background()))

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `labqueue_jobs{status="ONGOING"} 1`)
	assert.Contains(t, out, `labqueue_machine_active_hours{machine="ULTIMAKER"} 2.5`)
	assert.Contains(t, out, `labqueue_job_transitions_total{from="QUEUED",to="ONGOING"} 1`)
	assert.Contains(t, out, "labqueue_store_save_seconds_count 1")
}

func TestGetStatus(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendSQLite)
	c := startController(t, cfg)
	populate(t, c.Manager())

	s, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, s.Backend)
	assert.Equal(t, cfg.Storage.Path, s.StoragePath)
	assert.Equal(t, cfg.Journal.Path, s.JournalPath)
	assert.Equal(t, uint64(5), s.JournalSeq)
	assert.Equal(t, cfg.Metrics.Textfile, s.MetricsTextfile)
	assert.Equal(t, 2, s.Stats.Machines)
	assert.Equal(t, 1, s.Stats.JobsByStatus[types.StatusOngoing])
}

// ============================================================================
// Stop Tests
// ============================================================================

func TestStop_Idempotent(t *testing.T) {
	c := startController(t, newTestConfig(t.TempDir(), config.BackendSQLite))
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	assert.Error(t, c.Start(context.Background()), "a stopped controller cannot restart")
}

func TestStop_DetachesSubscribers(t *testing.T) {
	cfg := newTestConfig(t.TempDir(), config.BackendJSON)
	c := startController(t, cfg)
	m := c.Manager()
	require.NoError(t, c.Stop())

	mc, err := model.NewMachine("PRUSA", types.MachineEnabled, nil)
	require.NoError(t, err)
	require.NoError(t, m.AddMachine(mc), "the manager still works in memory")

	entries, err := journal.ReadAll(cfg.Journal.Path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Package sqlite stores the address book in a SQLite database, one table per
// entity kind. A save rewrites every table inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ChuLiYu/labqueue/internal/storage"
	"github.com/ChuLiYu/labqueue/pkg/types"

	_ "modernc.org/sqlite"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS persons (
		seq INTEGER PRIMARY KEY,
		name TEXT,
		phone TEXT,
		email TEXT,
		address TEXT,
		tags TEXT
	);

	CREATE TABLE IF NOT EXISTS admins (
		seq INTEGER PRIMARY KEY,
		username TEXT,
		password_hash TEXT
	);

	CREATE TABLE IF NOT EXISTS machines (
		seq INTEGER PRIMARY KEY,
		name TEXT,
		status TEXT,
		tags TEXT
	);

	CREATE TABLE IF NOT EXISTS jobs (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL DEFAULT '',
		name TEXT,
		machine TEXT,
		owner TEXT,
		added_time TEXT,
		start_time TEXT,
		priority TEXT,
		duration REAL,
		status TEXT,
		tags TEXT,
		note TEXT,
		deletion_requested INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_machine ON jobs(machine);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Save
// ============================================================================

// Save replaces every row with the content of rec.
func (s *Store) Save(ctx context.Context, rec *types.PersistedAddressBook) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"persons", "admins", "machines", "jobs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, p := range rec.Persons {
		tags, err := tagsToNull(p.Tags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO persons (seq, name, phone, email, address, tags)
			VALUES (?, ?, ?, ?, ?, ?)
		`, i, ptrToNull(p.Name), ptrToNull(p.Phone), ptrToNull(p.Email), ptrToNull(p.Address), tags)
		if err != nil {
			return fmt.Errorf("failed to insert person %d: %w", i, err)
		}
	}

	for i, a := range rec.Admins {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO admins (seq, username, password_hash) VALUES (?, ?, ?)
		`, i, ptrToNull(a.Username), ptrToNull(a.PasswordHash))
		if err != nil {
			return fmt.Errorf("failed to insert admin %d: %w", i, err)
		}
	}

	for i, m := range rec.Machines {
		tags, err := tagsToNull(m.Tags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO machines (seq, name, status, tags) VALUES (?, ?, ?, ?)
		`, i, ptrToNull(m.Name), ptrToNull(m.Status), tags)
		if err != nil {
			return fmt.Errorf("failed to insert machine %d: %w", i, err)
		}
	}

	for i, j := range rec.Jobs {
		var tags sql.NullString
		if j.Tags != nil {
			if tags, err = tagsToNull(*j.Tags); err != nil {
				return err
			}
			// an empty list is still present
			tags.Valid = true
			if tags.String == "" {
				tags.String = "[]"
			}
		}
		duration := sql.NullFloat64{}
		if j.Duration != nil {
			duration = sql.NullFloat64{Float64: *j.Duration, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (seq, id, name, machine, owner, added_time, start_time,
				priority, duration, status, tags, note, deletion_requested)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, i, j.ID, ptrToNull(j.Name), ptrToNull(j.Machine), ptrToNull(j.Owner),
			ptrToNull(j.AddedTime), ptrToNull(j.StartTime), ptrToNull(j.Priority),
			duration, ptrToNull(j.Status), tags, ptrToNull(j.Note), boolToInt(j.DeletionRequested))
		if err != nil {
			return fmt.Errorf("failed to insert job %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, types.CurrentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ============================================================================
// Load
// ============================================================================

// Load reads the book back in saved order. A database that has never been
// saved to returns storage.ErrNoData.
func (s *Store) Load(ctx context.Context) (*types.PersistedAddressBook, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != types.CurrentSchemaVersion {
		return nil, types.Errorf(types.ErrCorruptedData, "database schema version %d, want %d", version, types.CurrentSchemaVersion)
	}

	rec := &types.PersistedAddressBook{
		SchemaVer: version,
		Persons:   []types.PersistedPerson{},
		Admins:    []types.PersistedAdmin{},
		Machines:  []types.PersistedMachine{},
		Jobs:      []types.PersistedJob{},
	}
	if err := s.loadPersons(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadAdmins(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadMachines(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadJobs(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) loadPersons(ctx context.Context, rec *types.PersistedAddressBook) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, phone, email, address, tags FROM persons ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, phone, email, address, tags sql.NullString
		if err := rows.Scan(&name, &phone, &email, &address, &tags); err != nil {
			return fmt.Errorf("failed to scan person: %w", err)
		}
		p := types.PersistedPerson{
			Name:    nullToPtr(name),
			Phone:   nullToPtr(phone),
			Email:   nullToPtr(email),
			Address: nullToPtr(address),
		}
		if p.Tags, err = nullToTags(tags); err != nil {
			return err
		}
		rec.Persons = append(rec.Persons, p)
	}
	return rows.Err()
}

func (s *Store) loadAdmins(ctx context.Context, rec *types.PersistedAddressBook) error {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password_hash FROM admins ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username, hash sql.NullString
		if err := rows.Scan(&username, &hash); err != nil {
			return fmt.Errorf("failed to scan admin: %w", err)
		}
		rec.Admins = append(rec.Admins, types.PersistedAdmin{
			Username:     nullToPtr(username),
			PasswordHash: nullToPtr(hash),
		})
	}
	return rows.Err()
}

func (s *Store) loadMachines(ctx context.Context, rec *types.PersistedAddressBook) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, status, tags FROM machines ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to query machines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, status, tags sql.NullString
		if err := rows.Scan(&name, &status, &tags); err != nil {
			return fmt.Errorf("failed to scan machine: %w", err)
		}
		m := types.PersistedMachine{Name: nullToPtr(name), Status: nullToPtr(status)}
		if m.Tags, err = nullToTags(tags); err != nil {
			return err
		}
		rec.Machines = append(rec.Machines, m)
	}
	return rows.Err()
}

func (s *Store) loadJobs(ctx context.Context, rec *types.PersistedAddressBook) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, machine, owner, added_time, start_time, priority,
			duration, status, tags, note, deletion_requested
		FROM jobs ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                               string
			name, machine, owner, added, start, prio, status sql.NullString
			tags, note                                       sql.NullString
			duration                                         sql.NullFloat64
			deletion                                         int64
		)
		err := rows.Scan(&id, &name, &machine, &owner, &added, &start, &prio,
			&duration, &status, &tags, &note, &deletion)
		if err != nil {
			return fmt.Errorf("failed to scan job: %w", err)
		}
		j := types.PersistedJob{
			ID:                id,
			Name:              nullToPtr(name),
			Machine:           nullToPtr(machine),
			Owner:             nullToPtr(owner),
			AddedTime:         nullToPtr(added),
			StartTime:         nullToPtr(start),
			Priority:          nullToPtr(prio),
			Status:            nullToPtr(status),
			Note:              nullToPtr(note),
			DeletionRequested: deletion != 0,
		}
		if duration.Valid {
			j.Duration = types.Ptr(duration.Float64)
		}
		if tags.Valid {
			list, err := nullToTags(tags)
			if err != nil {
				return err
			}
			if list == nil {
				list = []string{}
			}
			j.Tags = &list
		}
		rec.Jobs = append(rec.Jobs, j)
	}
	return rows.Err()
}

// Package journal is an append-only, checksummed record of every change
// committed to the book, one JSON object per line.
package journal

// ============================================================================
// Journal core
// 1. Append entries to the file (O_APPEND, never rewritten in place)
// 2. Replay verifies checksums and sequence continuity
// 3. Rotate moves the current file aside and starts a fresh one
// ============================================================================

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const maxLineBytes = 1 << 20

// Journal is safe for concurrent use.
type Journal struct {
	mu           sync.Mutex
	file         *os.File
	path         string
	seq          uint64
	syncOnAppend bool
	now          func() time.Time
}

// Open creates or reopens the journal at path and continues its numbering.
// An existing file that fails verification is reported as a
// *CorruptionError and not opened.
func Open(path string, syncOnAppend bool) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	var last uint64
	err := replayFile(path, func(e Entry) error {
		last = e.Seq
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{
		file:         file,
		path:         path,
		seq:          last,
		syncOnAppend: syncOnAppend,
		now:          time.Now,
	}, nil
}

// Path returns the file location.
func (j *Journal) Path() string { return j.path }

// Append numbers e, stamps it if it has no timestamp, and writes it.
func (j *Journal) Append(e Entry) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return Entry{}, ErrClosed
	}

	e.Seq = j.seq + 1
	if e.Timestamp == 0 {
		e.Timestamp = j.now().UnixMilli()
	}
	e.Checksum = CalculateChecksum(e)

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: marshal seq=%d: %w", e.Seq, err)
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("journal: append seq=%d: %w", e.Seq, err)
	}
	if j.syncOnAppend {
		if err := j.file.Sync(); err != nil {
			return Entry{}, fmt.Errorf("journal: sync seq=%d: %w", e.Seq, err)
		}
	}
	j.seq = e.Seq
	return e, nil
}

// LastSeq is the sequence number of the newest entry, 0 if empty.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Replay feeds every entry to handler in order.
func (j *Journal) Replay(handler Handler) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return replayFile(j.path, handler)
}

// Rotate moves the current file to path.<timestamp> and starts an empty
// journal numbered from 1. It returns the rotated file's path.
func (j *Journal) Rotate() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return "", ErrClosed
	}
	rotated := j.path + "." + j.now().UTC().Format("20060102T150405.000")
	if err := os.Rename(j.path, rotated); err != nil {
		return "", fmt.Errorf("journal: rotate: %w", err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// the open handle still points at the rotated file
		if rerr := os.Rename(rotated, j.path); rerr != nil {
			return "", fmt.Errorf("journal: reopen after rotate: %w (restore: %v)", err, rerr)
		}
		return "", fmt.Errorf("journal: reopen after rotate: %w", err)
	}

	prev := j.file
	j.file = file
	j.seq = 0
	if err := prev.Close(); err != nil {
		return rotated, fmt.Errorf("journal: close rotated file: %w", err)
	}
	return rotated, nil
}

// Close syncs and closes the file. Closing twice is not an error.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Sync()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.file = nil
	return err
}

// ============================================================================
// Reading
// ============================================================================

func replayFile(path string, handler Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return replay(f, handler)
}

func replay(r io.Reader, handler Handler) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var (
		line    int
		lastSeq uint64
	)
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return &CorruptionError{Line: line, Cause: fmt.Errorf("%w: %v", ErrCorruptedJournal, err)}
		}
		if !VerifyChecksum(e) {
			return &CorruptionError{Line: line, Seq: e.Seq, Cause: &ChecksumError{
				Seq:      e.Seq,
				Expected: e.Checksum,
				Actual:   CalculateChecksum(e),
			}}
		}
		if e.Seq != lastSeq+1 {
			return &CorruptionError{Line: line, Seq: e.Seq,
				Cause: fmt.Errorf("%w: expected seq %d", ErrCorruptedJournal, lastSeq+1)}
		}
		lastSeq = e.Seq
		if err := handler(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return &CorruptionError{Line: line + 1, Cause: fmt.Errorf("%w: %v", ErrCorruptedJournal, err)}
	}
	return nil
}

// ReadAll returns every entry of the file at path. A missing file is empty.
func ReadAll(path string) ([]Entry, error) {
	var out []Entry
	err := replayFile(path, func(e Entry) error {
		out = append(out, e)
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

// FileStats summarises the file at path.
func FileStats(path string) (Stats, error) {
	var s Stats
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	s.SizeBytes = info.Size()
	err = replayFile(path, func(e Entry) error {
		if s.Entries == 0 {
			s.FirstSeq = e.Seq
		}
		s.Entries++
		s.LastSeq = e.Seq
		return nil
	})
	return s, err
}

// Repair copies the longest valid prefix of src to dst and reports how many
// entries it kept. dst is written atomically.
func Repair(src, dst string) (int, error) {
	var kept []Entry
	err := replayFile(src, func(e Entry) error {
		kept = append(kept, e)
		return nil
	})
	var corruption *CorruptionError
	if err != nil && !errors.As(err, &corruption) {
		return 0, err
	}

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("journal: create repaired file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			f.Close()
			os.Remove(tmp)
			return 0, fmt.Errorf("journal: write repaired file: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("journal: rename repaired file: %w", err)
	}
	return len(kept), nil
}

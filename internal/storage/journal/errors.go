package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptedJournal means a line could not be read back as an entry.
	ErrCorruptedJournal = errors.New("journal: file is corrupted")

	// ErrChecksumMismatch means an entry does not match its checksum.
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")

	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal: already closed")
)

// ChecksumError carries the stored and recomputed checksum of one entry.
type ChecksumError struct {
	Seq      uint64
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("journal: checksum mismatch at seq=%d (expected=0x%08x, got=0x%08x)", e.Seq, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// CorruptionError locates a bad line. It matches ErrCorruptedJournal with
// errors.Is, whatever the cause.
type CorruptionError struct {
	Line  int    // 1-based line number
	Seq   uint64 // sequence of the bad entry, if it could be decoded
	Cause error
}

func (e *CorruptionError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("journal: corrupted entry seq=%d on line %d: %v", e.Seq, e.Line, e.Cause)
	}
	return fmt.Sprintf("journal: corrupted line %d: %v", e.Line, e.Cause)
}

func (e *CorruptionError) Unwrap() error { return e.Cause }

func (e *CorruptionError) Is(target error) bool { return target == ErrCorruptedJournal }

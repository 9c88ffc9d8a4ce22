package journal

// ============================================================================
// Journal record layout
// ============================================================================

// Entry is one line of the journal: a committed change to the book.
type Entry struct {
	Seq       uint64 `json:"seq"`       // monotonically increasing, starts at 1
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	Entity    string `json:"entity"`    // machine, job, person, admin or book
	Kind      string `json:"kind"`      // added, removed, updated, status_changed, reset
	Key       string `json:"key,omitempty"`
	Name      string `json:"name,omitempty"`
	Machine   string `json:"machine,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Checksum  uint32 `json:"checksum"`
}

// Handler receives entries during Replay. Returning an error stops the replay.
type Handler func(e Entry) error

// Stats summarises a journal file.
type Stats struct {
	Entries   int
	FirstSeq  uint64
	LastSeq   uint64
	SizeBytes int64
}

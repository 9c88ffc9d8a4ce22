package types

// CurrentSchemaVersion is written into every persisted document.
const CurrentSchemaVersion = 1

// ============================================================================
// Persisted record layout
// ============================================================================
//
// Required fields are pointers so that a missing field can be told apart from
// an empty one when the document is loaded. Jobs reference their machine and
// owner by name instead of embedding them.

// PersistedAddressBook is the whole book as one document.
type PersistedAddressBook struct {
	SchemaVer int                `json:"schema_version" yaml:"schema_version"`
	Persons   []PersistedPerson  `json:"persons" yaml:"persons"`
	Admins    []PersistedAdmin   `json:"admins" yaml:"admins"`
	Machines  []PersistedMachine `json:"machines" yaml:"machines"`
	Jobs      []PersistedJob     `json:"jobs" yaml:"jobs"`
}

type PersistedPerson struct {
	Name    *string  `json:"name" yaml:"name"`
	Phone   *string  `json:"phone" yaml:"phone"`
	Email   *string  `json:"email" yaml:"email"`
	Address *string  `json:"address" yaml:"address"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type PersistedAdmin struct {
	Username     *string `json:"username" yaml:"username"`
	PasswordHash *string `json:"password_hash" yaml:"password_hash"`
}

type PersistedMachine struct {
	Name   *string  `json:"name" yaml:"name"`
	Status *string  `json:"status" yaml:"status"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type PersistedJob struct {
	ID                string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name              *string   `json:"name" yaml:"name"`
	Machine           *string   `json:"machine" yaml:"machine"`
	Owner             *string   `json:"owner" yaml:"owner"`
	AddedTime         *string   `json:"added_time" yaml:"added_time"`
	StartTime         *string   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Priority          *string   `json:"priority" yaml:"priority"`
	Duration          *float64  `json:"duration" yaml:"duration"`
	Status            *string   `json:"status" yaml:"status"`
	Tags              *[]string `json:"tags" yaml:"tags"`
	Note              *string   `json:"note" yaml:"note"`
	DeletionRequested bool      `json:"deletion_requested,omitempty" yaml:"deletion_requested,omitempty"`
}

// Ptr is a small helper for building records in code and tests.
func Ptr[T any](v T) *T { return &v }

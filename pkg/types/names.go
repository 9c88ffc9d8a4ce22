// Package types holds the value types shared by the lab book: validated
// names and tags, the status/priority enums, the error kinds and the
// persisted record layout.
package types

import (
	"regexp"
	"sort"
	"strings"
)

// The first character must not be a space, otherwise " " becomes a valid name.
var (
	nameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ]*$`)
	tagRegex  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

const nameConstraints = "should only contain alphanumeric characters and spaces, and it should not be blank"

// IsValidName reports whether s is acceptable as a machine, job, person or user name.
func IsValidName(s string) bool {
	return nameRegex.MatchString(s)
}

// ============================================================================
// Name value types
// ============================================================================

// MachineName identifies a machine. Comparable with ==, case-sensitive.
type MachineName struct{ v string }

// JobName is the display name of a job.
type JobName struct{ v string }

// PersonName identifies a person.
type PersonName struct{ v string }

// Username identifies an admin.
type Username struct{ v string }

func NewMachineName(s string) (MachineName, error) {
	if !IsValidName(s) {
		return MachineName{}, Errorf(ErrInvalidFormat, "machine name %q %s", s, nameConstraints)
	}
	return MachineName{v: s}, nil
}

func NewJobName(s string) (JobName, error) {
	if !IsValidName(s) {
		return JobName{}, Errorf(ErrInvalidFormat, "job name %q %s", s, nameConstraints)
	}
	return JobName{v: s}, nil
}

func NewPersonName(s string) (PersonName, error) {
	if !IsValidName(s) {
		return PersonName{}, Errorf(ErrInvalidFormat, "person name %q %s", s, nameConstraints)
	}
	return PersonName{v: s}, nil
}

func NewUsername(s string) (Username, error) {
	if !IsValidName(s) {
		return Username{}, Errorf(ErrInvalidFormat, "username %q %s", s, nameConstraints)
	}
	return Username{v: s}, nil
}

// MustMachineName is NewMachineName for literals known to be valid.
func MustMachineName(s string) MachineName {
	n, err := NewMachineName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func MustJobName(s string) JobName {
	n, err := NewJobName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func MustPersonName(s string) PersonName {
	n, err := NewPersonName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n MachineName) String() string { return n.v }
func (n JobName) String() string     { return n.v }
func (n PersonName) String() string  { return n.v }
func (n Username) String() string    { return n.v }

func (n MachineName) IsZero() bool { return n.v == "" }
func (n PersonName) IsZero() bool  { return n.v == "" }

// ============================================================================
// Tags
// ============================================================================

// Tag is a short alphanumeric label attached to machines, jobs and persons.
type Tag struct{ v string }

func NewTag(s string) (Tag, error) {
	if !tagRegex.MatchString(s) {
		return Tag{}, Errorf(ErrInvalidFormat, "tag %q should be alphanumeric", s)
	}
	return Tag{v: s}, nil
}

func (t Tag) String() string { return t.v }

// TagSet is an immutable, sorted set of tags unique by name.
type TagSet struct{ tags []Tag }

// NewTagSet deduplicates and sorts tags.
func NewTagSet(tags ...Tag) TagSet {
	if len(tags) == 0 {
		return TagSet{}
	}
	seen := make(map[string]bool, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if seen[t.v] {
			continue
		}
		seen[t.v] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].v < out[j].v })
	return TagSet{tags: out}
}

// ParseTags validates raw tag names into a TagSet.
func ParseTags(raw []string) (TagSet, error) {
	tags := make([]Tag, 0, len(raw))
	for _, r := range raw {
		t, err := NewTag(r)
		if err != nil {
			return TagSet{}, err
		}
		tags = append(tags, t)
	}
	return NewTagSet(tags...), nil
}

// Tags returns a copy of the tags in sorted order.
func (s TagSet) Tags() []Tag {
	return append([]Tag(nil), s.tags...)
}

// Strings returns the tag names in sorted order, never nil.
func (s TagSet) Strings() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = t.v
	}
	return out
}

func (s TagSet) Len() int { return len(s.tags) }

func (s TagSet) Has(name string) bool {
	for _, t := range s.tags {
		if t.v == name {
			return true
		}
	}
	return false
}

func (s TagSet) Equal(o TagSet) bool {
	if len(s.tags) != len(o.tags) {
		return false
	}
	for i := range s.tags {
		if s.tags[i] != o.tags[i] {
			return false
		}
	}
	return true
}

func (s TagSet) String() string {
	return "[" + strings.Join(s.Strings(), ", ") + "]"
}

// Package history keeps committed address book states for undo and redo.
//
// Every commit stores a snapshot of the book. Snapshots share the immutable
// entity values of the book they were taken from, so a long history costs
// one list spine per state rather than a deep copy.
package history

import (
	"errors"

	"github.com/ChuLiYu/labqueue/internal/model"
)

var (
	ErrNoUndo = errors.New("no more commands to undo")
	ErrNoRedo = errors.New("no more commands to redo")
)

// Versioned is a linear undo/redo history. Committing after an undo drops
// the states that could have been redone.
//
// Not safe for concurrent use; the job manager serialises access.
type Versioned struct {
	states  []*model.AddressBook
	current int
	limit   int
}

// New starts a history whose only state is a snapshot of initial. A limit
// above zero caps how many undo steps are kept; older states are dropped.
func New(initial *model.AddressBook, limit int) *Versioned {
	return &Versioned{
		states: []*model.AddressBook{initial.Snapshot()},
		limit:  limit,
	}
}

// Commit records a snapshot of book as the newest state.
func (v *Versioned) Commit(book *model.AddressBook) {
	v.states = append(v.states[:v.current+1], book.Snapshot())
	v.current = len(v.states) - 1

	if v.limit > 0 && len(v.states) > v.limit+1 {
		drop := len(v.states) - (v.limit + 1)
		// clear dropped slots so their books can be collected
		for i := 0; i < drop; i++ {
			v.states[i] = nil
		}
		v.states = v.states[drop:]
		v.current -= drop
	}
}

// Undo steps back one state and returns a copy of it.
func (v *Versioned) Undo() (*model.AddressBook, error) {
	if !v.CanUndo() {
		return nil, ErrNoUndo
	}
	v.current--
	return v.states[v.current].Snapshot(), nil
}

// Redo steps forward one state and returns a copy of it.
func (v *Versioned) Redo() (*model.AddressBook, error) {
	if !v.CanRedo() {
		return nil, ErrNoRedo
	}
	v.current++
	return v.states[v.current].Snapshot(), nil
}

func (v *Versioned) CanUndo() bool { return v.current > 0 }

func (v *Versioned) CanRedo() bool { return v.current < len(v.states)-1 }

// UndoDepth is the number of steps Undo can still take.
func (v *Versioned) UndoDepth() int { return v.current }

// RedoDepth is the number of steps Redo can still take.
func (v *Versioned) RedoDepth() int { return len(v.states) - 1 - v.current }

// Reset forgets every state and starts over from book.
func (v *Versioned) Reset(book *model.AddressBook) {
	v.states = []*model.AddressBook{book.Snapshot()}
	v.current = 0
}

// Package storage converts the address book to and from its persisted
// record and defines the interface every document store implements.
package storage

import (
	"context"
	"errors"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ErrNoData is returned by Load when nothing has been saved yet.
var ErrNoData = errors.New("no saved address book")

// Store persists the whole book as one document.
type Store interface {
	// Load returns the last saved document, or ErrNoData.
	Load(ctx context.Context) (*types.PersistedAddressBook, error)
	// Save replaces the stored document. A failed save leaves the previous
	// one intact.
	Save(ctx context.Context, rec *types.PersistedAddressBook) error
	Close() error
}

// Package codec imports and exports the persisted address book in
// human-editable formats.
package codec

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ErrUnsupportedVersion is returned when an imported document was written by
// another schema version.
var ErrUnsupportedVersion = errors.New("unsupported schema version")

// checkVersion defaults a missing version to the current one.
func checkVersion(rec *types.PersistedAddressBook) error {
	if rec.SchemaVer == 0 {
		rec.SchemaVer = types.CurrentSchemaVersion
	}
	if rec.SchemaVer != types.CurrentSchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, rec.SchemaVer, types.CurrentSchemaVersion)
	}
	return nil
}

// Importer reads a persisted book.
type Importer interface {
	Parse(r io.Reader) (*types.PersistedAddressBook, error)
	Format() string
}

// Exporter writes a persisted book.
type Exporter interface {
	Export(rec *types.PersistedAddressBook, w io.Writer) error
	Format() string
}

// Codec does both.
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec named format ("yaml", "yml" or "json").
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (want yaml or json)", format)
	}
}

// ForPath picks a codec from the file extension.
func ForPath(path string) (Codec, error) {
	return ForFormat(filepath.Ext(path))
}

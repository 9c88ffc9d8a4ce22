package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// JSONCodec reads and writes the same layout as the snapshot store.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Format() string {
	return "json"
}

func (c *JSONCodec) Parse(r io.Reader) (*types.PersistedAddressBook, error) {
	var rec types.PersistedAddressBook
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rec); err != nil {
		return nil, types.Errorf(types.ErrCorruptedData, "failed to parse JSON: %v", err)
	}
	if err := checkVersion(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *JSONCodec) Export(rec *types.PersistedAddressBook, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

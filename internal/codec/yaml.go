package codec

import (
	"fmt"
	"io"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads one YAML document. Unknown keys are rejected so that a typo in
// a hand-written file does not silently drop a field.
func (c *YAMLCodec) Parse(r io.Reader) (*types.PersistedAddressBook, error) {
	var rec types.PersistedAddressBook
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, types.Errorf(types.ErrCorruptedData, "YAML document is empty")
		}
		return nil, types.Errorf(types.ErrCorruptedData, "failed to parse YAML: %v", err)
	}
	if err := checkVersion(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *YAMLCodec) Export(rec *types.PersistedAddressBook, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

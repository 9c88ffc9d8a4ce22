package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *types.PersistedAddressBook {
	return &types.PersistedAddressBook{
		SchemaVer: types.CurrentSchemaVersion,
		Persons: []types.PersistedPerson{{
			Name:    types.Ptr("Amy"),
			Phone:   types.Ptr("11111111"),
			Email:   types.Ptr("amy@example.com"),
			Address: types.Ptr("Block 312"),
			Tags:    []string{"friend"},
		}},
		Admins: []types.PersistedAdmin{},
		Machines: []types.PersistedMachine{{
			Name:   types.Ptr("ULTIMAKER"),
			Status: types.Ptr("ENABLED"),
		}},
		Jobs: []types.PersistedJob{{
			ID:        "5f0c8f3e-1d1b-4a47-9d7e-0c4a3b2f1e01",
			Name:      types.Ptr("Max Print"),
			Machine:   types.Ptr("ULTIMAKER"),
			Owner:     types.Ptr("Amy"),
			AddedTime: types.Ptr("2026-03-10T13:19:20Z"),
			StartTime: types.Ptr("2026-03-10T13:49:20Z"),
			Priority:  types.Ptr("URGENT"),
			Duration:  types.Ptr(1.5),
			Status:    types.Ptr("ONGOING"),
			Tags:      &[]string{},
			Note:      types.Ptr(""),
		}},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			c, err := ForFormat(format)
			require.NoError(t, err)
			assert.Equal(t, format, c.Format())

			var buf bytes.Buffer
			require.NoError(t, c.Export(sampleRecord(), &buf))
			got, err := c.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord(), got)
		})
	}
}

func TestYAMLLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(sampleRecord(), &buf))
	out := buf.String()
	assert.Contains(t, out, "schema_version: 1")
	assert.Contains(t, out, "2026-03-10T13:19:20Z")
	assert.Contains(t, out, "name: ULTIMAKER")
	assert.NotContains(t, out, "deletion_requested")
}

func TestParseHandWrittenYAML(t *testing.T) {
	doc := `
machines:
  - name: ENDER
    status: DISABLED
    tags: [printer]
persons: []
admins: []
jobs: []
`
	rec, err := NewYAMLCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, types.CurrentSchemaVersion, rec.SchemaVer)
	require.Len(t, rec.Machines, 1)
	assert.Equal(t, "DISABLED", *rec.Machines[0].Status)
	assert.Equal(t, []string{"printer"}, rec.Machines[0].Tags)
}

func TestParseErrors(t *testing.T) {
	_, err := NewYAMLCodec().Parse(strings.NewReader("machines:\n  - nmae: ENDER\n"))
	assert.ErrorIs(t, err, types.ErrCorruptedData)

	_, err = NewYAMLCodec().Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, types.ErrCorruptedData)

	_, err = NewJSONCodec().Parse(strings.NewReader(`{"machines": [`))
	assert.ErrorIs(t, err, types.ErrCorruptedData)
}

func TestParseRejectsOtherSchemaVersions(t *testing.T) {
	_, err := NewYAMLCodec().Parse(strings.NewReader("schema_version: 99\nmachines: []\n"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = NewJSONCodec().Parse(strings.NewReader(`{"schema_version": 99}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	rec, err := NewJSONCodec().Parse(strings.NewReader(`{"machines": []}`))
	require.NoError(t, err)
	assert.Equal(t, types.CurrentSchemaVersion, rec.SchemaVer)
}

func TestForPath(t *testing.T) {
	c, err := ForPath("backup/book.yml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", c.Format())

	c, err = ForPath("book.JSON")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Format())

	_, err = ForPath("book.xml")
	assert.Error(t, err)
}

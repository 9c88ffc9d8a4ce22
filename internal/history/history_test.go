package history

import (
	"testing"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookWith(t *testing.T, machines ...string) *model.AddressBook {
	t.Helper()
	ab := model.NewAddressBook()
	for _, name := range machines {
		m, err := model.NewMachine(name, types.MachineEnabled, nil)
		require.NoError(t, err)
		require.NoError(t, ab.AddMachine(m))
	}
	return ab
}

func machineNames(ab *model.AddressBook) []string {
	var out []string
	for _, m := range ab.Machines() {
		out = append(out, m.Name.String())
	}
	return out
}

func TestUndoRedo(t *testing.T) {
	v := New(bookWith(t), 0)
	assert.False(t, v.CanUndo())
	assert.False(t, v.CanRedo())

	v.Commit(bookWith(t, "ENDER"))
	v.Commit(bookWith(t, "ENDER", "ULTIMAKER"))
	assert.Equal(t, 2, v.UndoDepth())

	got, err := v.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"ENDER"}, machineNames(got))

	got, err = v.Undo()
	require.NoError(t, err)
	assert.Empty(t, got.Machines())

	_, err = v.Undo()
	assert.ErrorIs(t, err, ErrNoUndo)

	got, err = v.Redo()
	require.NoError(t, err)
	assert.Equal(t, []string{"ENDER"}, machineNames(got))
	assert.Equal(t, 1, v.RedoDepth())
}

func TestCommitDropsRedo(t *testing.T) {
	v := New(bookWith(t), 0)
	v.Commit(bookWith(t, "ENDER"))
	_, err := v.Undo()
	require.NoError(t, err)
	require.True(t, v.CanRedo())

	v.Commit(bookWith(t, "PRUSA"))
	assert.False(t, v.CanRedo())
	_, err = v.Redo()
	assert.ErrorIs(t, err, ErrNoRedo)
}

func TestCommitStoresSnapshot(t *testing.T) {
	ab := bookWith(t, "ENDER")
	v := New(model.NewAddressBook(), 0)
	v.Commit(ab)

	m, err := model.NewMachine("PRUSA", types.MachineEnabled, nil)
	require.NoError(t, err)
	require.NoError(t, ab.AddMachine(m))

	v.Commit(bookWith(t))
	got, err := v.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"ENDER"}, machineNames(got))

	// the returned book is a copy
	require.NoError(t, got.AddMachine(m))
	_, err = v.Redo()
	require.NoError(t, err)
	got, err = v.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"ENDER"}, machineNames(got))
}

func TestLimit(t *testing.T) {
	v := New(bookWith(t), 2)
	v.Commit(bookWith(t, "A"))
	v.Commit(bookWith(t, "A", "B"))
	v.Commit(bookWith(t, "A", "B", "C"))

	assert.Equal(t, 2, v.UndoDepth())
	_, err := v.Undo()
	require.NoError(t, err)
	got, err := v.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, machineNames(got))
	_, err = v.Undo()
	assert.ErrorIs(t, err, ErrNoUndo)
}

func TestReset(t *testing.T) {
	v := New(bookWith(t), 0)
	v.Commit(bookWith(t, "A"))
	v.Reset(bookWith(t, "B"))
	assert.False(t, v.CanUndo())
	assert.False(t, v.CanRedo())
}

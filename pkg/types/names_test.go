package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMachineName_Valid(t *testing.T) {
	for _, s := range []string{"ULTIMAKER", "ender 3", "a", "3D printer 2", "Laser  Cutter"} {
		n, err := NewMachineName(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, n.String())
	}
}

func TestNewMachineName_Invalid(t *testing.T) {
	for _, s := range []string{"", " ", " leading", "ultimaker&", "hubby*", "tab\tname", "émile"} {
		_, err := NewMachineName(s)
		require.Error(t, err, "%q should be rejected", s)
		assert.True(t, errors.Is(err, ErrInvalidFormat), "%q: got %v", s, err)
	}
}

func TestNameConstructorsShareRule(t *testing.T) {
	_, err := NewJobName("James&")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = NewPersonName("")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = NewUsername(" admin")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	u, err := NewUsername("admin1")
	require.NoError(t, err)
	assert.Equal(t, "admin1", u.String())
}

func TestNameEqualityIsCaseSensitive(t *testing.T) {
	a := MustMachineName("Ender")
	b := MustMachineName("Ender")
	c := MustMachineName("ender")
	assert.True(t, a == b)
	assert.False(t, a == c)
}

func TestTagSet(t *testing.T) {
	set, err := ParseTags([]string{"pla", "abs", "pla"})
	require.NoError(t, err)
	assert.Equal(t, []string{"abs", "pla"}, set.Strings())
	assert.True(t, set.Has("abs"))
	assert.False(t, set.Has("petg"))

	other, err := ParseTags([]string{"abs", "pla"})
	require.NoError(t, err)
	assert.True(t, set.Equal(other))

	_, err = ParseTags([]string{"hubby*"})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	assert.Equal(t, []string{}, TagSet{}.Strings())
}

func TestParseEnums(t *testing.T) {
	st, err := ParseJobStatus("ongoing")
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, st)
	_, err = ParseJobStatus("PEANUTMAN")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	p, err := ParsePriority("Urgent")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)
	_, err = ParsePriority("high")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	ms, err := ParseMachineStatus("DISABLED")
	require.NoError(t, err)
	assert.Equal(t, MachineDisabled, ms)
	_, err = ParseMachineStatus("broken")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusQueued.IsTerminal())
	assert.True(t, StatusOngoing.IsActive())
	assert.False(t, StatusFinished.IsActive())
}

func TestModelErrorMessage(t *testing.T) {
	err := Errorf(ErrDuplicateEntity, "machine %q already exists", "Ender")
	assert.Equal(t, `duplicate entity: machine "Ender" already exists`, err.Error())
	assert.ErrorIs(t, err, ErrDuplicateEntity)

	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, ErrDuplicateEntity, me.Kind)
}

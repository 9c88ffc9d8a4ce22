package model

import (
	"testing"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPerson_Validation(t *testing.T) {
	tests := []struct {
		name                 string
		person, phone, email string
		address              string
		tags                 []string
		wantErr              bool
	}{
		{"valid", "Amy Bee", "11111111", "amy@example.com", "Block 312", []string{"friend"}, false},
		{"bad name", "James&", "11111111", "amy@example.com", "Block 312", nil, true},
		{"bad phone", "Amy", "911a", "amy@example.com", "Block 312", nil, true},
		{"short phone", "Amy", "91", "amy@example.com", "Block 312", nil, true},
		{"bad email", "Amy", "11111111", "bob!yahoo", "Block 312", nil, true},
		{"blank address", "Amy", "11111111", "amy@example.com", "  ", nil, true},
		{"bad tag", "Amy", "11111111", "amy@example.com", "Block 312", []string{"hubby*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPerson(tt.person, tt.phone, tt.email, tt.address, tt.tags)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidFormat)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPersonIdentity(t *testing.T) {
	a := newTestPerson(t, "Amy")
	b, err := NewPerson("Amy", "22222222", "amy@other.org", "elsewhere", nil)
	require.NoError(t, err)

	assert.True(t, a.IsSamePerson(b))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestAdminPassword(t *testing.T) {
	a, err := NewAdmin("admin", "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", a.PasswordHash)
	assert.True(t, a.CheckPassword("hunter22"))
	assert.False(t, a.CheckPassword("hunter23"))

	restored, err := RestoreAdmin("admin", a.PasswordHash)
	require.NoError(t, err)
	assert.True(t, restored.Equal(a))

	_, err = RestoreAdmin("admin", "plaintext")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)

	_, err = NewAdmin("admin", "short")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

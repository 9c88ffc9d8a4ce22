package model

import (
	"testing"
	"time"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	HashCost = bcrypt.MinCost
}

var testNow = time.Date(2026, 3, 10, 13, 19, 20, 0, time.UTC)

func newTestPerson(t *testing.T, name string) Person {
	t.Helper()
	p, err := NewPerson(name, "11111111", "amy@example.com", "Block 312, Amy Street 1", []string{"friend"})
	require.NoError(t, err)
	return p
}

func newTestMachine(t *testing.T, name string) Machine {
	t.Helper()
	m, err := NewMachine(name, types.MachineEnabled, nil)
	require.NoError(t, err)
	return m
}

func newTestJob(t *testing.T, name, machine, owner string, duration float64) Job {
	t.Helper()
	j, err := NewJob(JobSpec{
		Name:     name,
		Machine:  machine,
		Owner:    owner,
		Duration: duration,
		Note:     "This job is meant for the iDCP project",
		Tags:     []string{"csmodule"},
	}, testNow)
	require.NoError(t, err)
	return j
}

// newTestBook has persons Amy and Bob and machines ULTIMAKER and ENDER.
func newTestBook(t *testing.T) *AddressBook {
	t.Helper()
	ab := NewAddressBook()
	require.NoError(t, ab.AddPerson(newTestPerson(t, "Amy")))
	require.NoError(t, ab.AddPerson(newTestPerson(t, "Bob")))
	require.NoError(t, ab.AddMachine(newTestMachine(t, "ULTIMAKER")))
	require.NoError(t, ab.AddMachine(newTestMachine(t, "ENDER")))
	return ab
}

func setStatus(t *testing.T, ab *AddressBook, j Job, to ...types.JobStatus) Job {
	t.Helper()
	for _, s := range to {
		m, ok := ab.Machine(j.Machine)
		require.True(t, ok)
		next, err := j.Transition(s, m.Status, testNow)
		require.NoError(t, err)
		require.NoError(t, ab.ReplaceJob(next))
		j = next
	}
	return j
}

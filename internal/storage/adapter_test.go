package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	model.HashCost = bcrypt.MinCost
}

var testNow = time.Date(2026, 3, 10, 13, 19, 20, 0, time.UTC)

// sampleBook covers every entity kind and every job status.
func sampleBook(t *testing.T) *model.AddressBook {
	t.Helper()
	ab := model.NewAddressBook()

	for _, name := range []string{"Amy", "Bob"} {
		p, err := model.NewPerson(name, "94351253", "alice@example.com", "123, Jurong West Ave 6", []string{"friends"})
		require.NoError(t, err)
		require.NoError(t, ab.AddPerson(p))
	}
	a, err := model.NewAdmin("admin", "password1")
	require.NoError(t, err)
	require.NoError(t, ab.AddAdmin(a))

	ultimaker, err := model.NewMachine("ULTIMAKER", types.MachineEnabled, []string{"printer", "large"})
	require.NoError(t, err)
	require.NoError(t, ab.AddMachine(ultimaker))
	ender, err := model.NewMachine("ENDER", types.MachineDisabled, nil)
	require.NoError(t, err)
	require.NoError(t, ab.AddMachine(ender))

	specs := []struct {
		name   string
		path   []types.JobStatus
		delete bool
	}{
		{"queued", nil, true},
		{"ongoing", []types.JobStatus{types.StatusOngoing}, false},
		{"finished", []types.JobStatus{types.StatusOngoing, types.StatusFinished}, false},
		{"cancelled", []types.JobStatus{types.StatusCancelled}, false},
	}
	for i, s := range specs {
		j, err := model.NewJob(model.JobSpec{
			Name:     s.name,
			Machine:  "ULTIMAKER",
			Owner:    []string{"Amy", "Bob"}[i%2],
			Priority: types.PriorityUrgent,
			Duration: float64(i) + 0.5,
			Note:     "This job is meant for the iDCP project",
			Tags:     []string{"csmodule", "cegmodule"},
		}, testNow)
		require.NoError(t, err)
		for _, to := range s.path {
			j, err = j.Transition(to, types.MachineEnabled, testNow.Add(time.Hour))
			require.NoError(t, err)
		}
		if s.delete {
			j, err = j.WithDeletionRequested(true)
			require.NoError(t, err)
		}
		require.NoError(t, ab.AddJob(j))
	}

	j, err := model.NewJob(model.JobSpec{Name: "plain", Machine: "ENDER", Owner: "Bob", Duration: 0}, testNow)
	require.NoError(t, err)
	require.NoError(t, ab.AddJob(j))
	return ab
}

func TestRoundTrip(t *testing.T) {
	book := sampleBook(t)

	restored, err := FromPersisted(ToPersisted(book))
	require.NoError(t, err)
	assert.True(t, restored.Equal(book))

	// and through JSON, as the stores do
	data, err := json.Marshal(ToPersisted(book))
	require.NoError(t, err)
	var rec types.PersistedAddressBook
	require.NoError(t, json.Unmarshal(data, &rec))
	restored, err = FromPersisted(&rec)
	require.NoError(t, err)
	assert.True(t, restored.Equal(book))

	m, ok := restored.Machine(types.MustMachineName("ULTIMAKER"))
	require.True(t, ok)
	assert.Len(t, m.JobIDs(), 4)
}

func TestRoundTrip_Empty(t *testing.T) {
	rec := ToPersisted(model.NewAddressBook())
	assert.Equal(t, types.CurrentSchemaVersion, rec.SchemaVer)
	assert.NotNil(t, rec.Jobs)

	restored, err := FromPersisted(rec)
	require.NoError(t, err)
	assert.Empty(t, restored.Machines())
}

func TestToPersisted_StartTimeOmitted(t *testing.T) {
	rec := ToPersisted(sampleBook(t))
	require.Len(t, rec.Jobs, 5)
	assert.Nil(t, rec.Jobs[0].StartTime)
	require.NotNil(t, rec.Jobs[1].StartTime)
	assert.Equal(t, "2026-03-10T14:19:20Z", *rec.Jobs[1].StartTime)
	assert.Equal(t, []string{"cegmodule", "csmodule"}, *rec.Jobs[0].Tags)
	assert.Empty(t, *rec.Jobs[4].Tags)
}

func TestFromPersisted_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rec *types.PersistedAddressBook)
	}{
		{"machine name", func(r *types.PersistedAddressBook) { r.Machines[0].Name = nil }},
		{"machine status", func(r *types.PersistedAddressBook) { r.Machines[0].Status = nil }},
		{"job name", func(r *types.PersistedAddressBook) { r.Jobs[0].Name = nil }},
		{"job added time", func(r *types.PersistedAddressBook) { r.Jobs[0].AddedTime = nil }},
		{"job priority", func(r *types.PersistedAddressBook) { r.Jobs[0].Priority = nil }},
		{"job duration", func(r *types.PersistedAddressBook) { r.Jobs[0].Duration = nil }},
		{"job status", func(r *types.PersistedAddressBook) { r.Jobs[0].Status = nil }},
		{"job tags", func(r *types.PersistedAddressBook) { r.Jobs[0].Tags = nil }},
		{"job note", func(r *types.PersistedAddressBook) { r.Jobs[0].Note = nil }},
		{"person phone", func(r *types.PersistedAddressBook) { r.Persons[0].Phone = nil }},
		{"admin hash", func(r *types.PersistedAddressBook) { r.Admins[0].PasswordHash = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToPersisted(sampleBook(t))
			tt.mutate(rec)
			book, err := FromPersisted(rec)
			assert.ErrorIs(t, err, types.ErrCorruptedData)
			assert.Nil(t, book)
		})
	}
}

func TestFromPersisted_MalformedFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rec *types.PersistedAddressBook)
	}{
		{"machine name", func(r *types.PersistedAddressBook) { r.Machines[0].Name = types.Ptr("ULTI*MAKER") }},
		{"machine status", func(r *types.PersistedAddressBook) { r.Machines[0].Status = types.Ptr("BROKEN") }},
		{"job status", func(r *types.PersistedAddressBook) { r.Jobs[0].Status = types.Ptr("PAUSED") }},
		{"job priority", func(r *types.PersistedAddressBook) { r.Jobs[0].Priority = types.Ptr("") }},
		{"job duration", func(r *types.PersistedAddressBook) { r.Jobs[0].Duration = types.Ptr(-2.0) }},
		{"job id", func(r *types.PersistedAddressBook) { r.Jobs[0].ID = "job-1" }},
		{"job tag", func(r *types.PersistedAddressBook) { r.Jobs[0].Tags = &[]string{"cs module"} }},
		{"duplicate machine", func(r *types.PersistedAddressBook) { r.Machines[1].Name = r.Machines[0].Name }},
		{"duplicate job id", func(r *types.PersistedAddressBook) { r.Jobs[1].ID = r.Jobs[0].ID }},
		{"admin hash", func(r *types.PersistedAddressBook) { r.Admins[0].PasswordHash = types.Ptr("plaintext") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToPersisted(sampleBook(t))
			tt.mutate(rec)
			book, err := FromPersisted(rec)
			assert.ErrorIs(t, err, types.ErrCorruptedData)
			assert.Nil(t, book)
		})
	}
}

func TestFromPersisted_DanglingReference(t *testing.T) {
	rec := ToPersisted(sampleBook(t))
	rec.Jobs[2].Machine = types.Ptr("PRUSA")
	book, err := FromPersisted(rec)
	assert.ErrorIs(t, err, types.ErrDanglingReference)
	assert.Nil(t, book)

	rec = ToPersisted(sampleBook(t))
	rec.Jobs[0].Owner = types.Ptr("Carl")
	book, err = FromPersisted(rec)
	assert.ErrorIs(t, err, types.ErrDanglingReference)
	assert.Nil(t, book)
}

func TestFromPersisted_GeneratesMissingID(t *testing.T) {
	rec := ToPersisted(sampleBook(t))
	rec.Jobs[0].ID = ""
	book, err := FromPersisted(rec)
	require.NoError(t, err)

	j := book.Jobs()[0]
	_, err = model.ParseJobID(string(j.ID))
	assert.NoError(t, err)
	assert.Equal(t, "queued", j.Name.String())
}

func TestFromPersisted_Nil(t *testing.T) {
	_, err := FromPersisted(nil)
	assert.ErrorIs(t, err, types.ErrCorruptedData)
}

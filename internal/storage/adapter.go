package storage

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ============================================================================
// Book -> record
// ============================================================================

// ToPersisted flattens book. Jobs are written in book order and refer to
// their machine and owner by name.
func ToPersisted(book *model.AddressBook) *types.PersistedAddressBook {
	rec := &types.PersistedAddressBook{
		SchemaVer: types.CurrentSchemaVersion,
		Persons:   []types.PersistedPerson{},
		Admins:    []types.PersistedAdmin{},
		Machines:  []types.PersistedMachine{},
		Jobs:      []types.PersistedJob{},
	}
	for _, p := range book.Persons() {
		rec.Persons = append(rec.Persons, types.PersistedPerson{
			Name:    types.Ptr(p.Name.String()),
			Phone:   types.Ptr(p.Phone),
			Email:   types.Ptr(p.Email),
			Address: types.Ptr(p.Address),
			Tags:    tagsOrNil(p.Tags),
		})
	}
	for _, a := range book.Admins() {
		rec.Admins = append(rec.Admins, types.PersistedAdmin{
			Username:     types.Ptr(a.Username.String()),
			PasswordHash: types.Ptr(a.PasswordHash),
		})
	}
	for _, m := range book.Machines() {
		rec.Machines = append(rec.Machines, types.PersistedMachine{
			Name:   types.Ptr(m.Name.String()),
			Status: types.Ptr(string(m.Status)),
			Tags:   tagsOrNil(m.Tags),
		})
	}
	for _, j := range book.Jobs() {
		pj := types.PersistedJob{
			ID:                string(j.ID),
			Name:              types.Ptr(j.Name.String()),
			Machine:           types.Ptr(j.Machine.String()),
			Owner:             types.Ptr(j.Owner.String()),
			AddedTime:         types.Ptr(j.AddedTime),
			Priority:          types.Ptr(string(j.Priority)),
			Duration:          types.Ptr(j.Duration),
			Status:            types.Ptr(string(j.Status)),
			Tags:              types.Ptr(j.Tags.Strings()),
			Note:              types.Ptr(j.Note),
			DeletionRequested: j.DeletionRequested,
		}
		if j.StartTime != "" {
			pj.StartTime = types.Ptr(j.StartTime)
		}
		rec.Jobs = append(rec.Jobs, pj)
	}
	return rec
}

func tagsOrNil(ts types.TagSet) []string {
	if ts.Len() == 0 {
		return nil
	}
	return ts.Strings()
}

// ============================================================================
// Record -> book
// ============================================================================

// FromPersisted rebuilds a book from rec, validating every field. Persons,
// admins and machines are restored first so that jobs can be checked against
// them. Missing or malformed fields fail with ErrCorruptedData, jobs naming an
// unknown machine or owner with ErrDanglingReference. On error no book is
// returned.
func FromPersisted(rec *types.PersistedAddressBook) (*model.AddressBook, error) {
	if rec == nil {
		return nil, types.Errorf(types.ErrCorruptedData, "document is empty")
	}
	book := model.NewAddressBook()

	for i, pp := range rec.Persons {
		if err := present(
			field{"name", pp.Name != nil},
			field{"phone", pp.Phone != nil},
			field{"email", pp.Email != nil},
			field{"address", pp.Address != nil},
		); err != nil {
			return nil, corrupted("person", i, err)
		}
		p, err := model.NewPerson(*pp.Name, *pp.Phone, *pp.Email, *pp.Address, pp.Tags)
		if err != nil {
			return nil, corrupted("person", i, err)
		}
		if err := book.AddPerson(p); err != nil {
			return nil, corrupted("person", i, err)
		}
	}

	for i, pa := range rec.Admins {
		if err := present(
			field{"username", pa.Username != nil},
			field{"password_hash", pa.PasswordHash != nil},
		); err != nil {
			return nil, corrupted("admin", i, err)
		}
		a, err := model.RestoreAdmin(*pa.Username, *pa.PasswordHash)
		if err != nil {
			return nil, corrupted("admin", i, err)
		}
		if err := book.AddAdmin(a); err != nil {
			return nil, corrupted("admin", i, err)
		}
	}

	for i, pm := range rec.Machines {
		if err := present(
			field{"name", pm.Name != nil},
			field{"status", pm.Status != nil},
		); err != nil {
			return nil, corrupted("machine", i, err)
		}
		if *pm.Status == "" {
			return nil, corrupted("machine", i, errors.New("status is empty"))
		}
		m, err := model.NewMachine(*pm.Name, types.MachineStatus(*pm.Status), pm.Tags)
		if err != nil {
			return nil, corrupted("machine", i, err)
		}
		if err := book.AddMachine(m); err != nil {
			return nil, corrupted("machine", i, err)
		}
	}

	for i, pj := range rec.Jobs {
		j, err := restoreJob(pj)
		if err != nil {
			return nil, corrupted("job", i, err)
		}
		if _, ok := book.Machine(j.Machine); !ok {
			return nil, types.Errorf(types.ErrDanglingReference,
				"job %d (%s) runs on unknown machine %q", i, j.Name, j.Machine)
		}
		if _, ok := book.Person(j.Owner); !ok {
			return nil, types.Errorf(types.ErrDanglingReference,
				"job %d (%s) is owned by unknown person %q", i, j.Name, j.Owner)
		}
		if err := book.AddJob(j); err != nil {
			return nil, corrupted("job", i, err)
		}
	}

	if err := book.Validate(); err != nil {
		return nil, types.Errorf(types.ErrCorruptedData, "%v", err)
	}
	return book, nil
}

func restoreJob(pj types.PersistedJob) (model.Job, error) {
	err := present(
		field{"name", pj.Name != nil},
		field{"machine", pj.Machine != nil},
		field{"owner", pj.Owner != nil},
		field{"added_time", pj.AddedTime != nil},
		field{"priority", pj.Priority != nil},
		field{"duration", pj.Duration != nil},
		field{"status", pj.Status != nil},
		field{"tags", pj.Tags != nil},
		field{"note", pj.Note != nil},
	)
	if err != nil {
		return model.Job{}, err
	}
	if *pj.Priority == "" {
		return model.Job{}, errors.New("priority is empty")
	}

	id := model.JobID(pj.ID)
	if pj.ID == "" {
		id = model.NewJobID()
	}
	start := ""
	if pj.StartTime != nil {
		start = *pj.StartTime
	}
	spec := model.JobSpec{
		Name:     *pj.Name,
		Machine:  *pj.Machine,
		Owner:    *pj.Owner,
		Priority: types.Priority(*pj.Priority),
		Duration: *pj.Duration,
		Note:     *pj.Note,
		Tags:     *pj.Tags,
	}
	return model.RestoreJob(id, spec, *pj.AddedTime, start, types.JobStatus(*pj.Status), pj.DeletionRequested)
}

type field struct {
	name    string
	present bool
}

func present(fields ...field) error {
	for _, f := range fields {
		if !f.present {
			return fmt.Errorf("required field %s is missing", f.name)
		}
	}
	return nil
}

func corrupted(what string, idx int, err error) error {
	return types.Errorf(types.ErrCorruptedData, "%s %d: %v", what, idx, err)
}

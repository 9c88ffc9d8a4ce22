// ============================================================================
// AddressBook - the root aggregate
// ============================================================================
//
// Owns one unique list each for persons, admins and machines, plus the job
// arena. Machines point at jobs by JobID and every job names its machine;
// AddJob/RemoveJob/RemoveMachine keep both sides in step.
//
// The book does no locking of its own beyond what each list does. Callers
// that mutate it from more than one goroutine must serialise (the job
// manager does).
//
// ============================================================================

package model

import (
	"fmt"

	"github.com/ChuLiYu/labqueue/internal/uniquelist"
	"github.com/ChuLiYu/labqueue/pkg/types"
)

// AddressBook is the unit of persistence and of undo/redo.
type AddressBook struct {
	persons  *uniquelist.List[Person]
	admins   *uniquelist.List[Admin]
	machines *uniquelist.List[Machine]
	jobs     *uniquelist.List[Job]
}

func NewAddressBook() *AddressBook {
	return &AddressBook{
		persons:  uniquelist.New("person", Person.IsSamePerson),
		admins:   uniquelist.New("admin", Admin.IsSameAdmin),
		machines: uniquelist.New("machine", Machine.IsSameMachine),
		jobs:     uniquelist.New("job", Job.IsSameJob),
	}
}

// ============================================================================
// Reads
// ============================================================================

func (ab *AddressBook) Persons() []Person   { return ab.persons.Items() }
func (ab *AddressBook) Admins() []Admin     { return ab.admins.Items() }
func (ab *AddressBook) Machines() []Machine { return ab.machines.Items() }
func (ab *AddressBook) Jobs() []Job         { return ab.jobs.Items() }

func (ab *AddressBook) Person(name types.PersonName) (Person, bool) {
	return ab.persons.Find(func(p Person) bool { return p.Name == name })
}

func (ab *AddressBook) Admin(username types.Username) (Admin, bool) {
	return ab.admins.Find(func(a Admin) bool { return a.Username == username })
}

func (ab *AddressBook) Machine(name types.MachineName) (Machine, bool) {
	return ab.machines.Find(func(m Machine) bool { return m.Name == name })
}

func (ab *AddressBook) Job(id JobID) (Job, bool) {
	return ab.jobs.Find(func(j Job) bool { return j.ID == id })
}

// JobsOf resolves a machine's job ids in machine order.
func (ab *AddressBook) JobsOf(name types.MachineName) ([]Job, error) {
	m, ok := ab.Machine(name)
	if !ok {
		return nil, types.Errorf(types.ErrEntityNotFound, "machine %q not found", name)
	}
	byID := make(map[JobID]Job, len(m.jobIDs))
	for _, j := range ab.jobs.Items() {
		if j.Machine == name {
			byID[j.ID] = j
		}
	}
	out := make([]Job, 0, len(m.jobIDs))
	for _, id := range m.jobIDs {
		if j, ok := byID[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

// TotalActiveDuration sums the durations of the machine's QUEUED and ONGOING
// jobs. It is recomputed on every call.
func (ab *AddressBook) TotalActiveDuration(name types.MachineName) (float64, error) {
	jobs, err := ab.JobsOf(name)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, j := range jobs {
		if j.Status.IsActive() {
			total += j.Duration
		}
	}
	return total, nil
}

// MachineLoad summarises one machine.
type MachineLoad struct {
	Machine        types.MachineName
	Status         types.MachineStatus
	ActiveDuration float64
	Counts         map[types.JobStatus]int
}

func (ab *AddressBook) MachineLoad(name types.MachineName) (MachineLoad, error) {
	m, ok := ab.Machine(name)
	if !ok {
		return MachineLoad{}, types.Errorf(types.ErrEntityNotFound, "machine %q not found", name)
	}
	jobs, err := ab.JobsOf(name)
	if err != nil {
		return MachineLoad{}, err
	}
	load := MachineLoad{Machine: name, Status: m.Status, Counts: make(map[types.JobStatus]int)}
	for _, j := range jobs {
		load.Counts[j.Status]++
		if j.Status.IsActive() {
			load.ActiveDuration += j.Duration
		}
	}
	return load, nil
}

// ============================================================================
// Persons and admins
// ============================================================================

func (ab *AddressBook) AddPerson(p Person) error {
	return ab.persons.Add(p)
}

// RemovePerson fails with ErrEntityInUse while the person owns any job.
func (ab *AddressBook) RemovePerson(name types.PersonName) (Person, error) {
	if _, owns := ab.jobs.Find(func(j Job) bool { return j.Owner == name }); owns {
		return Person{}, types.Errorf(types.ErrEntityInUse, "person %q still owns jobs", name)
	}
	p, err := ab.persons.RemoveWhere(func(p Person) bool { return p.Name == name })
	if err != nil {
		return Person{}, types.Errorf(types.ErrEntityNotFound, "person %q not found", name)
	}
	return p, nil
}

func (ab *AddressBook) AddAdmin(a Admin) error {
	return ab.admins.Add(a)
}

func (ab *AddressBook) RemoveAdmin(username types.Username) (Admin, error) {
	a, err := ab.admins.RemoveWhere(func(a Admin) bool { return a.Username == username })
	if err != nil {
		return Admin{}, types.Errorf(types.ErrEntityNotFound, "admin %q not found", username)
	}
	return a, nil
}

// ============================================================================
// Machines
// ============================================================================

// AddMachine adds a machine that has no jobs yet.
func (ab *AddressBook) AddMachine(m Machine) error {
	if len(m.jobIDs) > 0 {
		m = m.withoutJobs()
	}
	return ab.machines.Add(m)
}

func (m Machine) withoutJobs() Machine {
	next := m
	next.jobIDs = nil
	return next
}

// SetMachineStatus changes the status only; jobs keep theirs.
func (ab *AddressBook) SetMachineStatus(name types.MachineName, status types.MachineStatus) (Machine, error) {
	m, ok := ab.Machine(name)
	if !ok {
		return Machine{}, types.Errorf(types.ErrEntityNotFound, "machine %q not found", name)
	}
	next := m.WithStatus(status)
	if err := ab.machines.Replace(func(x Machine) bool { return x.Name == name }, next); err != nil {
		return Machine{}, err
	}
	return next, nil
}

// RemoveMachine deletes a machine together with its jobs. Without cascade it
// refuses while any of those jobs is QUEUED or ONGOING.
func (ab *AddressBook) RemoveMachine(name types.MachineName, cascade bool) (Machine, []Job, error) {
	m, ok := ab.Machine(name)
	if !ok {
		return Machine{}, nil, types.Errorf(types.ErrEntityNotFound, "machine %q not found", name)
	}
	jobs, err := ab.JobsOf(name)
	if err != nil {
		return Machine{}, nil, err
	}
	if !cascade {
		for _, j := range jobs {
			if j.Status.IsActive() {
				return Machine{}, nil, types.Errorf(types.ErrEntityInUse,
					"machine %q still has active job %q", name, j.Name)
			}
		}
	}
	for _, j := range jobs {
		if _, err := ab.jobs.RemoveWhere(func(x Job) bool { return x.ID == j.ID }); err != nil {
			panic(types.InvariantViolation{Msg: fmt.Sprintf("job %s listed on %q but missing from the book", j.ID, name)})
		}
	}
	if _, err := ab.machines.RemoveWhere(func(x Machine) bool { return x.Name == name }); err != nil {
		panic(types.InvariantViolation{Msg: fmt.Sprintf("machine %q vanished during removal", name)})
	}
	return m, jobs, nil
}

// ============================================================================
// Jobs
// ============================================================================

// AddJob links j to its machine. The machine and the owner must exist.
func (ab *AddressBook) AddJob(j Job) error {
	m, ok := ab.Machine(j.Machine)
	if !ok {
		return types.Errorf(types.ErrEntityNotFound, "machine %q not found", j.Machine)
	}
	if _, ok := ab.Person(j.Owner); !ok {
		return types.Errorf(types.ErrEntityNotFound, "person %q not found", j.Owner)
	}
	if _, dup := ab.Job(j.ID); dup {
		return types.Errorf(types.ErrDuplicateEntity, "job id %s already exists", j.ID)
	}
	if err := ab.jobs.Add(j); err != nil {
		return err
	}
	if err := ab.machines.Replace(func(x Machine) bool { return x.Name == m.Name }, m.withJob(j.ID)); err != nil {
		_, _ = ab.jobs.RemoveWhere(func(x Job) bool { return x.ID == j.ID })
		return err
	}
	return nil
}

// RemoveJob unlinks and deletes a job.
func (ab *AddressBook) RemoveJob(id JobID) (Job, error) {
	j, err := ab.jobs.RemoveWhere(func(x Job) bool { return x.ID == id })
	if err != nil {
		return Job{}, types.Errorf(types.ErrEntityNotFound, "job %s not found", id)
	}
	m, ok := ab.Machine(j.Machine)
	if !ok {
		panic(types.InvariantViolation{Msg: fmt.Sprintf("job %s refers to missing machine %q", id, j.Machine)})
	}
	if err := ab.machines.Replace(func(x Machine) bool { return x.Name == m.Name }, m.withoutJob(id)); err != nil {
		panic(types.InvariantViolation{Msg: err.Error()})
	}
	return j, nil
}

// ReplaceJob stores an updated value of the job with the same id. The
// machine, owner and id of a job never change.
func (ab *AddressBook) ReplaceJob(edited Job) error {
	cur, ok := ab.Job(edited.ID)
	if !ok {
		return types.Errorf(types.ErrEntityNotFound, "job %s not found", edited.ID)
	}
	if cur.Machine != edited.Machine || cur.Owner != edited.Owner {
		return types.Errorf(types.ErrInvalidFormat, "job %s cannot change machine or owner", edited.ID)
	}
	return ab.jobs.Replace(func(x Job) bool { return x.ID == edited.ID }, edited)
}

// ============================================================================
// Views
// ============================================================================

func (ab *AddressBook) FilterPersons(pred func(Person) bool) *uniquelist.Filtered[Person] {
	return uniquelist.NewFiltered(ab.persons, pred)
}

func (ab *AddressBook) FilterAdmins(pred func(Admin) bool) *uniquelist.Filtered[Admin] {
	return uniquelist.NewFiltered(ab.admins, pred)
}

func (ab *AddressBook) FilterMachines(pred func(Machine) bool) *uniquelist.Filtered[Machine] {
	return uniquelist.NewFiltered(ab.machines, pred)
}

func (ab *AddressBook) FilterJobs(pred func(Job) bool) *uniquelist.Filtered[Job] {
	return uniquelist.NewFiltered(ab.jobs, pred)
}

// ============================================================================
// Snapshots
// ============================================================================

// Snapshot returns an independent book. List spines are copied, entity
// values are shared; they are immutable, so later mutation of either book
// cannot show through in the other.
func (ab *AddressBook) Snapshot() *AddressBook {
	return &AddressBook{
		persons:  ab.persons.Clone(),
		admins:   ab.admins.Clone(),
		machines: ab.machines.Clone(),
		jobs:     ab.jobs.Clone(),
	}
}

// ResetData replaces the content of ab with that of other. Views built on
// ab stay attached and are refreshed.
func (ab *AddressBook) ResetData(other *AddressBook) error {
	if err := other.Validate(); err != nil {
		return err
	}
	if err := ab.persons.SetAll(other.persons.Items()); err != nil {
		return err
	}
	if err := ab.admins.SetAll(other.admins.Items()); err != nil {
		return err
	}
	if err := ab.machines.SetAll(other.machines.Items()); err != nil {
		return err
	}
	return ab.jobs.SetAll(other.jobs.Items())
}

// Validate checks the cross-list invariants.
func (ab *AddressBook) Validate() error {
	machines := ab.machines.Items()
	jobs := ab.jobs.Items()

	byID := make(map[JobID]Job, len(jobs))
	for _, j := range jobs {
		if _, dup := byID[j.ID]; dup {
			return types.InvariantViolation{Msg: fmt.Sprintf("job id %s appears twice", j.ID)}
		}
		byID[j.ID] = j
	}
	linked := make(map[JobID]bool, len(jobs))
	for _, m := range machines {
		for _, id := range m.jobIDs {
			j, ok := byID[id]
			if !ok {
				return types.InvariantViolation{Msg: fmt.Sprintf("machine %q lists unknown job %s", m.Name, id)}
			}
			if j.Machine != m.Name {
				return types.InvariantViolation{Msg: fmt.Sprintf("job %s is listed on %q but runs on %q", id, m.Name, j.Machine)}
			}
			if linked[id] {
				return types.InvariantViolation{Msg: fmt.Sprintf("job %s listed twice", id)}
			}
			linked[id] = true
		}
	}
	for _, j := range jobs {
		if !linked[j.ID] {
			return types.InvariantViolation{Msg: fmt.Sprintf("job %s is not listed on machine %q", j.ID, j.Machine)}
		}
		if _, ok := ab.Person(j.Owner); !ok {
			return types.InvariantViolation{Msg: fmt.Sprintf("job %s is owned by unknown person %q", j.ID, j.Owner)}
		}
	}
	return nil
}

// Equal is full structural equality, order included.
func (ab *AddressBook) Equal(o *AddressBook) bool {
	return equalSlices(ab.Persons(), o.Persons(), Person.Equal) &&
		equalSlices(ab.Admins(), o.Admins(), Admin.Equal) &&
		equalSlices(ab.Machines(), o.Machines(), Machine.Equal) &&
		equalSlices(ab.Jobs(), o.Jobs(), Job.Equal)
}

func equalSlices[T any](a, b []T, eq func(T, T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ============================================================================
// labqueue job manager - the single entry point for changing the book
// ============================================================================
//
// Package: internal/jobmanager
//
// The Manager owns the live AddressBook, the undo/redo history and the four
// filtered views the front end displays. Every mutating operation:
//
//   1. takes the manager lock
//   2. validates and applies the change through the AddressBook, which keeps
//      machines and jobs linked
//   3. releases the lock and hands the resulting events to subscribers
//
// Commands decide when a change is worth an undo step and call
// CommitAddressBook afterwards; Undo and Redo move between committed states.
//
// Filtered job list:
//   Jobs with DeletionRequested set stay in the book (and in every total) but
//   are hidden from the job view until RestoreJob clears the flag or
//   PurgeDeletionRequests removes them for good.
//
// ============================================================================

package jobmanager

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/labqueue/internal/history"
	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/internal/uniquelist"
	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ============================================================================
// Options
// ============================================================================

// RemovalPolicy decides what RemoveMachine does with a machine's jobs.
type RemovalPolicy string

const (
	// RemovalReject refuses to remove a machine with QUEUED or ONGOING jobs.
	RemovalReject RemovalPolicy = "reject"
	// RemovalCascade removes the machine and every job on it.
	RemovalCascade RemovalPolicy = "cascade"
)

func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch p := RemovalPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RemovalReject, RemovalCascade:
		return p, nil
	case "":
		return RemovalReject, nil
	default:
		return "", types.Errorf(types.ErrInvalidFormat, "machine removal policy %q should be reject or cascade", s)
	}
}

// Options configure a Manager. The zero value is usable.
type Options struct {
	// Clock supplies timestamps for new jobs and status changes.
	Clock func() time.Time
	// Removal defaults to RemovalReject.
	Removal RemovalPolicy
	// HistoryLimit caps undo depth; zero keeps every state.
	HistoryLimit int
	Logger       *slog.Logger
}

// ============================================================================
// Manager
// ============================================================================

type Manager struct {
	mu      sync.RWMutex
	book    *model.AddressBook
	history *history.Versioned

	machines *uniquelist.Filtered[model.Machine]
	jobs     *uniquelist.Filtered[model.Job]
	persons  *uniquelist.Filtered[model.Person]
	admins   *uniquelist.Filtered[model.Admin]
	jobPred  atomic.Pointer[func(model.Job) bool]

	clock   func() time.Time
	removal RemovalPolicy
	logger  *slog.Logger

	subMu    sync.Mutex
	subs     map[int]func(Event)
	subOrder []int
	nextSub  int
}

// New takes ownership of book and starts its history at the current state.
// A nil book starts empty.
func New(book *model.AddressBook, opts Options) (*Manager, error) {
	if book == nil {
		book = model.NewAddressBook()
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	removal, err := ParseRemovalPolicy(string(opts.Removal))
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Manager{
		book:    book,
		history: history.New(book, opts.HistoryLimit),
		clock:   opts.Clock,
		removal: removal,
		logger:  opts.Logger.With("component", "jobmanager"),
		subs:    make(map[int]func(Event)),
	}
	showAll := uniquelist.ShowAll[model.Job]
	m.jobPred.Store(&showAll)
	m.machines = book.FilterMachines(nil)
	m.persons = book.FilterPersons(nil)
	m.admins = book.FilterAdmins(nil)
	m.jobs = book.FilterJobs(m.visibleJob)
	return m, nil
}

// Close detaches the filtered views from the book.
func (m *Manager) Close() {
	m.machines.Close()
	m.jobs.Close()
	m.persons.Close()
	m.admins.Close()
}

// RemovalPolicy returns the policy RemoveMachine applies.
func (m *Manager) RemovalPolicy() RemovalPolicy { return m.removal }

// apply runs fn under the write lock and publishes its events once the lock
// is released.
func (m *Manager) apply(op string, fn func(now time.Time) ([]Event, error)) error {
	m.mu.Lock()
	now := m.clock()
	events, err := fn(now)
	m.mu.Unlock()

	if err != nil {
		m.logger.Info("operation rejected", "op", op, "error", err)
		return err
	}
	m.logger.Debug("operation applied", "op", op, "events", len(events))
	m.emit(events)
	return nil
}

// ============================================================================
// Machines
// ============================================================================

// AddMachine adds a machine with no jobs.
func (m *Manager) AddMachine(machine model.Machine) error {
	return m.apply("add_machine", func(now time.Time) ([]Event, error) {
		if err := m.book.AddMachine(machine); err != nil {
			return nil, err
		}
		return []Event{namedEvent(now, EntityMachine, EventAdded, machine.Name.String())}, nil
	})
}

// RemoveMachine removes the machine and, depending on the removal policy,
// its jobs. Under RemovalReject it fails with ErrEntityInUse while the
// machine has active jobs; terminal jobs go with the machine either way.
// Under RemovalCascade each active job is reported cancelled before it is
// removed.
func (m *Manager) RemoveMachine(name types.MachineName) (model.Machine, []model.Job, error) {
	var (
		removed model.Machine
		jobs    []model.Job
	)
	err := m.apply("remove_machine", func(now time.Time) ([]Event, error) {
		var err error
		removed, jobs, err = m.book.RemoveMachine(name, m.removal == RemovalCascade)
		if err != nil {
			return nil, err
		}
		events := make([]Event, 0, 2*len(jobs)+1)
		for _, j := range jobs {
			if j.Status.IsActive() {
				ev := jobEvent(now, EventStatusChanged, j)
				ev.From, ev.To = string(j.Status), string(types.StatusCancelled)
				events = append(events, ev)
			}
			events = append(events, jobEvent(now, EventRemoved, j))
		}
		return append(events, namedEvent(now, EntityMachine, EventRemoved, name.String())), nil
	})
	if err != nil {
		return model.Machine{}, nil, err
	}
	return removed, jobs, nil
}

// UpdateMachineStatus enables or disables a machine. Jobs keep their status;
// a disabled machine only refuses to start queued jobs.
func (m *Manager) UpdateMachineStatus(name types.MachineName, status types.MachineStatus) (model.Machine, error) {
	var updated model.Machine
	err := m.apply("update_machine_status", func(now time.Time) ([]Event, error) {
		before, ok := m.book.Machine(name)
		if !ok {
			return nil, types.Errorf(types.ErrEntityNotFound, "machine %q not found", name)
		}
		var err error
		if updated, err = m.book.SetMachineStatus(name, status); err != nil {
			return nil, err
		}
		ev := namedEvent(now, EntityMachine, EventStatusChanged, name.String())
		ev.From, ev.To = string(before.Status), string(status)
		return []Event{ev}, nil
	})
	return updated, err
}

// TotalActiveDuration is the summed duration of the machine's QUEUED and
// ONGOING jobs, in hours.
func (m *Manager) TotalActiveDuration(name types.MachineName) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.TotalActiveDuration(name)
}

// ============================================================================
// Persons and admins
// ============================================================================

func (m *Manager) AddPerson(p model.Person) error {
	return m.apply("add_person", func(now time.Time) ([]Event, error) {
		if err := m.book.AddPerson(p); err != nil {
			return nil, err
		}
		return []Event{namedEvent(now, EntityPerson, EventAdded, p.Name.String())}, nil
	})
}

// RemovePerson fails with ErrEntityInUse while the person owns jobs.
func (m *Manager) RemovePerson(name types.PersonName) (model.Person, error) {
	var removed model.Person
	err := m.apply("remove_person", func(now time.Time) ([]Event, error) {
		var err error
		if removed, err = m.book.RemovePerson(name); err != nil {
			return nil, err
		}
		return []Event{namedEvent(now, EntityPerson, EventRemoved, name.String())}, nil
	})
	return removed, err
}

func (m *Manager) AddAdmin(a model.Admin) error {
	return m.apply("add_admin", func(now time.Time) ([]Event, error) {
		if err := m.book.AddAdmin(a); err != nil {
			return nil, err
		}
		return []Event{namedEvent(now, EntityAdmin, EventAdded, a.Username.String())}, nil
	})
}

func (m *Manager) RemoveAdmin(username types.Username) (model.Admin, error) {
	var removed model.Admin
	err := m.apply("remove_admin", func(now time.Time) ([]Event, error) {
		var err error
		if removed, err = m.book.RemoveAdmin(username); err != nil {
			return nil, err
		}
		return []Event{namedEvent(now, EntityAdmin, EventRemoved, username.String())}, nil
	})
	return removed, err
}

// AuthenticateAdmin checks a username and password. Unknown users and wrong
// passwords fail the same way.
func (m *Manager) AuthenticateAdmin(username, password string) (model.Admin, error) {
	fail := types.Errorf(types.ErrAuthentication, "invalid username or password")
	u, err := types.NewUsername(username)
	if err != nil {
		return model.Admin{}, fail
	}
	m.mu.RLock()
	a, ok := m.book.Admin(u)
	m.mu.RUnlock()
	if !ok || !a.CheckPassword(password) {
		m.logger.Info("admin authentication failed", "username", username)
		return model.Admin{}, fail
	}
	return a, nil
}

// ============================================================================
// Jobs
// ============================================================================

// AddJob creates a QUEUED job from spec and links it to its machine.
func (m *Manager) AddJob(spec model.JobSpec) (model.Job, error) {
	var added model.Job
	err := m.apply("add_job", func(now time.Time) ([]Event, error) {
		j, err := model.NewJob(spec, now)
		if err != nil {
			return nil, err
		}
		if err := m.book.AddJob(j); err != nil {
			return nil, err
		}
		added = j
		return []Event{jobEvent(now, EventAdded, j)}, nil
	})
	return added, err
}

// RemoveJob deletes a job in any status.
func (m *Manager) RemoveJob(id model.JobID) (model.Job, error) {
	var removed model.Job
	err := m.apply("remove_job", func(now time.Time) ([]Event, error) {
		var err error
		if removed, err = m.book.RemoveJob(id); err != nil {
			return nil, err
		}
		return []Event{jobEvent(now, EventRemoved, removed)}, nil
	})
	return removed, err
}

// UpdateJobStatus moves a job through its lifecycle. Starting a job needs
// its machine to be ENABLED.
func (m *Manager) UpdateJobStatus(id model.JobID, to types.JobStatus) (model.Job, error) {
	var updated model.Job
	err := m.apply("update_job_status", func(now time.Time) ([]Event, error) {
		j, err := m.job(id)
		if err != nil {
			return nil, err
		}
		machine, ok := m.book.Machine(j.Machine)
		if !ok {
			panic(types.InvariantViolation{Msg: fmt.Sprintf("job %s refers to missing machine %q", id, j.Machine)})
		}
		next, err := j.Transition(to, machine.Status, now)
		if err != nil {
			return nil, err
		}
		if err := m.book.ReplaceJob(next); err != nil {
			return nil, err
		}
		updated = next
		ev := jobEvent(now, EventStatusChanged, next)
		ev.From, ev.To = string(j.Status), string(to)
		return []Event{ev}, nil
	})
	return updated, err
}

// EditJob changes priority, duration, note or tags of a live job.
func (m *Manager) EditJob(id model.JobID, edit model.JobEdit) (model.Job, error) {
	var updated model.Job
	err := m.apply("edit_job", func(now time.Time) ([]Event, error) {
		j, err := m.job(id)
		if err != nil {
			return nil, err
		}
		next, err := j.Edit(edit)
		if err != nil {
			return nil, err
		}
		if err := m.book.ReplaceJob(next); err != nil {
			return nil, err
		}
		updated = next
		return []Event{jobEvent(now, EventUpdated, next)}, nil
	})
	return updated, err
}

// RequestJobDeletion hides a live job from the job view.
func (m *Manager) RequestJobDeletion(id model.JobID) (model.Job, error) {
	return m.setDeletionRequested("request_job_deletion", id, true)
}

// RestoreJob brings a job hidden by RequestJobDeletion back.
func (m *Manager) RestoreJob(id model.JobID) (model.Job, error) {
	return m.setDeletionRequested("restore_job", id, false)
}

func (m *Manager) setDeletionRequested(op string, id model.JobID, requested bool) (model.Job, error) {
	var updated model.Job
	err := m.apply(op, func(now time.Time) ([]Event, error) {
		j, err := m.job(id)
		if err != nil {
			return nil, err
		}
		next, err := j.WithDeletionRequested(requested)
		if err != nil {
			return nil, err
		}
		if err := m.book.ReplaceJob(next); err != nil {
			return nil, err
		}
		updated = next
		return []Event{jobEvent(now, EventUpdated, next)}, nil
	})
	return updated, err
}

// PurgeDeletionRequests removes every job whose deletion was requested.
func (m *Manager) PurgeDeletionRequests() ([]model.Job, error) {
	var purged []model.Job
	err := m.apply("purge_deletion_requests", func(now time.Time) ([]Event, error) {
		var events []Event
		for _, j := range m.book.Jobs() {
			if !j.DeletionRequested {
				continue
			}
			if _, err := m.book.RemoveJob(j.ID); err != nil {
				return nil, err
			}
			purged = append(purged, j)
			events = append(events, jobEvent(now, EventRemoved, j))
		}
		return events, nil
	})
	return purged, err
}

// Job looks a job up by id.
func (m *Manager) Job(id model.JobID) (model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.job(id)
}

func (m *Manager) job(id model.JobID) (model.Job, error) {
	j, ok := m.book.Job(id)
	if !ok {
		return model.Job{}, types.Errorf(types.ErrEntityNotFound, "job %s not found", id)
	}
	return j, nil
}

// ResolveJob finds a job by its full id or by an unambiguous id prefix of
// at least four characters.
func (m *Manager) ResolveJob(ref string) (model.Job, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if id, err := model.ParseJobID(ref); err == nil {
		return m.Job(id)
	}
	if len(ref) < 4 {
		return model.Job{}, types.Errorf(types.ErrInvalidFormat, "job reference %q is too short", ref)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var found []model.Job
	for _, j := range m.book.Jobs() {
		if strings.HasPrefix(string(j.ID), ref) {
			found = append(found, j)
		}
	}
	switch len(found) {
	case 0:
		return model.Job{}, types.Errorf(types.ErrEntityNotFound, "no job id starts with %q", ref)
	case 1:
		return found[0], nil
	default:
		return model.Job{}, types.Errorf(types.ErrInvalidFormat, "job reference %q matches %d jobs", ref, len(found))
	}
}

// ============================================================================
// Filtered views
// ============================================================================

func (m *Manager) visibleJob(j model.Job) bool {
	return !j.DeletionRequested && (*m.jobPred.Load())(j)
}

func (m *Manager) FilteredMachineList() []model.Machine { return m.machines.Items() }
func (m *Manager) FilteredJobList() []model.Job         { return m.jobs.Items() }
func (m *Manager) FilteredPersonList() []model.Person   { return m.persons.Items() }
func (m *Manager) FilteredAdminList() []model.Admin     { return m.admins.Items() }

// UpdateFilteredMachineList replaces the machine filter; nil shows all.
func (m *Manager) UpdateFilteredMachineList(pred func(model.Machine) bool) {
	m.machines.SetPredicate(pred)
}

// UpdateFilteredJobList replaces the job filter; nil shows all. Jobs with a
// pending deletion request stay hidden regardless.
func (m *Manager) UpdateFilteredJobList(pred func(model.Job) bool) {
	if pred == nil {
		pred = uniquelist.ShowAll[model.Job]
	}
	m.jobPred.Store(&pred)
	m.jobs.SetPredicate(m.visibleJob)
}

func (m *Manager) UpdateFilteredPersonList(pred func(model.Person) bool) {
	m.persons.SetPredicate(pred)
}

func (m *Manager) UpdateFilteredAdminList(pred func(model.Admin) bool) {
	m.admins.SetPredicate(pred)
}

// ============================================================================
// History
// ============================================================================

// CommitAddressBook records the current book as an undo step.
func (m *Manager) CommitAddressBook() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Commit(m.book)
}

func (m *Manager) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.CanUndo()
}

func (m *Manager) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.CanRedo()
}

// Undo restores the previous committed state.
func (m *Manager) Undo() error {
	return m.apply("undo", func(now time.Time) ([]Event, error) {
		prev, err := m.history.Undo()
		if err != nil {
			return nil, err
		}
		return m.reset(now, prev)
	})
}

// Redo reapplies the state undone last.
func (m *Manager) Redo() error {
	return m.apply("redo", func(now time.Time) ([]Event, error) {
		next, err := m.history.Redo()
		if err != nil {
			return nil, err
		}
		return m.reset(now, next)
	})
}

// ResetData replaces the whole book, for example after an import. The
// history is kept so the reset can be undone once committed.
func (m *Manager) ResetData(book *model.AddressBook) error {
	return m.apply("reset_data", func(now time.Time) ([]Event, error) {
		return m.reset(now, book)
	})
}

func (m *Manager) reset(now time.Time, book *model.AddressBook) ([]Event, error) {
	if err := m.book.ResetData(book); err != nil {
		return nil, err
	}
	return []Event{namedEvent(now, EntityBook, EventReset, "")}, nil
}

// AddressBook returns a read-only copy of the current book.
func (m *Manager) AddressBook() *model.AddressBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Snapshot()
}

// ============================================================================
// Stats
// ============================================================================

// Stats summarises the book.
type Stats struct {
	Machines          int
	Persons           int
	Admins            int
	Jobs              int
	JobsByStatus      map[types.JobStatus]int
	DeletionRequested int
	Loads             []model.MachineLoad
	UndoDepth         int
	RedoDepth         int
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := m.book.Jobs()
	s := Stats{
		Machines:     len(m.book.Machines()),
		Persons:      len(m.book.Persons()),
		Admins:       len(m.book.Admins()),
		Jobs:         len(jobs),
		JobsByStatus: make(map[types.JobStatus]int, len(types.AllJobStatuses)),
		UndoDepth:    m.history.UndoDepth(),
		RedoDepth:    m.history.RedoDepth(),
	}
	for _, st := range types.AllJobStatuses {
		s.JobsByStatus[st] = 0
	}
	for _, j := range jobs {
		s.JobsByStatus[j.Status]++
		if j.DeletionRequested {
			s.DeletionRequested++
		}
	}
	for _, machine := range m.book.Machines() {
		load, err := m.book.MachineLoad(machine.Name)
		if err != nil {
			panic(types.InvariantViolation{Msg: err.Error()})
		}
		s.Loads = append(s.Loads, load)
	}
	return s
}

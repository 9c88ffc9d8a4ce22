// ============================================================================
// Job - one print/fabrication job and its lifecycle
// ============================================================================
//
// State machine:
//
//	QUEUED ──start──▶ ONGOING ──finish──▶ FINISHED
//	   │                 │
//	   └──cancel──▶ CANCELLED ◀──cancel──┘
//
//   - QUEUED → ONGOING only while the machine is ENABLED; sets StartTime.
//   - FINISHED and CANCELLED are terminal: every later mutation fails.
//   - DeletionRequested is a flag beside the status, not a state.
//
// Job values are never modified in place. Every mutation returns a new value,
// which lets snapshots share Job values safely.
//
// ============================================================================

package model

import (
	"fmt"
	"math"
	"time"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/google/uuid"
)

// TimeLayout is used for every timestamp this package produces.
const TimeLayout = time.RFC3339

// JobID is the stable identifier of a job.
type JobID string

// NewJobID returns a fresh random identifier.
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

// ParseJobID accepts any UUID form and normalises it.
func ParseJobID(s string) (JobID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", types.Errorf(types.ErrInvalidFormat, "job id %q is not a UUID", s)
	}
	return JobID(id.String()), nil
}

// Short is the prefix shown in listings.
func (id JobID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Job is a unit of work on one machine, owned by one person.
type Job struct {
	ID                JobID
	Name              types.JobName
	Machine           types.MachineName
	Owner             types.PersonName
	AddedTime         string
	StartTime         string // empty until the job starts
	Priority          types.Priority
	Duration          float64 // hours
	Status            types.JobStatus
	Note              string
	Tags              types.TagSet
	DeletionRequested bool
}

// JobSpec is the caller-supplied part of a new job.
type JobSpec struct {
	Name     string
	Machine  string
	Owner    string
	Priority types.Priority
	Duration float64
	Note     string
	Tags     []string
}

// NewJob validates spec and returns a QUEUED job added at now.
func NewJob(spec JobSpec, now time.Time) (Job, error) {
	name, err := types.NewJobName(spec.Name)
	if err != nil {
		return Job{}, err
	}
	machine, err := types.NewMachineName(spec.Machine)
	if err != nil {
		return Job{}, err
	}
	owner, err := types.NewPersonName(spec.Owner)
	if err != nil {
		return Job{}, err
	}
	if err := validateDuration(spec.Duration); err != nil {
		return Job{}, err
	}
	priority := spec.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}
	if priority, err = types.ParsePriority(string(priority)); err != nil {
		return Job{}, err
	}
	tags, err := types.ParseTags(spec.Tags)
	if err != nil {
		return Job{}, err
	}

	return Job{
		ID:        NewJobID(),
		Name:      name,
		Machine:   machine,
		Owner:     owner,
		AddedTime: now.Format(TimeLayout),
		Priority:  priority,
		Duration:  spec.Duration,
		Status:    types.StatusQueued,
		Note:      spec.Note,
		Tags:      tags,
	}, nil
}

// RestoreJob rebuilds a stored job. The timestamps are kept exactly as
// stored; they are opaque to the book.
func RestoreJob(id JobID, spec JobSpec, addedTime, startTime string, status types.JobStatus, deletionRequested bool) (Job, error) {
	j, err := NewJob(spec, time.Time{})
	if err != nil {
		return Job{}, err
	}
	nid, err := ParseJobID(string(id))
	if err != nil {
		return Job{}, err
	}
	st, err := types.ParseJobStatus(string(status))
	if err != nil {
		return Job{}, err
	}
	j.ID = nid
	j.AddedTime = addedTime
	j.StartTime = startTime
	j.Status = st
	j.DeletionRequested = deletionRequested
	return j, nil
}

func validateDuration(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return types.Errorf(types.ErrInvalidDuration, "duration %v should be a non-negative number of hours", d)
	}
	return nil
}

// HasStarted reports whether StartTime is set.
func (j Job) HasStarted() bool { return j.StartTime != "" }

// ============================================================================
// Lifecycle
// ============================================================================

// Transition moves the job to status to. machine is the current status of
// the job's machine; it only matters for QUEUED → ONGOING.
func (j Job) Transition(to types.JobStatus, machine types.MachineStatus, now time.Time) (Job, error) {
	if j.Status.IsTerminal() {
		return Job{}, types.Errorf(types.ErrInvalidStatusTransition,
			"job %q is already %s", j.Name, j.Status)
	}
	if !isAllowedTransition(j.Status, to) {
		return Job{}, types.Errorf(types.ErrInvalidStatusTransition,
			"job %q cannot go from %s to %s", j.Name, j.Status, to)
	}

	next := j
	if to == types.StatusOngoing {
		if machine != types.MachineEnabled {
			return Job{}, types.Errorf(types.ErrMachineDisabled,
				"machine %q is %s, job %q cannot start", j.Machine, machine, j.Name)
		}
		next.StartTime = now.Format(TimeLayout)
	}
	next.Status = to
	return next, nil
}

func isAllowedTransition(from, to types.JobStatus) bool {
	switch from {
	case types.StatusQueued:
		return to == types.StatusOngoing || to == types.StatusCancelled
	case types.StatusOngoing:
		return to == types.StatusFinished || to == types.StatusCancelled
	default:
		return false
	}
}

// JobEdit lists the fields a caller may change on a live job. Nil means keep.
type JobEdit struct {
	Priority *types.Priority
	Duration *float64
	Note     *string
	Tags     *[]string
}

// Edit applies e to a QUEUED or ONGOING job.
func (j Job) Edit(e JobEdit) (Job, error) {
	if err := j.mutable(); err != nil {
		return Job{}, err
	}
	next := j
	if e.Priority != nil {
		p, err := types.ParsePriority(string(*e.Priority))
		if err != nil {
			return Job{}, err
		}
		next.Priority = p
	}
	if e.Duration != nil {
		if err := validateDuration(*e.Duration); err != nil {
			return Job{}, err
		}
		next.Duration = *e.Duration
	}
	if e.Note != nil {
		next.Note = *e.Note
	}
	if e.Tags != nil {
		tags, err := types.ParseTags(*e.Tags)
		if err != nil {
			return Job{}, err
		}
		next.Tags = tags
	}
	return next, nil
}

// WithDeletionRequested sets or clears the soft-delete flag.
func (j Job) WithDeletionRequested(requested bool) (Job, error) {
	if err := j.mutable(); err != nil {
		return Job{}, err
	}
	next := j
	next.DeletionRequested = requested
	return next, nil
}

func (j Job) mutable() error {
	if j.Status.IsTerminal() {
		return types.Errorf(types.ErrInvalidStatusTransition,
			"job %q is %s and can no longer change", j.Name, j.Status)
	}
	return nil
}

// ============================================================================
// Identity
// ============================================================================

// IsSameJob is the weak identity: name, machine, owner and duration.
func (j Job) IsSameJob(o Job) bool {
	return j.Name == o.Name && j.Machine == o.Machine && j.Owner == o.Owner && j.Duration == o.Duration
}

// Equal compares every field.
func (j Job) Equal(o Job) bool {
	return j.ID == o.ID && j.IsSameJob(o) &&
		j.AddedTime == o.AddedTime && j.StartTime == o.StartTime &&
		j.Priority == o.Priority && j.Status == o.Status &&
		j.Note == o.Note && j.Tags.Equal(o.Tags) &&
		j.DeletionRequested == o.DeletionRequested
}

func (j Job) String() string {
	return fmt.Sprintf("%s (%s) on %s by %s, %s, %gh", j.Name, j.ID.Short(), j.Machine, j.Owner, j.Status, j.Duration)
}

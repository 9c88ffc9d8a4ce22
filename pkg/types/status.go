package types

import "strings"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "QUEUED"    // waiting for its machine
	StatusOngoing   JobStatus = "ONGOING"   // running on its machine
	StatusFinished  JobStatus = "FINISHED"  // terminal
	StatusCancelled JobStatus = "CANCELLED" // terminal
)

// AllJobStatuses lists the statuses in lifecycle order.
var AllJobStatuses = []JobStatus{StatusQueued, StatusOngoing, StatusFinished, StatusCancelled}

// ParseJobStatus accepts any letter case.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusQueued, StatusOngoing, StatusFinished, StatusCancelled:
		return st, nil
	}
	return "", Errorf(ErrInvalidFormat, "job status %q should be one of QUEUED, ONGOING, FINISHED, CANCELLED", s)
}

// IsTerminal reports whether no further mutation is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// IsActive reports whether the job still counts towards machine workload.
func (s JobStatus) IsActive() bool {
	return s == StatusQueued || s == StatusOngoing
}

// Priority of a job in its machine queue.
type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityNormal, PriorityUrgent:
		return p, nil
	}
	return "", Errorf(ErrInvalidFormat, "priority %q should be NORMAL or URGENT", s)
}

// MachineStatus tells whether a machine accepts job starts.
type MachineStatus string

const (
	MachineEnabled  MachineStatus = "ENABLED"
	MachineDisabled MachineStatus = "DISABLED"
)

func ParseMachineStatus(s string) (MachineStatus, error) {
	st := MachineStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case MachineEnabled, MachineDisabled:
		return st, nil
	}
	return "", Errorf(ErrInvalidFormat, "machine status %q can only be ENABLED or DISABLED", s)
}

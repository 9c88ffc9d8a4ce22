package model

import (
	"fmt"
	"strings"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// Machine is a shared lab machine. It refers to its jobs by id; the jobs
// themselves live in the AddressBook.
type Machine struct {
	Name   types.MachineName
	Status types.MachineStatus
	Tags   types.TagSet
	jobIDs []JobID
}

// NewMachine returns a machine with no jobs. An empty status means ENABLED.
func NewMachine(name string, status types.MachineStatus, tags []string) (Machine, error) {
	n, err := types.NewMachineName(name)
	if err != nil {
		return Machine{}, err
	}
	if status == "" {
		status = types.MachineEnabled
	}
	st, err := types.ParseMachineStatus(string(status))
	if err != nil {
		return Machine{}, err
	}
	ts, err := types.ParseTags(tags)
	if err != nil {
		return Machine{}, err
	}
	return Machine{Name: n, Status: st, Tags: ts}, nil
}

// JobIDs returns the machine's jobs in the order they were added.
func (m Machine) JobIDs() []JobID {
	return append([]JobID(nil), m.jobIDs...)
}

func (m Machine) HasJob(id JobID) bool {
	for _, j := range m.jobIDs {
		if j == id {
			return true
		}
	}
	return false
}

func (m Machine) WithStatus(s types.MachineStatus) Machine {
	next := m
	next.Status = s
	return next
}

func (m Machine) withJob(id JobID) Machine {
	next := m
	next.jobIDs = append(append(make([]JobID, 0, len(m.jobIDs)+1), m.jobIDs...), id)
	return next
}

func (m Machine) withoutJob(id JobID) Machine {
	next := m
	next.jobIDs = make([]JobID, 0, len(m.jobIDs))
	for _, j := range m.jobIDs {
		if j != id {
			next.jobIDs = append(next.jobIDs, j)
		}
	}
	return next
}

// IsSameMachine is the weak identity: same name.
func (m Machine) IsSameMachine(o Machine) bool {
	return m.Name == o.Name
}

// IsSameMachineWithJobs also requires the same job list.
func (m Machine) IsSameMachineWithJobs(o Machine) bool {
	return m.Name == o.Name && sameJobIDs(m.jobIDs, o.jobIDs)
}

func (m Machine) Equal(o Machine) bool {
	return m.IsSameMachineWithJobs(o) && m.Status == o.Status && m.Tags.Equal(o.Tags)
}

func (m Machine) String() string {
	ids := make([]string, len(m.jobIDs))
	for i, id := range m.jobIDs {
		ids[i] = id.Short()
	}
	return fmt.Sprintf("%s Tags: %s Jobs: [%s] Status: %s", m.Name, m.Tags, strings.Join(ids, ", "), m.Status)
}

func sameJobIDs(a, b []JobID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

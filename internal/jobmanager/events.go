package jobmanager

import (
	"time"

	"github.com/ChuLiYu/labqueue/internal/model"
)

// Entity names what an Event is about.
type Entity string

const (
	EntityMachine Entity = "machine"
	EntityJob     Entity = "job"
	EntityPerson  Entity = "person"
	EntityAdmin   Entity = "admin"
	EntityBook    Entity = "book"
)

// EventKind is what happened to the entity.
type EventKind string

const (
	EventAdded         EventKind = "added"
	EventRemoved       EventKind = "removed"
	EventUpdated       EventKind = "updated"
	EventStatusChanged EventKind = "status_changed"
	EventReset         EventKind = "reset"
)

// Event describes one committed change. Subscribers receive events after
// the manager has released its lock, in the order the changes were made.
type Event struct {
	Time   time.Time
	Entity Entity
	Kind   EventKind

	// Key is the machine name, person name, username or job id.
	Key string
	// Name is the job name for job events, otherwise equal to Key.
	Name    string
	Machine string
	// From and To carry the old and new status of a status change.
	From string
	To   string
}

func jobEvent(now time.Time, kind EventKind, j model.Job) Event {
	return Event{
		Time:    now,
		Entity:  EntityJob,
		Kind:    kind,
		Key:     string(j.ID),
		Name:    j.Name.String(),
		Machine: j.Machine.String(),
	}
}

func namedEvent(now time.Time, entity Entity, kind EventKind, name string) Event {
	return Event{Time: now, Entity: entity, Kind: kind, Key: name, Name: name}
}

// Subscribe registers fn and returns a func that removes it.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subOrder = append(m.subOrder, id)
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
		for i, x := range m.subOrder {
			if x == id {
				m.subOrder = append(m.subOrder[:i], m.subOrder[i+1:]...)
				break
			}
		}
	}
}

func (m *Manager) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subOrder))
	for _, id := range m.subOrder {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

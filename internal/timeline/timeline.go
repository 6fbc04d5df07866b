// Package timeline keeps a bounded tree of world snapshots taken after
// significant turns, and restores the world from any of them.
package timeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"openhistoria/internal/world"
)

const (
	MaxSnapshots   = 50
	TrailingEvents = 20
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a read-only record of the world after a significant turn.
// ParentID names the snapshot that was current when it was taken; it may
// refer to a snapshot that has since been evicted.
type Snapshot struct {
	ID          string     `json:"id"`
	TurnYear    int        `json:"turnYear"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
	Command     string     `json:"command"`
	Slim        world.Slim `json:"slimState"`
	ParentID    string     `json:"parentSnapshotId,omitempty"`
}

// Manager stores snapshots in an arena keyed by id plus a chronological
// index. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	store   *world.Store
	arena   map[string]*Snapshot
	order   []string
	current string
	now     func() time.Time
	newID   func() string
}

func NewManager(store *world.Store) *Manager {
	return &Manager{
		store: store,
		arena: make(map[string]*Snapshot),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Capture records the current world as a child of the current snapshot and
// makes it current. The oldest snapshot is evicted past MaxSnapshots.
func (m *Manager) Capture(description, command string) string {
	slim := m.store.Slim(TrailingEvents)

	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &Snapshot{
		ID:          m.newID(),
		TurnYear:    slim.Turn,
		Timestamp:   m.now().UTC(),
		Description: description,
		Command:     command,
		Slim:        slim,
		ParentID:    m.current,
	}
	m.arena[snap.ID] = snap
	m.order = append(m.order, snap.ID)
	for len(m.order) > MaxSnapshots {
		delete(m.arena, m.order[0])
		m.order = m.order[1:]
	}
	m.current = snap.ID
	return snap.ID
}

// Rewind restores the turn, province owners, events and relations from the
// snapshot and makes it current. The snapshot list is kept.
func (m *Manager) Rewind(id string) error {
	_, err := m.rewind(id)
	return err
}

// Branch rewinds to the snapshot and logs that a new line of history
// starts there.
func (m *Manager) Branch(id string) error {
	snap, err := m.rewind(id)
	if err != nil {
		return err
	}
	m.store.AppendLog(world.LogInfo, fmt.Sprintf("Branched timeline from %d: %s", snap.TurnYear, snap.Description))
	return nil
}

func (m *Manager) rewind(id string) (Snapshot, error) {
	m.mu.Lock()
	snap, ok := m.arena[id]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	m.current = id
	copied := cloneSnapshot(snap)
	m.mu.Unlock()

	m.store.RestoreSlim(copied.Slim)
	return copied, nil
}

// List returns the retained snapshots, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneSnapshot(m.arena[id]))
	}
	return out
}

func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.arena[id]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

// Current returns the id new captures will link to, or "" before the
// first capture.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Children returns the retained snapshots whose parent is id.
func (m *Manager) Children(id string) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for _, sid := range m.order {
		if snap := m.arena[sid]; snap.ParentID == id {
			out = append(out, cloneSnapshot(snap))
		}
	}
	return out
}

// Restore replaces the whole history, as when a save is loaded. Only the
// newest MaxSnapshots are kept. currentID is dropped if it is not among
// them.
func (m *Manager) Restore(snapshots []Snapshot, currentID string) {
	if len(snapshots) > MaxSnapshots {
		snapshots = snapshots[len(snapshots)-MaxSnapshots:]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arena = make(map[string]*Snapshot, len(snapshots))
	m.order = m.order[:0]
	for _, s := range snapshots {
		if _, dup := m.arena[s.ID]; dup || s.ID == "" {
			continue
		}
		snap := cloneSnapshot(&s)
		m.arena[s.ID] = &snap
		m.order = append(m.order, s.ID)
	}
	m.current = ""
	if _, ok := m.arena[currentID]; ok {
		m.current = currentID
	}
}

func cloneSnapshot(s *Snapshot) Snapshot {
	out := *s
	out.Slim.ProvinceOwners = make(map[string]*string, len(s.Slim.ProvinceOwners))
	for id, owner := range s.Slim.ProvinceOwners {
		if owner != nil {
			v := *owner
			owner = &v
		}
		out.Slim.ProvinceOwners[id] = owner
	}
	out.Slim.Events = append([]world.Event(nil), s.Slim.Events...)
	out.Slim.Relations = make([]world.Relation, len(s.Slim.Relations))
	for i, r := range s.Slim.Relations {
		r.Treaties = append([]string(nil), r.Treaties...)
		out.Slim.Relations[i] = r
	}
	return out
}

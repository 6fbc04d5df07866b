package world

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNarrativeRunes = 4000

// Store is the canonical mutable world record of one session. All methods
// are safe for concurrent use; readers get copies.
type Store struct {
	mu    sync.RWMutex
	state State
	newID func() string
}

// NewStore creates a store seeded with a copy of initial.
func NewStore(initial State) *Store {
	s := &Store{newID: uuid.NewString}
	s.state = cloneState(initial)
	s.state.Events = trimHead(s.state.Events, MaxEvents)
	s.state.Logs = trimHead(s.state.Logs, MaxLogs)
	return s
}

// Replace swaps the whole world for a copy of next, as when a save is loaded.
func (s *Store) Replace(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cloneState(next)
	s.state.Events = trimHead(s.state.Events, MaxEvents)
	s.state.Logs = trimHead(s.state.Logs, MaxLogs)
}

// State returns a deep copy of the current world.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

func (s *Store) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Turn
}

// AdvanceTurn adds amount to the turn counter and returns the new value.
func (s *Store) AdvanceTurn(amount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Turn += amount
	return s.state.Turn
}

func (s *Store) Nations() []Nation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Nation(nil), s.state.Nations...)
}

func (s *Store) Provinces() []Province {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProvinces(s.state.Provinces)
}

func (s *Store) Relations() []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRelations(s.state.Relations)
}

func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.state.Events...)
}

func (s *Store) Logs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LogEntry(nil), s.state.Logs...)
}

// RecentLogs returns at most n of the newest log entries, oldest first.
func (s *Store) RecentLogs(n int) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LogEntry(nil), tail(s.state.Logs, n)...)
}

// RecentEvents returns at most n of the newest events, oldest first.
func (s *Store) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), tail(s.state.Events, n)...)
}

// AppendEvent records an event, evicting the oldest beyond MaxEvents.
func (s *Store) AppendEvent(year int, description string, eventType EventType) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := Event{ID: s.newID(), Year: year, Description: description, Type: eventType}
	s.state.Events = trimHead(append(s.state.Events, event), MaxEvents)
	return event
}

// AppendLog records a log entry, evicting the oldest beyond MaxLogs.
func (s *Store) AppendLog(logType LogType, text string) LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := LogEntry{ID: s.newID(), Type: logType, Text: text}
	s.state.Logs = trimHead(append(s.state.Logs, entry), MaxLogs)
	return entry
}

// SetRelation removes any relation for the unordered pair {a, b} and
// appends the new record.
func (s *Store) SetRelation(rel Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Relations[:0]
	for _, existing := range s.state.Relations {
		if existing.SamePair(rel.NationA, rel.NationB) {
			continue
		}
		kept = append(kept, existing)
	}
	rel.Treaties = append([]string(nil), rel.Treaties...)
	s.state.Relations = append(kept, rel)
}

// FindProvince resolves a free-form province name. See matchProvince.
func (s *Store) FindProvince(target string) (Province, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := matchProvince(s.state.Provinces, target)
	if idx < 0 {
		return Province{}, false
	}
	return cloneProvince(s.state.Provinces[idx]), true
}

// SetOwner assigns ownerID to the province with the given id. An empty
// ownerID clears ownership.
func (s *Store) SetOwner(provinceID, ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Provinces {
		if s.state.Provinces[i].ID != provinceID {
			continue
		}
		if ownerID == "" {
			s.state.Provinces[i].OwnerID = nil
		} else {
			owner := ownerID
			s.state.Provinces[i].OwnerID = &owner
		}
		return true
	}
	return false
}

type OwnedProvince struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// OwnershipSummary lists every province that has an owner, in province order.
func (s *Store) OwnershipSummary() []OwnedProvince {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := make([]OwnedProvince, 0, len(s.state.Provinces))
	for _, p := range s.state.Provinces {
		if p.OwnerID == nil {
			continue
		}
		owned = append(owned, OwnedProvince{Name: p.Name, OwnerID: *p.OwnerID})
	}
	return owned
}

func (s *Store) Narrative() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Narrative
}

// AppendNarrative extends the running story summary, keeping only the
// newest maxNarrativeRunes runes.
func (s *Store) AppendNarrative(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	narrative := line
	if s.state.Narrative != "" {
		narrative = s.state.Narrative + "\n" + line
	}
	if n := utf8.RuneCountInString(narrative); n > maxNarrativeRunes {
		runes := []rune(narrative)
		narrative = string(runes[n-maxNarrativeRunes:])
		if i := strings.IndexByte(narrative, '\n'); i >= 0 && i < len(narrative)-1 {
			narrative = narrative[i+1:]
		}
	}
	s.state.Narrative = narrative
}

// Slim copies the turn, every province owner, the newest trailingEvents
// events and all relations.
func (s *Store) Slim(trailingEvents int) Slim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := make(map[string]*string, len(s.state.Provinces))
	for _, p := range s.state.Provinces {
		owners[p.ID] = copyOwner(p.OwnerID)
	}
	return Slim{
		Turn:           s.state.Turn,
		ProvinceOwners: owners,
		Events:         append([]Event(nil), tail(s.state.Events, trailingEvents)...),
		Relations:      cloneRelations(s.state.Relations),
	}
}

// RestoreSlim resets the turn, province owners, events and relations from
// slim. Provinces absent from slim keep their owner; logs are untouched.
func (s *Store) RestoreSlim(slim Slim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Turn = slim.Turn
	for i := range s.state.Provinces {
		owner, ok := slim.ProvinceOwners[s.state.Provinces[i].ID]
		if !ok {
			continue
		}
		s.state.Provinces[i].OwnerID = copyOwner(owner)
	}
	s.state.Events = trimHead(append([]Event(nil), slim.Events...), MaxEvents)
	s.state.Relations = cloneRelations(slim.Relations)
}

func trimHead[T any](items []T, max int) []T {
	if len(items) <= max {
		return items
	}
	return append(items[:0:0], items[len(items)-max:]...)
}

func tail[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func copyOwner(owner *string) *string {
	if owner == nil {
		return nil
	}
	v := *owner
	return &v
}

func cloneProvince(p Province) Province {
	p.OwnerID = copyOwner(p.OwnerID)
	return p
}

func cloneProvinces(provinces []Province) []Province {
	if provinces == nil {
		return nil
	}
	out := make([]Province, len(provinces))
	for i, p := range provinces {
		out[i] = cloneProvince(p)
	}
	return out
}

func cloneRelations(relations []Relation) []Relation {
	if relations == nil {
		return nil
	}
	out := make([]Relation, len(relations))
	for i, r := range relations {
		r.Treaties = append([]string(nil), r.Treaties...)
		out[i] = r
	}
	return out
}

func cloneState(s State) State {
	return State{
		Turn:      s.Turn,
		Nations:   append([]Nation(nil), s.Nations...),
		Provinces: cloneProvinces(s.Provinces),
		Relations: cloneRelations(s.Relations),
		Events:    append([]Event(nil), s.Events...),
		Logs:      append([]LogEntry(nil), s.Logs...),
		Narrative: s.Narrative,
	}
}

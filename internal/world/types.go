package world

import (
	"encoding/json"
	"strings"
)

// PlayerID is the reserved nation id of the human-controlled nation.
const PlayerID = "player"

const (
	MaxEvents = 200
	MaxLogs   = 200
)

type Resources struct {
	Population int `json:"population" yaml:"population"`
	Defense    int `json:"defense" yaml:"defense"`
	Economy    int `json:"economy" yaml:"economy"`
	Technology int `json:"technology" yaml:"technology"`
}

type Province struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	OwnerID           *string   `json:"ownerId"`
	ParentCountryID   string    `json:"parentCountryId"`
	ParentCountryName string    `json:"parentCountryName"`
	IsSubNational     bool      `json:"isSubNational"`
	Resources         Resources `json:"resources"`
}

// Owner returns the owning nation id, or "" when unowned.
func (p Province) Owner() string {
	if p.OwnerID == nil {
		return ""
	}
	return *p.OwnerID
}

type Nation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Treasury int    `json:"treasury"`
}

type RelationType string

const (
	RelationNeutral  RelationType = "neutral"
	RelationFriendly RelationType = "friendly"
	RelationAllied   RelationType = "allied"
	RelationHostile  RelationType = "hostile"
	RelationWar      RelationType = "war"
	RelationVassal   RelationType = "vassal"
)

var relationTypes = []RelationType{
	RelationNeutral, RelationFriendly, RelationAllied, RelationHostile, RelationWar, RelationVassal,
}

// ParseRelationType lowercases and trims value. ok is false when the
// result is outside the known set.
func ParseRelationType(value string) (RelationType, bool) {
	normalized := RelationType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range relationTypes {
		if t == normalized {
			return t, true
		}
	}
	return normalized, false
}

type Relation struct {
	NationA  string       `json:"nationA"`
	NationB  string       `json:"nationB"`
	Type     RelationType `json:"type"`
	Treaties []string     `json:"treaties"`
}

// SamePair reports whether r links a and b in either order.
func (r Relation) SamePair(a, b string) bool {
	return (r.NationA == a && r.NationB == b) || (r.NationA == b && r.NationB == a)
}

type EventType string

const (
	EventDiplomacy EventType = "diplomacy"
	EventWar       EventType = "war"
	EventDiscovery EventType = "discovery"
	EventFlavor    EventType = "flavor"
	EventEconomy   EventType = "economy"
	EventCrisis    EventType = "crisis"
)

var eventTypes = []EventType{EventDiplomacy, EventWar, EventDiscovery, EventFlavor, EventEconomy, EventCrisis}

// ParseEventType normalizes value against the fixed set, defaulting to
// flavor for anything unrecognized.
func ParseEventType(value string) EventType {
	normalized := EventType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range eventTypes {
		if t == normalized {
			return t
		}
	}
	return EventFlavor
}

type Event struct {
	ID          string    `json:"id"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	Type        EventType `json:"type"`
}

type LogType string

const (
	LogCommand      LogType = "command"
	LogInfo         LogType = "info"
	LogError        LogType = "error"
	LogSuccess      LogType = "success"
	LogCapture      LogType = "capture"
	LogWar          LogType = "war"
	LogDiplomacy    LogType = "diplomacy"
	LogEconomy      LogType = "economy"
	LogCrisis       LogType = "crisis"
	LogEventSummary LogType = "event-summary"
)

type LogEntry struct {
	ID   string  `json:"id"`
	Type LogType `json:"type"`
	Text string  `json:"text"`
}

// State is the complete world record. It is the unit of saving and loading.
type State struct {
	Turn      int        `json:"turn"`
	Nations   []Nation   `json:"nations"`
	Provinces []Province `json:"provinces"`
	Relations []Relation `json:"relations"`
	Events    []Event    `json:"events"`
	Logs      []LogEntry `json:"logs"`
	Narrative string     `json:"narrative,omitempty"`
}

// Slim is the minimal serializable subset captured by timeline snapshots.
type Slim struct {
	Turn           int                `json:"turn"`
	ProvinceOwners map[string]*string `json:"provinceOwners"`
	Events         []Event            `json:"events"`
	Relations      []Relation         `json:"relations"`
}

type UpdateKind string

const (
	UpdateOwner    UpdateKind = "owner"
	UpdateTime     UpdateKind = "time"
	UpdateEvent    UpdateKind = "event"
	UpdateRelation UpdateKind = "relation"
)

type OwnerUpdate struct {
	ProvinceName string `json:"provinceName"`
	NewOwnerID   string `json:"newOwnerId"`
}

type TimeUpdate struct {
	Amount int `json:"amount"`
}

type EventUpdate struct {
	Description string    `json:"description"`
	EventType   EventType `json:"eventType"`
	Year        int       `json:"year"`
}

type RelationUpdate struct {
	NationA      string `json:"nationA"`
	NationB      string `json:"nationB"`
	RelationType string `json:"relationType"`
	Reason       string `json:"reason"`
}

// Update is one proposed state change. Exactly one payload pointer matching
// Kind is set.
type Update struct {
	Kind     UpdateKind
	Owner    *OwnerUpdate
	Time     *TimeUpdate
	Event    *EventUpdate
	Relation *RelationUpdate
}

func NewOwnerUpdate(provinceName, newOwnerID string) Update {
	return Update{Kind: UpdateOwner, Owner: &OwnerUpdate{ProvinceName: provinceName, NewOwnerID: newOwnerID}}
}

func NewTimeUpdate(amount int) Update {
	return Update{Kind: UpdateTime, Time: &TimeUpdate{Amount: amount}}
}

func NewEventUpdate(description string, eventType EventType, year int) Update {
	return Update{Kind: UpdateEvent, Event: &EventUpdate{Description: description, EventType: eventType, Year: year}}
}

func NewRelationUpdate(nationA, nationB, relationType, reason string) Update {
	return Update{Kind: UpdateRelation, Relation: &RelationUpdate{NationA: nationA, NationB: nationB, RelationType: relationType, Reason: reason}}
}

// MarshalJSON emits the flat shape the oracle is asked to produce, with a
// "type" discriminator.
func (u Update) MarshalJSON() ([]byte, error) {
	switch u.Kind {
	case UpdateOwner:
		if u.Owner != nil {
			return json.Marshal(struct {
				Type UpdateKind `json:"type"`
				OwnerUpdate
			}{u.Kind, *u.Owner})
		}
	case UpdateTime:
		if u.Time != nil {
			return json.Marshal(struct {
				Type UpdateKind `json:"type"`
				TimeUpdate
			}{u.Kind, *u.Time})
		}
	case UpdateEvent:
		if u.Event != nil {
			return json.Marshal(struct {
				Type UpdateKind `json:"type"`
				EventUpdate
			}{u.Kind, *u.Event})
		}
	case UpdateRelation:
		if u.Relation != nil {
			return json.Marshal(struct {
				Type UpdateKind `json:"type"`
				RelationUpdate
			}{u.Kind, *u.Relation})
		}
	}
	return json.Marshal(struct {
		Type UpdateKind `json:"type"`
	}{u.Kind})
}

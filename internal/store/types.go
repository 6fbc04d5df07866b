package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"openhistoria/internal/timeline"
	"openhistoria/internal/world"
)

// AutosaveID is the fixed id of the rolling automatic save.
const AutosaveID = "autosave"

// SavedGame is a complete session: the world plus its timeline.
type SavedGame struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Scenario        string              `json:"scenario"`
	Auto            bool                `json:"auto"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	State           world.State         `json:"state"`
	Timeline        []timeline.Snapshot `json:"timeline"`
	CurrentSnapshot string              `json:"currentSnapshot,omitempty"`
}

type GameSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scenario  string    `json:"scenario"`
	Turn      int       `json:"turn"`
	Auto      bool      `json:"auto"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SearchResult struct {
	GameSummary
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

func (g *SavedGame) Summary() GameSummary {
	return GameSummary{
		ID:        g.ID,
		Name:      g.Name,
		Scenario:  g.Scenario,
		Turn:      g.State.Turn,
		Auto:      g.Auto,
		UpdatedAt: g.UpdatedAt,
	}
}

// Validate checks the fields every backend requires.
func (g *SavedGame) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("saved game id is required")
	}
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("saved game name is required")
	}
	return nil
}

// Payload is the JSON column shared by the backends.
type Payload struct {
	State           world.State         `json:"state"`
	Timeline        []timeline.Snapshot `json:"timeline"`
	CurrentSnapshot string              `json:"currentSnapshot,omitempty"`
}

func EncodePayload(g SavedGame) ([]byte, error) {
	data, err := json.Marshal(Payload{State: g.State, Timeline: g.Timeline, CurrentSnapshot: g.CurrentSnapshot})
	if err != nil {
		return nil, fmt.Errorf("marshaling saved game: %w", err)
	}
	return data, nil
}

func DecodePayload(data []byte, g *SavedGame) error {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshaling saved game: %w", err)
	}
	g.State = p.State
	g.Timeline = p.Timeline
	g.CurrentSnapshot = p.CurrentSnapshot
	return nil
}

// Session is a running game that can be captured into a save.
type Session interface {
	World() *world.Store
	Timeline() *timeline.Manager
}

// Capture copies a running session into a SavedGame.
func Capture(s Session, id, name, scenario string) SavedGame {
	tl := s.Timeline()
	return SavedGame{
		ID:              id,
		Name:            name,
		Scenario:        scenario,
		State:           s.World().State(),
		Timeline:        tl.List(),
		CurrentSnapshot: tl.Current(),
	}
}

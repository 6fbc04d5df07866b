package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"openhistoria/internal/apperr"
	"openhistoria/internal/timeline"
	"openhistoria/internal/world"
)

const recentItems = 10

type SubmitCommandInput struct {
	Command string `json:"command" jsonschema:"the player's order, in plain language"`
}

type GetWorldInput struct{}

type ListSnapshotsInput struct{}

type SnapshotInput struct {
	SnapshotID string `json:"snapshot_id" jsonschema:"id of a timeline snapshot"`
}

type AdvanceTimeInput struct {
	Years int `json:"years" jsonschema:"number of years to advance, at least 1"`
}

type TurnOutput struct {
	Turn        int      `json:"turn"`
	Message     string   `json:"message"`
	Applied     []string `json:"applied"`
	Ignored     int      `json:"ignored"`
	Significant bool     `json:"significant"`
	SnapshotID  string   `json:"snapshot_id,omitempty"`
}

type NationOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provinces int    `json:"provinces"`
}

type ProvinceOutput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

type RelationOutput struct {
	NationA string `json:"nation_a"`
	NationB string `json:"nation_b"`
	Type    string `json:"type"`
}

type WorldOutput struct {
	Turn         int              `json:"turn"`
	Nations      []NationOutput   `json:"nations"`
	Provinces    []ProvinceOutput `json:"provinces"`
	Relations    []RelationOutput `json:"relations"`
	RecentEvents []string         `json:"recent_events"`
	RecentLog    []string         `json:"recent_log"`
}

type SnapshotOutput struct {
	ID          string    `json:"id"`
	TurnYear    int       `json:"turn_year"`
	Description string    `json:"description"`
	Command     string    `json:"command"`
	ParentID    string    `json:"parent_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type ListSnapshotsOutput struct {
	Current   string           `json:"current,omitempty"`
	Snapshots []SnapshotOutput `json:"snapshots"`
}

type TimelineOutput struct {
	Turn    int    `json:"turn"`
	Current string `json:"current"`
}

type AdvanceTimeOutput struct {
	Turn int `json:"turn"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "submit_command",
		Description: "Submit a player command and apply the adjudicated outcome",
	}, s.handleSubmitCommand)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_world",
		Description: "Return the current year, nations, province ownership and diplomacy",
	}, s.handleGetWorld)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_snapshots",
		Description: "List timeline snapshots, oldest first",
	}, s.handleListSnapshots)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "rewind_timeline",
		Description: "Restore the world to a snapshot",
	}, s.handleRewind)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "branch_timeline",
		Description: "Restore the world to a snapshot and start a new branch from it",
	}, s.handleBranch)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "advance_time",
		Description: "Advance the calendar by a number of years",
	}, s.handleAdvanceTime)
}

func (s *Server) handleSubmitCommand(ctx context.Context, req *sdk.CallToolRequest, input SubmitCommandInput) (*sdk.CallToolResult, TurnOutput, error) {
	res, err := s.session.Submit(context.WithoutCancel(ctx), input.Command)
	if err != nil {
		return nil, TurnOutput{}, fmt.Errorf("%s", apperr.Narrative(err))
	}
	out := TurnOutput{
		Turn:        res.Turn,
		Message:     res.Message,
		Applied:     make([]string, 0, len(res.Applied)),
		Ignored:     len(res.Ignored),
		Significant: res.Significant,
		SnapshotID:  res.SnapshotID,
	}
	for _, a := range res.Applied {
		out.Applied = append(out.Applied, a.Log.Text)
	}
	return nil, out, nil
}

func (s *Server) handleGetWorld(ctx context.Context, req *sdk.CallToolRequest, input GetWorldInput) (*sdk.CallToolResult, WorldOutput, error) {
	return nil, worldOutput(s.session.World().State()), nil
}

func (s *Server) handleListSnapshots(ctx context.Context, req *sdk.CallToolRequest, input ListSnapshotsInput) (*sdk.CallToolResult, ListSnapshotsOutput, error) {
	tl := s.session.Timeline()
	snaps := tl.List()
	out := ListSnapshotsOutput{
		Current:   tl.Current(),
		Snapshots: make([]SnapshotOutput, 0, len(snaps)),
	}
	for _, snap := range snaps {
		out.Snapshots = append(out.Snapshots, snapshotOutput(snap))
	}
	return nil, out, nil
}

func (s *Server) handleRewind(ctx context.Context, req *sdk.CallToolRequest, input SnapshotInput) (*sdk.CallToolResult, TimelineOutput, error) {
	if input.SnapshotID == "" {
		return nil, TimelineOutput{}, fmt.Errorf("snapshot_id is required")
	}
	if err := s.session.Rewind(input.SnapshotID); err != nil {
		return nil, TimelineOutput{}, err
	}
	return nil, s.timelineOutput(), nil
}

func (s *Server) handleBranch(ctx context.Context, req *sdk.CallToolRequest, input SnapshotInput) (*sdk.CallToolResult, TimelineOutput, error) {
	if input.SnapshotID == "" {
		return nil, TimelineOutput{}, fmt.Errorf("snapshot_id is required")
	}
	if err := s.session.Branch(input.SnapshotID); err != nil {
		return nil, TimelineOutput{}, err
	}
	return nil, s.timelineOutput(), nil
}

func (s *Server) handleAdvanceTime(ctx context.Context, req *sdk.CallToolRequest, input AdvanceTimeInput) (*sdk.CallToolResult, AdvanceTimeOutput, error) {
	turn, err := s.session.AdvanceTime(input.Years)
	if err != nil {
		return nil, AdvanceTimeOutput{}, err
	}
	return nil, AdvanceTimeOutput{Turn: turn}, nil
}

func (s *Server) timelineOutput() TimelineOutput {
	return TimelineOutput{
		Turn:    s.session.World().Turn(),
		Current: s.session.Timeline().Current(),
	}
}

func worldOutput(state world.State) WorldOutput {
	owned := map[string]int{}
	provinces := make([]ProvinceOutput, 0, len(state.Provinces))
	for _, p := range state.Provinces {
		owner := p.Owner()
		if owner != "" {
			owned[owner]++
		}
		provinces = append(provinces, ProvinceOutput{ID: p.ID, Name: p.Name, Owner: owner})
	}

	nations := make([]NationOutput, 0, len(state.Nations))
	for _, n := range state.Nations {
		nations = append(nations, NationOutput{ID: n.ID, Name: n.Name, Provinces: owned[n.ID]})
	}

	relations := make([]RelationOutput, 0, len(state.Relations))
	for _, r := range state.Relations {
		relations = append(relations, RelationOutput{NationA: r.NationA, NationB: r.NationB, Type: string(r.Type)})
	}

	out := WorldOutput{
		Turn:         state.Turn,
		Nations:      nations,
		Provinces:    provinces,
		Relations:    relations,
		RecentEvents: []string{},
		RecentLog:    []string{},
	}
	for _, e := range lastN(state.Events, recentItems) {
		out.RecentEvents = append(out.RecentEvents, fmt.Sprintf("%d: %s", e.Year, e.Description))
	}
	for _, l := range lastN(state.Logs, recentItems) {
		out.RecentLog = append(out.RecentLog, fmt.Sprintf("[%s] %s", l.Type, l.Text))
	}
	return out
}

func snapshotOutput(snap timeline.Snapshot) SnapshotOutput {
	return SnapshotOutput{
		ID:          snap.ID,
		TurnYear:    snap.TurnYear,
		Description: snap.Description,
		Command:     snap.Command,
		ParentID:    snap.ParentID,
		Timestamp:   snap.Timestamp,
	}
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

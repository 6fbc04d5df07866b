package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"openhistoria/internal/apperr"
	"openhistoria/internal/oracle"
	"openhistoria/internal/timeline"
	"openhistoria/internal/world"
)

// ErrBusy is returned when a turn or restore is submitted while another is
// still running. Nothing is queued.
var ErrBusy = errors.New("a turn is already in progress")

type Phase int32

const (
	Idle Phase = iota
	Dispatching
	Applying
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case Applying:
		return "applying"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Settings are the per-session game and oracle choices.
type Settings struct {
	Scenario   string
	Difficulty string
	Oracle     oracle.ProviderConfig
}

// AppliedUpdate pairs an applied update with the log entry it produced.
type AppliedUpdate struct {
	Update world.Update   `json:"update"`
	Log    world.LogEntry `json:"log"`
}

type Result struct {
	Turn        int             `json:"turn"`
	Message     string          `json:"message"`
	Applied     []AppliedUpdate `json:"applied"`
	Ignored     []world.Update  `json:"ignored"`
	Significant bool            `json:"significant"`
	SnapshotID  string          `json:"snapshotId,omitempty"`
}

// RecordKind says which coordinator operation produced a Record.
type RecordKind string

const (
	KindTurn    RecordKind = "turn"
	KindAdvance RecordKind = "advance"
	KindRewind  RecordKind = "rewind"
	KindBranch  RecordKind = "branch"
)

// Record describes a finished world change for observers. State and
// Timeline are copies taken after the change. Command is the player's
// order for turns and a short description otherwise.
type Record struct {
	At              time.Time
	Kind            RecordKind
	Command         string
	Result          Result
	Err             error
	State           world.State
	Timeline        []timeline.Snapshot
	CurrentSnapshot string
}

// Observer is told about every finished turn, time advance and restore.
// Implementations must not
// block; the coordinator calls them before returning to the caller.
type Observer interface {
	TurnCompleted(rec Record)
}

type ObserverFunc func(rec Record)

func (f ObserverFunc) TurnCompleted(rec Record) { f(rec) }

// Coordinator owns a session's world and timeline and is their only
// mutator. Turns and restores are serialized by a phase guard that rejects
// instead of waiting.
type Coordinator struct {
	phase       atomic.Int32
	world       *world.Store
	timeline    *timeline.Manager
	adjudicator *Adjudicator
	logger      *log.Logger
	now         func() time.Time

	mu        sync.RWMutex
	settings  Settings
	observers []Observer
}

func NewCoordinator(store *world.Store, tl *timeline.Manager, adj *Adjudicator, settings Settings, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Coordinator{
		world:       store,
		timeline:    tl,
		adjudicator: adj,
		logger:      logger,
		now:         time.Now,
		settings:    settings,
	}
}

// Observe registers o for turn notifications.
func (c *Coordinator) Observe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Coordinator) Phase() Phase { return Phase(c.phase.Load()) }

func (c *Coordinator) World() *world.Store { return c.world }

func (c *Coordinator) Timeline() *timeline.Manager { return c.timeline }

func (c *Coordinator) Policy() TimePolicy { return c.adjudicator.Policy() }

func (c *Coordinator) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Configure replaces the session settings. It takes effect on the next turn.
func (c *Coordinator) Configure(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

func (c *Coordinator) acquire(next Phase) bool {
	return c.phase.CompareAndSwap(int32(Idle), int32(next))
}

func (c *Coordinator) release() { c.phase.Store(int32(Idle)) }

// Submit runs one full turn for command. On any failure the world is left
// untouched apart from the command and error log entries.
func (c *Coordinator) Submit(ctx context.Context, command string) (Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{}, apperr.New(apperr.CodeValidation, "command is required")
	}
	if !c.acquire(Dispatching) {
		return Result{}, ErrBusy
	}
	defer c.release()

	req := c.request(command)
	c.world.AppendLog(world.LogCommand, command)

	payload, err := c.adjudicator.Adjudicate(ctx, req)
	if err != nil {
		msg := apperr.Narrative(err)
		c.world.AppendLog(world.LogError, msg)
		c.logger.Printf("turn %d: %q failed: %v", req.GameState.Turn, command, err)
		res := Result{Turn: c.world.Turn(), Message: msg}
		c.notify(KindTurn, command, res, err)
		return res, err
	}

	c.phase.Store(int32(Applying))
	res := c.apply(command, payload.Message, payload.Updates)
	c.notify(KindTurn, command, res, nil)
	return res, nil
}

// AdvanceTime moves the calendar forward by years on the player's behalf.
func (c *Coordinator) AdvanceTime(years int) (int, error) {
	if years <= 0 {
		return 0, apperr.New(apperr.CodeValidation, "years must be positive")
	}
	if !c.acquire(Applying) {
		return 0, ErrBusy
	}
	defer c.release()

	turn := c.world.AdvanceTurn(years)
	entry := c.world.AppendLog(world.LogEventSummary, fmt.Sprintf("%d %s pass. The year is now %d.", years, plural(years, "year"), turn))
	c.notify(KindAdvance, fmt.Sprintf("advance %d", years), Result{Turn: turn, Message: entry.Text}, nil)
	return turn, nil
}

// Rewind restores the world from a snapshot.
func (c *Coordinator) Rewind(id string) error {
	if !c.acquire(Applying) {
		return ErrBusy
	}
	defer c.release()
	if err := c.timeline.Rewind(id); err != nil {
		return err
	}
	c.notifyRestore(KindRewind, id)
	return nil
}

// Branch restores the world from a snapshot and starts a new branch there.
func (c *Coordinator) Branch(id string) error {
	if !c.acquire(Applying) {
		return ErrBusy
	}
	defer c.release()
	if err := c.timeline.Branch(id); err != nil {
		return err
	}
	c.notifyRestore(KindBranch, id)
	return nil
}

// Load replaces the world and timeline with a saved game.
func (c *Coordinator) Load(state world.State, snapshots []timeline.Snapshot, currentID string) error {
	if !c.acquire(Applying) {
		return ErrBusy
	}
	defer c.release()
	c.world.Replace(state)
	c.timeline.Restore(snapshots, currentID)
	return nil
}

// NewGame starts over from state with an empty timeline.
func (c *Coordinator) NewGame(state world.State) error {
	if !c.acquire(Applying) {
		return ErrBusy
	}
	defer c.release()
	c.world.Replace(state)
	c.timeline.Restore(nil, "")
	c.world.AppendLog(world.LogInfo, fmt.Sprintf("A new game begins in %d.", state.Turn))
	return nil
}

func (c *Coordinator) request(command string) Request {
	settings := c.Settings()
	provinces := c.world.Provinces()
	owners := make([]ProvinceOwner, 0, len(provinces))
	for _, p := range provinces {
		owners = append(owners, ProvinceOwner{Name: p.Name, OwnerID: p.OwnerID})
	}
	return Request{
		Command: command,
		GameState: GameState{
			Turn:      c.world.Turn(),
			Players:   c.world.Nations(),
			Provinces: owners,
		},
		Config: RequestConfig{
			Provider:   settings.Oracle.Provider,
			APIKey:     settings.Oracle.APIKey,
			Model:      settings.Oracle.Model,
			Difficulty: settings.Difficulty,
			Scenario:   settings.Scenario,
		},
		History:         c.world.RecentLogs(MaxHistory),
		Events:          c.world.RecentEvents(MaxEvents),
		Relations:       c.world.Relations(),
		ProvinceSummary: ProvinceSummary(c.world.OwnershipSummary()),
		StorySoFar:      c.world.Narrative(),
	}
}

func (c *Coordinator) notifyRestore(kind RecordKind, id string) {
	turn := c.world.Turn()
	c.notify(kind, fmt.Sprintf("%s %s", kind, id), Result{
		Turn:       turn,
		Message:    fmt.Sprintf("Restored the world to %d.", turn),
		SnapshotID: id,
	}, nil)
}

func (c *Coordinator) notify(kind RecordKind, command string, res Result, err error) {
	c.mu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.RUnlock()
	if len(observers) == 0 {
		return
	}
	rec := Record{
		At:              c.now().UTC(),
		Kind:            kind,
		Command:         command,
		Result:          res,
		Err:             err,
		State:           c.world.State(),
		Timeline:        c.timeline.List(),
		CurrentSnapshot: c.timeline.Current(),
	}
	for _, o := range observers {
		o.TurnCompleted(rec)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

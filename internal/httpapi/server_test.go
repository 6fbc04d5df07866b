package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"openhistoria/internal/keystore"
	"openhistoria/internal/oracle"
	"openhistoria/internal/store"
	"openhistoria/internal/store/sqlite"
	"openhistoria/internal/timeline"
	"openhistoria/internal/turn"
	"openhistoria/internal/world"
)

type fakeProvider struct {
	name     string
	needsKey bool
	reply    string
	err      error

	// hold, when set, pauses Complete until it is closed. entered is closed
	// once the first held call starts.
	hold    chan struct{}
	entered chan struct{}
	once    sync.Once

	mu   sync.Mutex
	keys []string
}

func (f *fakeProvider) Name() string             { return f.name }
func (f *fakeProvider) RequiresKey() bool        { return f.needsKey }
func (f *fakeProvider) DefaultModel() string     { return "fake-1" }
func (f *fakeProvider) FallbackModels() []string { return []string{"fake-1"} }

func (f *fakeProvider) Complete(ctx context.Context, req oracle.Request) (string, error) {
	if f.hold != nil {
		f.once.Do(func() { close(f.entered) })
		select {
		case <-f.hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, req.APIKey)
	return f.reply, f.err
}

const normandyReply = `Here you go: {"message":"Normandy falls to Burgundy.","updates":[{"type":"owner","provinceName":"Normandy","newOwnerId":"player"},{"type":"relation","nationA":"player","nationB":"france","relationType":"WAR","reason":"invasion"}]}`

func ptr(s string) *string { return &s }

func seed() world.State {
	return world.State{
		Turn: 1444,
		Nations: []world.Nation{
			{ID: world.PlayerID, Name: "Burgundy"},
			{ID: "france", Name: "France"},
		},
		Provinces: []world.Province{
			{ID: "normandy", Name: "Normandy", OwnerID: ptr("france")},
		},
	}
}

type fixture struct {
	srv    *httptest.Server
	local  *fakeProvider
	openai *fakeProvider
	coord  *turn.Coordinator
}

func newFixture(t *testing.T, keys turn.KeyResolver, games store.Store) *fixture {
	t.Helper()
	local := &fakeProvider{name: "local", reply: normandyReply}
	openai := &fakeProvider{name: "openai", needsKey: true, reply: normandyReply}
	dispatcher := oracle.NewDispatcher(local, openai)

	ws := world.NewStore(seed())
	tl := timeline.NewManager(ws)
	adj := turn.NewAdjudicator(dispatcher, keys, turn.TimeManual)
	coord := turn.NewCoordinator(ws, tl, adj, turn.Settings{Scenario: "Hundred Years War", Oracle: oracle.ProviderConfig{Provider: "local"}}, nil)

	s := NewServer(Options{Session: coord, Adjudicator: adj, Games: games})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, local: local, openai: openai, coord: coord}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(res.Body)
	return res, buf.Bytes()
}

type turnResponse struct {
	Message string           `json:"message"`
	Updates []map[string]any `json:"updates"`
}

func turnRequest(provider, apiKey string) map[string]any {
	return map[string]any{
		"command": "invade Normandy",
		"gameState": map[string]any{
			"turn":      1444,
			"players":   []map[string]any{{"id": "player", "name": "Burgundy"}},
			"provinces": []map[string]any{{"name": "Normandy", "ownerId": "france"}},
		},
		"config": map[string]any{
			"provider": provider,
			"apiKey":   apiKey,
			"model":    "",
		},
		"history": []any{},
		"events":  []any{},
	}
}

func TestTurnEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, body := f.do(t, http.MethodPost, "/api/turn", turnRequest("local", ""))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	var out turnResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Message != "Normandy falls to Burgundy." || len(out.Updates) != 2 {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if out.Updates[1]["relationType"] != "WAR" {
		t.Fatalf("expected relation type passed through, got %v", out.Updates[1]["relationType"])
	}

	// The stateless boundary never touches the session world.
	if owner := f.coord.World().Provinces()[0].Owner(); owner != "france" {
		t.Fatalf("expected session world untouched, got owner %q", owner)
	}
}

func TestTurnEndpointFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		setup  func(f *fixture)
		status int
	}{
		{name: "malformed body", body: "{not json", status: http.StatusBadRequest},
		{name: "missing key", body: turnRequest("openai", ""), status: http.StatusBadRequest},
		{name: "unknown provider", body: turnRequest("carrier-pigeon", ""), status: http.StatusBadRequest},
		{name: "empty command", body: map[string]any{"config": map[string]any{"provider": "local"}}, status: http.StatusBadRequest},
		{
			name:   "oracle failure",
			body:   turnRequest("local", ""),
			setup:  func(f *fixture) { f.local.err = errors.New("connection refused") },
			status: http.StatusInternalServerError,
		},
		{
			name:   "unparseable reply",
			body:   turnRequest("local", ""),
			setup:  func(f *fixture) { f.local.reply = "no json here" },
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			if tt.setup != nil {
				tt.setup(f)
			}
			res, body := f.do(t, http.MethodPost, "/api/turn", tt.body)
			if res.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, res.StatusCode, body)
			}
			var out turnResponse
			if err := json.Unmarshal(body, &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Message == "" || out.Updates == nil || len(out.Updates) != 0 {
				t.Fatalf("expected narrative message with empty updates, got %s", body)
			}
		})
	}
}

func TestTurnEndpointUsesStoredKey(t *testing.T) {
	ks, err := keystore.Open(filepath.Join(t.TempDir(), "keys.yaml"), "secret")
	if err != nil {
		t.Fatalf("keystore: %v", err)
	}
	if err := ks.Set("openai", "sk-stored"); err != nil {
		t.Fatalf("set key: %v", err)
	}
	f := newFixture(t, ks, nil)

	res, body := f.do(t, http.MethodPost, "/api/turn", turnRequest("openai", ""))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	res, body = f.do(t, http.MethodPost, "/api/turn", turnRequest("openai", "sk-request"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	if len(f.openai.keys) != 2 || f.openai.keys[0] != "sk-stored" || f.openai.keys[1] != "sk-request" {
		t.Fatalf("expected stored key then request key, got %v", f.openai.keys)
	}
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, body := f.do(t, http.MethodPost, "/api/session/command", map[string]string{"command": "invade Normandy"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	var result turn.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Significant || result.SnapshotID == "" {
		t.Fatalf("expected a significant turn with a snapshot, got %+v", result)
	}

	res, body = f.do(t, http.MethodGet, "/api/session/state", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var state world.State
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Provinces[0].Owner() != world.PlayerID {
		t.Fatalf("expected normandy owned by player, got %q", state.Provinces[0].Owner())
	}
	if len(state.Relations) != 1 || state.Relations[0].Type != world.RelationWar {
		t.Fatalf("expected war with france, got %+v", state.Relations)
	}

	res, body = f.do(t, http.MethodPost, "/api/session/advance", map[string]int{"years": 3})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	var adv advanceResponse
	json.Unmarshal(body, &adv)
	if adv.Turn != 1447 {
		t.Fatalf("expected 1447, got %d", adv.Turn)
	}

	res, _ = f.do(t, http.MethodPost, "/api/session/advance", map[string]int{"years": 0})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero years, got %d", res.StatusCode)
	}

	res, _ = f.do(t, http.MethodPost, "/api/session/command", map[string]string{"command": ""})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty command, got %d", res.StatusCode)
	}
}

func TestSessionCommandSurvivesClientDisconnect(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.local.hold = make(chan struct{})
	f.local.entered = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.srv.URL+"/api/session/command", bytes.NewReader([]byte(`{"command":"invade Normandy"}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		res, err := http.DefaultClient.Do(req)
		if err == nil {
			res.Body.Close()
		}
		done <- err
	}()

	select {
	case <-f.local.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	cancel()
	if err := <-done; err == nil {
		t.Fatal("expected the client request to be canceled")
	}
	close(f.local.hold)

	deadline := time.Now().Add(5 * time.Second)
	for f.coord.Phase() != turn.Idle || len(f.coord.Timeline().List()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("turn did not finish, phase %s", f.coord.Phase())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if owner := f.coord.World().State().Provinces[0].Owner(); owner != world.PlayerID {
		t.Fatalf("expected the turn to apply after the client left, normandy owned by %q", owner)
	}
	for _, entry := range f.coord.World().Logs() {
		if entry.Type == world.LogError {
			t.Fatalf("expected no error log, got %q", entry.Text)
		}
	}
}

func TestTimelineEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(t, http.MethodPost, "/api/session/command", map[string]string{"command": "invade Normandy"})

	res, body := f.do(t, http.MethodGet, "/api/timeline", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var tl timelineResponse
	if err := json.Unmarshal(body, &tl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tl.Snapshots) != 1 || tl.Current != tl.Snapshots[0].ID {
		t.Fatalf("unexpected timeline: %+v", tl)
	}

	f.do(t, http.MethodPost, "/api/session/advance", map[string]int{"years": 10})

	res, body = f.do(t, http.MethodPost, "/api/timeline/"+tl.Current+"/rewind", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	var pos positionResponse
	json.Unmarshal(body, &pos)
	if pos.Turn != 1444 {
		t.Fatalf("expected rewind to 1444, got %d", pos.Turn)
	}

	res, _ = f.do(t, http.MethodPost, "/api/timeline/"+tl.Current+"/branch", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for branch, got %d", res.StatusCode)
	}

	res, _ = f.do(t, http.MethodPost, "/api/timeline/nope/rewind", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestSaveEndpoints(t *testing.T) {
	ctx := context.Background()
	games, err := sqlite.New(ctx, "sqlite://"+filepath.Join(t.TempDir(), "saves.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { games.Close(ctx) })
	if err := games.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	f := newFixture(t, nil, games)

	f.do(t, http.MethodPost, "/api/session/command", map[string]string{"command": "invade Normandy"})

	res, body := f.do(t, http.MethodPost, "/api/saves", map[string]string{"id": "calais", "name": "Before Calais"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.StatusCode, body)
	}
	var summary store.GameSummary
	json.Unmarshal(body, &summary)
	if summary.ID != "calais" || summary.Turn != 1444 || summary.Scenario != "Hundred Years War" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	res, _ = f.do(t, http.MethodPost, "/api/saves", map[string]string{"name": " "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a blank name, got %d", res.StatusCode)
	}

	f.do(t, http.MethodPost, "/api/session/advance", map[string]int{"years": 20})

	res, body = f.do(t, http.MethodGet, "/api/saves", nil)
	var list []store.GameSummary
	json.Unmarshal(body, &list)
	if res.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one save, got %d: %s", res.StatusCode, body)
	}

	res, body = f.do(t, http.MethodGet, "/api/saves?q=calais", nil)
	var found []store.SearchResult
	json.Unmarshal(body, &found)
	if res.StatusCode != http.StatusOK || len(found) != 1 {
		t.Fatalf("expected one search hit, got %d: %s", res.StatusCode, body)
	}

	res, body = f.do(t, http.MethodPost, "/api/saves/calais/load", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	if turn := f.coord.World().Turn(); turn != 1444 {
		t.Fatalf("expected loaded turn 1444, got %d", turn)
	}
	if len(f.coord.Timeline().List()) != 1 {
		t.Fatal("expected the timeline to be restored")
	}

	res, _ = f.do(t, http.MethodDelete, "/api/saves/calais", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
	res, _ = f.do(t, http.MethodPost, "/api/saves/calais/load", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestSavesWithoutStorage(t *testing.T) {
	f := newFixture(t, nil, nil)
	res, _ := f.do(t, http.MethodGet, "/api/saves", nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{turn.ErrBusy, http.StatusConflict},
		{timeline.ErrSnapshotNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Fatalf("statusOf(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

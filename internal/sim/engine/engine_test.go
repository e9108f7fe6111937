package engine

import (
	"context"
	"testing"

	"mazecraft.ai/internal/protocol"
	"mazecraft.ai/internal/sim/maze"
)

type captureSink struct {
	obs []protocol.ObsMsg
}

func (c *captureSink) WriteObs(o protocol.ObsMsg) error {
	c.obs = append(c.obs, o)
	return nil
}

func testConfig() Config {
	return Config{MazeID: "test", TickRateHz: 5, VisionR: 4, AttBandwidth: 3, Retention: 5}
}

func join(t *testing.T, e *Engine, name string) string {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	e.handleJoin(JoinRequest{Name: name, Resp: resp})
	r := <-resp
	if r.Err != "" {
		t.Fatalf("join %s: %s", name, r.Err)
	}
	return r.AgentID
}

func TestJoin_SpawnsDeterministically(t *testing.T) {
	layout := [][]int{
		{1, 1, 1},
		{1, 0, 0},
		{0, 0, 0},
	}
	m, _ := maze.New(3, 3, layout)
	e := New(testConfig(), m, nil, nil)

	id := join(t, e, "Klaus")
	a := e.agents[id]
	if a == nil {
		t.Fatalf("agent missing after join")
	}
	// First traversable tile in row-major order is (1,1).
	if a.Scratch.CurrTile == nil || *a.Scratch.CurrTile != (maze.Coord{X: 1, Y: 1}) {
		t.Fatalf("spawned at %v, want (1,1)", a.Scratch.CurrTile)
	}
	// Presence is marked on the spawn tile.
	evs := m.EventsAt(maze.Coord{X: 1, Y: 1})
	if len(evs) != 1 || evs[0].Subject != "Klaus" {
		t.Fatalf("spawn tile events: %v", evs)
	}
	if a.Scratch.VisionR != 4 || a.Scratch.AttBandwidth != 3 {
		t.Fatalf("config defaults not applied: %+v", a.Scratch)
	}
}

func TestStep_EmitsObsPerAgent(t *testing.T) {
	m, _ := maze.New(5, 5, nil)
	sink := &captureSink{}
	e := New(testConfig(), m, nil, nil, sink)

	idA := join(t, e, "Klaus")
	idB := join(t, e, "Maria")
	e.step()

	if len(sink.obs) != 2 {
		t.Fatalf("got %d obs, want 2", len(sink.obs))
	}
	if sink.obs[0].AgentID != idA || sink.obs[1].AgentID != idB {
		t.Fatalf("obs order %s,%s; want join order %s,%s",
			sink.obs[0].AgentID, sink.obs[1].AgentID, idA, idB)
	}
	if sink.obs[0].Tick != 1 {
		t.Fatalf("tick = %d, want 1", sink.obs[0].Tick)
	}
	// Both agents share the spawn area; each sees the other's idle event
	// within the default radius.
	if len(sink.obs[0].Events) == 0 {
		t.Fatalf("Klaus perceived nothing")
	}
}

func TestAct_MoveRelocatesPresenceEvents(t *testing.T) {
	m, _ := maze.New(5, 5, nil)
	e := New(testConfig(), m, nil, nil)

	id := join(t, e, "Klaus")
	from := *e.agents[id].Scratch.CurrTile

	e.pending = append(e.pending, protocol.ActMsg{AgentID: id, Move: &[2]int{2, 3}})
	e.step()

	if got := *e.agents[id].Scratch.CurrTile; got != (maze.Coord{X: 2, Y: 3}) {
		t.Fatalf("agent at %s, want (2,3)", got)
	}
	if evs := m.EventsAt(from); len(evs) != 0 {
		t.Fatalf("stale events at old tile: %v", evs)
	}
	evs := m.EventsAt(maze.Coord{X: 2, Y: 3})
	if len(evs) != 1 || evs[0].Subject != "Klaus" {
		t.Fatalf("presence not moved: %v", evs)
	}
}

func TestAct_MoveToWallRejected(t *testing.T) {
	m, _ := maze.New(3, 3, [][]int{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})
	e := New(testConfig(), m, nil, nil)
	id := join(t, e, "Klaus")
	from := *e.agents[id].Scratch.CurrTile

	e.pending = append(e.pending, protocol.ActMsg{AgentID: id, Move: &[2]int{1, 1}})
	e.step()

	if got := *e.agents[id].Scratch.CurrTile; got != from {
		t.Fatalf("agent moved onto a wall: %s", got)
	}
}

func TestAct_PlaceAndRemoveEvents(t *testing.T) {
	m, _ := maze.New(4, 4, nil)
	e := New(testConfig(), m, nil, nil)
	id := join(t, e, "Klaus")

	e.pending = append(e.pending,
		protocol.ActMsg{AgentID: id, PlaceEvent: &protocol.EventAt{
			Position: [2]int{3, 3}, Tuple: []string{"Bob", "eating", "apple", ""},
		}},
		protocol.ActMsg{AgentID: id, PlaceEvent: &protocol.EventAt{
			Position: [2]int{3, 3}, Tuple: []string{"Bob", "walking"},
		}},
	)
	e.step()
	if evs := m.EventsAt(maze.Coord{X: 3, Y: 3}); len(evs) != 2 {
		t.Fatalf("placed events: %v", evs)
	}

	// Partial tuple removes every Bob event.
	e.pending = append(e.pending, protocol.ActMsg{AgentID: id, RemoveEvent: &protocol.EventAt{
		Position: [2]int{3, 3}, Tuple: []string{"Bob"},
	}})
	e.step()
	if evs := m.EventsAt(maze.Coord{X: 3, Y: 3}); len(evs) != 0 {
		t.Fatalf("partial removal left: %v", evs)
	}
}

func TestAct_PlaceEventExpandGrowsMaze(t *testing.T) {
	m, _ := maze.New(3, 3, nil)
	e := New(testConfig(), m, nil, nil)
	id := join(t, e, "Klaus")

	e.pending = append(e.pending, protocol.ActMsg{AgentID: id, PlaceEvent: &protocol.EventAt{
		Position: [2]int{5, 2}, Tuple: []string{"scout", "exploring"}, Expand: true,
	}})
	e.step()

	if m.Width() != 6 || m.Height() != 3 {
		t.Fatalf("maze is %dx%d, want 6x3", m.Width(), m.Height())
	}
	if evs := m.EventsAt(maze.Coord{X: 5, Y: 2}); len(evs) != 1 {
		t.Fatalf("event not placed after expansion: %v", evs)
	}
}

func TestSnapshot_RoundTripRestoresState(t *testing.T) {
	m, _ := maze.New(4, 3, [][]int{
		{0, 0, 1, 0},
		{0, 0, 0, 0},
		{0, 1, 0, 0},
	})
	m.AddEvent(maze.Coord{X: 3, Y: 1}, maze.Event{Subject: "Bob", Predicate: "eating", Object: "apple"})
	m.SetDescription(maze.Coord{X: 3, Y: 1}, "the kitchen")
	m.AddObject(maze.Coord{X: 3, Y: 1}, "stove")

	e := New(testConfig(), m, nil, nil)
	join(t, e, "Klaus")
	e.step()
	e.step()

	snap := e.buildSnapshot()
	if snap.Header.Tick != 2 || snap.Width != 4 || snap.Height != 3 {
		t.Fatalf("snapshot header: %+v", snap.Header)
	}

	m2, scratches, err := RestoreMaze(snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m2.IsTraversable(maze.Coord{X: 2, Y: 0}) || m2.IsTraversable(maze.Coord{X: 1, Y: 2}) {
		t.Fatalf("walls lost in restore")
	}
	evs := m2.EventsAt(maze.Coord{X: 3, Y: 1})
	if len(evs) != 1 || evs[0].Subject != "Bob" {
		t.Fatalf("events lost in restore: %v", evs)
	}
	if m2.Description(maze.Coord{X: 3, Y: 1}) != "the kitchen" {
		t.Fatalf("description lost in restore")
	}
	if objs := m2.ObjectsAt(maze.Coord{X: 3, Y: 1}); len(objs) != 1 || objs[0] != "stove" {
		t.Fatalf("objects lost in restore: %v", objs)
	}
	if len(scratches) != 1 || scratches[0].Name != "Klaus" {
		t.Fatalf("scratches: %+v", scratches)
	}
	if scratches[0].CurrTile == nil {
		t.Fatalf("restored scratch lost its position")
	}
}

func TestLeave_RemovesAgentAndPresence(t *testing.T) {
	m, _ := maze.New(5, 5, nil)
	sink := &captureSink{}
	e := New(testConfig(), m, nil, nil, sink)

	idA := join(t, e, "Klaus")
	idB := join(t, e, "Maria")
	at := *e.agents[idA].Scratch.CurrTile

	e.handleLeave(idA)

	if e.agents[idA] != nil {
		t.Fatalf("agent still registered after leave")
	}
	if len(e.order) != 1 || e.order[0] != idB {
		t.Fatalf("order after leave: %v", e.order)
	}
	for _, ev := range m.EventsAt(at) {
		if ev.Subject == "Klaus" {
			t.Fatalf("presence event left behind: %v", ev)
		}
	}

	// The next tick only perceives the remaining agent.
	e.step()
	if len(sink.obs) != 1 || sink.obs[0].AgentID != idB {
		t.Fatalf("obs after leave: %+v", sink.obs)
	}
}

func TestLeave_UnknownAgentNoOp(t *testing.T) {
	m, _ := maze.New(3, 3, nil)
	e := New(testConfig(), m, nil, nil)
	e.handleLeave("ghost")
	if len(e.order) != 0 {
		t.Fatalf("order = %v", e.order)
	}
}

func TestSubscribe_CancelRemovesSubscriber(t *testing.T) {
	m, _ := maze.New(3, 3, nil)
	e := New(testConfig(), m, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	_, unsub, err := e.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// The handoff must not be dropped even when the loop is busy; after it
	// returns, the loop has detached the channel.
	unsub()

	cancel()
	<-e.stopped
	if len(e.subs) != 0 {
		t.Fatalf("%d subscribers left after unsubscribe", len(e.subs))
	}
}

func TestRequestLeave_AfterEngineStopped(t *testing.T) {
	m, _ := maze.New(3, 3, nil)
	e := New(testConfig(), m, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	cancel()
	<-e.stopped

	if err := e.RequestLeave(context.Background(), "whoever"); err == nil {
		t.Fatalf("leave on a stopped engine should error, not hang")
	}
}

func TestAct_UnknownAgentIgnored(t *testing.T) {
	m, _ := maze.New(3, 3, nil)
	e := New(testConfig(), m, nil, nil)
	e.pending = append(e.pending, protocol.ActMsg{AgentID: "ghost", Move: &[2]int{1, 1}})
	e.step() // must not panic
	if e.tick != 1 {
		t.Fatalf("tick = %d", e.tick)
	}
}

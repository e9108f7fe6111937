// Package engine owns the simulation loop: one goroutine steps the maze,
// runs each agent's perception pass, and fans observations out to
// subscribers and persistence sinks. All mutation funnels through that
// goroutine, which is what keeps reads and writes from racing.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"mazecraft.ai/internal/persistence/snapshot"
	"mazecraft.ai/internal/protocol"
	"mazecraft.ai/internal/sim/maze"
	"mazecraft.ai/internal/sim/perceive"
	"mazecraft.ai/internal/sim/persona"
)

type Config struct {
	MazeID     string
	TickRateHz int

	// Scratch defaults for fresh agents.
	VisionR      int
	AttBandwidth int
	Retention    int
}

type Agent struct {
	ID      string
	Name    string
	Scratch *persona.Scratch
}

// ObsSink receives every observation the loop emits. Sinks must not block.
type ObsSink interface {
	WriteObs(protocol.ObsMsg) error
}

type JoinRequest struct {
	Name string
	// Scratch restores a saved agent; nil joins a fresh one.
	Scratch *persona.Scratch
	Resp    chan JoinResponse
}

type JoinResponse struct {
	AgentID string
	Welcome protocol.WelcomeMsg
	Err     string
}

type subReq struct {
	ch   chan protocol.ObsMsg
	resp chan struct{}
}

type Engine struct {
	cfg    Config
	maze   *maze.Maze
	score  perceive.ScoreFunc
	logger *log.Logger

	agents map[string]*Agent
	order  []string
	tick   uint64

	pending []protocol.ActMsg

	joinCh  chan JoinRequest
	leaveCh chan string
	actCh   chan protocol.ActMsg
	subCh   chan subReq
	unsubCh chan chan protocol.ObsMsg

	subs   map[chan protocol.ObsMsg]struct{}
	sinks  []ObsSink
	snapCh chan chan snapshot.SnapshotV1

	// stopped is closed when Run returns, releasing callers blocked on a
	// request channel.
	stopped chan struct{}
}

func New(cfg Config, m *maze.Maze, score perceive.ScoreFunc, logger *log.Logger, sinks ...ObsSink) *Engine {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 5
	}
	if score == nil {
		score = perceive.FlatScorer(1)
	}
	return &Engine{
		cfg:     cfg,
		maze:    m,
		score:   score,
		logger:  logger,
		agents:  map[string]*Agent{},
		joinCh:  make(chan JoinRequest, 16),
		leaveCh: make(chan string, 16),
		actCh:   make(chan protocol.ActMsg, 256),
		subCh:   make(chan subReq),
		unsubCh: make(chan chan protocol.ObsMsg),
		subs:    map[chan protocol.ObsMsg]struct{}{},
		sinks:   sinks,
		snapCh:  make(chan chan snapshot.SnapshotV1),
		stopped: make(chan struct{}),
	}
}

// Run steps the simulation until the context ends. Everything below the
// select runs on this goroutine only.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)

	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.step()
		case req := <-e.joinCh:
			e.handleJoin(req)
		case id := <-e.leaveCh:
			e.handleLeave(id)
		case act := <-e.actCh:
			e.pending = append(e.pending, act)
		case req := <-e.subCh:
			e.subs[req.ch] = struct{}{}
			close(req.resp)
		case ch := <-e.unsubCh:
			delete(e.subs, ch)
		case resp := <-e.snapCh:
			resp <- e.buildSnapshot()
		}
	}
}

// RequestJoin adds an agent to the maze from another goroutine.
func (e *Engine) RequestJoin(ctx context.Context, name string, scratch *persona.Scratch) (JoinResponse, error) {
	req := JoinRequest{Name: name, Scratch: scratch, Resp: make(chan JoinResponse, 1)}
	select {
	case e.joinCh <- req:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		if resp.Err != "" {
			return resp, errors.New(resp.Err)
		}
		return resp, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// RequestLeave detaches an agent: its presence events are removed and its
// id retires. Safe to call after the engine has stopped.
func (e *Engine) RequestLeave(ctx context.Context, agentID string) error {
	select {
	case <-e.stopped:
		return errors.New("engine stopped")
	default:
	}
	select {
	case e.leaveCh <- agentID:
		return nil
	case <-e.stopped:
		return errors.New("engine stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestAct queues a mutation for the next tick.
func (e *Engine) RequestAct(ctx context.Context, act protocol.ActMsg) error {
	select {
	case e.actCh <- act:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers an observation channel; the returned func detaches
// it. Slow subscribers miss observations rather than stalling the loop.
func (e *Engine) Subscribe(ctx context.Context) (<-chan protocol.ObsMsg, func(), error) {
	ch := make(chan protocol.ObsMsg, 64)
	req := subReq{ch: ch, resp: make(chan struct{})}
	select {
	case e.subCh <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	<-req.resp
	// The handoff blocks until the loop takes it; dropping it would leave
	// the channel in e.subs for the rest of the process.
	cancel := func() {
		select {
		case e.unsubCh <- ch:
		case <-e.stopped:
		}
	}
	return ch, cancel, nil
}

func (e *Engine) handleJoin(req JoinRequest) {
	resp := JoinResponse{}
	defer func() {
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	s := req.Scratch
	if s == nil {
		s = persona.DefaultScratch(req.Name)
		s.VisionR = e.cfg.VisionR
		s.AttBandwidth = e.cfg.AttBandwidth
		s.Retention = e.cfg.Retention
	}
	if s.Name == "" {
		s.Name = req.Name
	}
	if s.CurrTile == nil {
		spawn, ok := e.spawnTile()
		if !ok {
			resp.Err = "no traversable tile to spawn on"
			return
		}
		s.CurrTile = &spawn
	}

	a := &Agent{ID: uuid.NewString(), Name: s.Name, Scratch: s}
	e.agents[a.ID] = a
	e.order = append(e.order, a.ID)
	e.maze.AddEvent(*s.CurrTile, idleEvent(s.Name))

	resp.AgentID = a.ID
	resp.Welcome = protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         a.ID,
		MazeParams: protocol.MazeParams{
			Width:        e.maze.Width(),
			Height:       e.maze.Height(),
			TickRateHz:   e.cfg.TickRateHz,
			VisionR:      s.VisionR,
			AttBandwidth: s.AttBandwidth,
		},
	}
	if e.logger != nil {
		e.logger.Printf("engine: %s joined as %s at %s", s.Name, a.ID, s.CurrTile)
	}
}

func (e *Engine) handleLeave(agentID string) {
	a := e.agents[agentID]
	if a == nil {
		return
	}
	if t := a.Scratch.CurrTile; t != nil {
		e.maze.RemoveEventsBySubject(a.Name, *t)
	}
	delete(e.agents, agentID)
	for i, id := range e.order {
		if id == agentID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	if e.logger != nil {
		e.logger.Printf("engine: %s left (%s)", a.Name, agentID)
	}
}

// spawnTile picks the first traversable tile in row-major order, so two
// runs with the same maze and join order place agents identically.
func (e *Engine) spawnTile() (maze.Coord, bool) {
	for y := 0; y < e.maze.Height(); y++ {
		for x := 0; x < e.maze.Width(); x++ {
			c := maze.Coord{X: x, Y: y}
			if e.maze.IsTraversable(c) {
				return c, true
			}
		}
	}
	return maze.Coord{}, false
}

func (e *Engine) step() {
	acts := e.pending
	e.pending = nil
	for _, act := range acts {
		e.applyAct(act)
	}

	e.tick++
	for _, id := range e.order {
		a := e.agents[id]
		obs := e.perceiveAgent(a)
		for _, sink := range e.sinks {
			_ = sink.WriteObs(obs)
		}
		for ch := range e.subs {
			select {
			case ch <- obs:
			default:
				// Subscriber behind; skip this observation for it.
			}
		}
	}
}

func (e *Engine) perceiveAgent(a *Agent) protocol.ObsMsg {
	events := perceive.Perceive(e.maze, a.Scratch, e.score, e.logger)

	obs := protocol.ObsMsg{
		Type:                  protocol.TypeObs,
		ProtocolVersion:       protocol.Version,
		Tick:                  e.tick,
		AgentID:               a.ID,
		AgentName:             a.Name,
		Events:                make([]protocol.Event, 0, len(events)),
		ImportanceTriggerCurr: a.Scratch.ImportanceTriggerCurr,
		ImportanceEleN:        a.Scratch.ImportanceEleN,
	}
	if t := a.Scratch.CurrTile; t != nil {
		obs.Position = &[2]int{t.X, t.Y}
	}
	for _, ev := range events {
		obs.Events = append(obs.Events, protocol.Event{
			Subject:     ev.Subject,
			Predicate:   ev.Predicate,
			Object:      ev.Object,
			Description: ev.Description,
		})
	}
	return obs
}

func (e *Engine) applyAct(act protocol.ActMsg) {
	a := e.agents[act.AgentID]
	if a == nil {
		if e.logger != nil {
			e.logger.Printf("engine: act from unknown agent %q", act.AgentID)
		}
		return
	}

	if act.Move != nil {
		e.moveAgent(a, maze.Coord{X: act.Move[0], Y: act.Move[1]})
	}
	if pe := act.PlaceEvent; pe != nil {
		c := maze.Coord{X: pe.Position[0], Y: pe.Position[1]}
		ev, ok := maze.EventFromTuple(pe.Tuple)
		if !ok {
			if e.logger != nil {
				e.logger.Printf("engine: %s: malformed event tuple %v", a.Name, pe.Tuple)
			}
		} else if pe.Expand {
			e.maze.AddEventExpanding(c, ev)
		} else {
			e.maze.AddEvent(c, ev)
		}
	}
	if re := act.RemoveEvent; re != nil {
		c := maze.Coord{X: re.Position[0], Y: re.Position[1]}
		if ev, ok := maze.EventFromTuple(re.Tuple); ok && len(re.Tuple) == 4 {
			e.maze.RemoveEvent(c, ev)
		} else {
			e.maze.RemoveMatching(c, maze.PatternOf(re.Tuple...))
		}
	}
	if rs := act.RemoveSubject; rs != nil {
		c := maze.Coord{X: rs.Position[0], Y: rs.Position[1]}
		e.maze.RemoveEventsBySubject(rs.Subject, c)
	}
}

func (e *Engine) moveAgent(a *Agent, to maze.Coord) {
	if !e.maze.IsTraversable(to) {
		if e.logger != nil {
			e.logger.Printf("engine: %s: move to %s rejected", a.Name, to)
		}
		return
	}
	if from := a.Scratch.CurrTile; from != nil {
		e.maze.RemoveEventsBySubject(a.Name, *from)
	}
	a.Scratch.CurrTile = &to
	e.maze.AddEvent(to, idleEvent(a.Name))
}

// idleEvent marks an agent's presence on its tile until planning assigns
// it a real activity.
func idleEvent(name string) maze.Event {
	return maze.Event{
		Subject:     name,
		Predicate:   "is",
		Object:      "idle",
		Description: name + " is idle",
	}
}

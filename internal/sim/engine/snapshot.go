package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"mazecraft.ai/internal/persistence/snapshot"
	"mazecraft.ai/internal/sim/maze"
	"mazecraft.ai/internal/sim/persona"
)

// RequestSnapshot captures the current state from the loop goroutine.
func (e *Engine) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	select {
	case e.snapCh <- resp:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}

func (e *Engine) buildSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, MazeID: e.cfg.MazeID, Tick: e.tick},
		Width:  e.maze.Width(),
		Height: e.maze.Height(),
	}
	layout := make([][]int, e.maze.Height())
	for y := 0; y < e.maze.Height(); y++ {
		layout[y] = make([]int, e.maze.Width())
		for x := 0; x < e.maze.Width(); x++ {
			c := maze.Coord{X: x, Y: y}
			if !e.maze.IsTraversable(c) {
				layout[y][x] = 1
			}

			events := e.maze.EventsAt(c)
			objects := e.maze.ObjectsAt(c)
			desc := e.maze.Description(c)
			if len(events) == 0 && len(objects) == 0 && desc == "" {
				continue
			}
			tv := snapshot.TileV1{X: x, Y: y, Objects: objects, Description: desc}
			for _, ev := range events {
				tv.Events = append(tv.Events, []string{ev.Subject, ev.Predicate, ev.Object, ev.Description})
			}
			snap.Tiles = append(snap.Tiles, tv)
		}
	}
	snap.Layout = snapshot.PackLayout(layout)
	for _, id := range e.order {
		a := e.agents[id]
		raw, err := json.Marshal(a.Scratch)
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("engine: snapshot: marshal scratch for %s: %v", a.Name, err)
			}
			continue
		}
		snap.Agents = append(snap.Agents, snapshot.AgentV1{ID: a.ID, Scratch: raw})
	}
	return snap
}

// RestoreMaze rebuilds a maze from a snapshot. Agent scratches come back
// separately; the caller re-joins them through the engine.
func RestoreMaze(snap snapshot.SnapshotV1) (*maze.Maze, []*persona.Scratch, error) {
	layout, err := snapshot.UnpackLayout(snap.Layout, snap.Width, snap.Height)
	if err != nil {
		return nil, nil, fmt.Errorf("restore maze: %w", err)
	}
	m, err := maze.New(snap.Width, snap.Height, layout)
	if err != nil {
		return nil, nil, fmt.Errorf("restore maze: %w", err)
	}
	for _, tv := range snap.Tiles {
		c := maze.Coord{X: tv.X, Y: tv.Y}
		for _, t := range tv.Events {
			ev, ok := maze.EventFromTuple(t)
			if !ok {
				return nil, nil, fmt.Errorf("restore maze: malformed event %v at %s", t, c)
			}
			m.AddEvent(c, ev)
		}
		for _, id := range tv.Objects {
			m.AddObject(c, id)
		}
		if tv.Description != "" {
			m.SetDescription(c, tv.Description)
		}
	}

	scratches := make([]*persona.Scratch, 0, len(snap.Agents))
	for _, av := range snap.Agents {
		s := persona.DefaultScratch("")
		if err := json.Unmarshal(av.Scratch, s); err != nil {
			return nil, nil, fmt.Errorf("restore maze: scratch %s: %w", av.ID, err)
		}
		scratches = append(scratches, s)
	}
	return m, scratches, nil
}

package maze

// EventsAt returns a snapshot of the tile's event set in lexicographic
// tuple order. Out-of-bounds coordinates yield an empty slice.
func (m *Maze) EventsAt(c Coord) []Event {
	if !m.inBounds(c) {
		return nil
	}
	return sortedEvents(m.tiles[c.Y][c.X].Events)
}

// AddEvent inserts the event into the tile's set. Adding an event that is
// already present is a no-op, as is any out-of-bounds coordinate (with a
// diagnostic). Writes that should grow the maze instead use
// AddEventExpanding.
func (m *Maze) AddEvent(c Coord, e Event) {
	if !m.inBounds(c) {
		m.warnOOB("add_event", c)
		return
	}
	m.tiles[c.Y][c.X].Events[e] = struct{}{}
}

// AddEventExpanding inserts the event, growing the maze first when the
// coordinate lies at or beyond the current extent. Negative coordinates can
// never become valid by growing, so they diagnose and no-op.
func (m *Maze) AddEventExpanding(c Coord, e Event) {
	if c.X < 0 || c.Y < 0 {
		m.warnOOB("add_event_expanding", c)
		return
	}
	if !m.inBounds(c) {
		m.warnOOB("add_event_expanding", c)
		m.Expand(c.X+1, c.Y+1)
	}
	m.tiles[c.Y][c.X].Events[e] = struct{}{}
}

// RemoveEvent removes the exact event tuple if present. Out of bounds and
// not-present are both no-ops.
func (m *Maze) RemoveEvent(c Coord, e Event) {
	if !m.inBounds(c) {
		m.warnOOB("remove_event", c)
		return
	}
	delete(m.tiles[c.Y][c.X].Events, e)
}

// RemoveMatching removes every event at the tile matched by the pattern.
// A partial pattern can remove several events in one call.
func (m *Maze) RemoveMatching(c Coord, p Pattern) {
	if !m.inBounds(c) {
		m.warnOOB("remove_matching", c)
		return
	}
	events := m.tiles[c.Y][c.X].Events
	for e := range events {
		if p.Matches(e) {
			delete(events, e)
		}
	}
}

// RemoveEventsBySubject removes every event at the tile whose subject
// equals the given subject.
func (m *Maze) RemoveEventsBySubject(subject string, c Coord) {
	m.RemoveMatching(c, PatternOf(subject))
}

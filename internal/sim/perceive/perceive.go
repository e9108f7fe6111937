// Package perceive samples the events an agent can currently see and
// feeds a bounded number of them into its short-term state.
package perceive

import (
	"log"
	"math"
	"sort"
	"strings"

	"mazecraft.ai/internal/sim/maze"
	"mazecraft.ai/internal/sim/persona"
)

// ScoreFunc rates an event's poignancy for the perceiving agent. The
// activity string is the agent's current act description, for chat-type
// scorers. The core treats the result as opaque; it only has to be finite.
type ScoreFunc func(ev maze.Event, activity string) float64

// FlatScorer is the stock scorer: idle chatter rates 1, everything else
// rates the given base. Model-backed scorers replace it wholesale.
func FlatScorer(base float64) ScoreFunc {
	return func(ev maze.Event, _ string) float64 {
		if strings.Contains(ev.Description, "is idle") {
			return 1
		}
		return base
	}
}

// PerceivedEvent pairs a candidate event with its tile distance while
// ranking. It never leaves this package.
type perceivedEvent struct {
	dist  int
	event maze.Event
}

// Perceive gathers events on tiles visible from the agent's position,
// ranks them by Manhattan distance (closest first, stable on ties), and
// accepts at most the agent's attention bandwidth of them. Each accepted
// event decrements the scratch importance trigger by its score and bumps
// the element count. An unplaced agent perceives nothing. Individual bad
// events are skipped with a diagnostic; they never abort the pass.
func Perceive(m *maze.Maze, s *persona.Scratch, score ScoreFunc, logger *log.Logger) []maze.Event {
	if s == nil || s.CurrTile == nil {
		return nil
	}
	center := *s.CurrTile

	var candidates []perceivedEvent
	for _, tile := range m.TilesInVision(center, s.VisionR) {
		dist := maze.Distance(center, tile)
		for _, ev := range m.EventsAt(tile) {
			if ev.Subject == "" || ev.Predicate == "" {
				if logger != nil {
					logger.Printf("perceive: %s: skipping malformed event %+v at %s", s.Name, ev, tile)
				}
				continue
			}
			candidates = append(candidates, perceivedEvent{dist: dist, event: ev})
		}
	}

	// Stable keeps tile scan order and per-tile event order on equal
	// distances, which is what makes two runs agree.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	limit := s.AttBandwidth
	if limit > len(candidates) {
		limit = len(candidates)
	}
	if limit < 0 {
		limit = 0
	}

	perceived := make([]maze.Event, 0, limit)
	for _, pe := range candidates[:limit] {
		poignancy := 0.0
		if score != nil {
			poignancy = score(pe.event, s.ActDescription)
		}
		if math.IsNaN(poignancy) || math.IsInf(poignancy, 0) {
			if logger != nil {
				logger.Printf("perceive: %s: non-finite poignancy for %+v, skipping", s.Name, pe.event)
			}
			continue
		}
		perceived = append(perceived, pe.event)
		s.ImportanceTriggerCurr -= poignancy
		s.ImportanceEleN++
	}

	s.RememberEvents(perceived)
	return perceived
}

package maze

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// mazeFile is the on-disk maze description. Layout rows may be ragged or
// short; missing cells default to traversable. Events are keyed by "x,y"
// and hold 1-4 component tuples, padded to full events on load.
type mazeFile struct {
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Layout [][]int             `json:"layout"`
	Events map[string][][]string `json:"events,omitempty"`
}

// Load reads a maze.json file, validates it against the schema at
// schemaPath (skipped when schemaPath is empty), and constructs the maze.
// Any failure is returned to the caller; Load never falls back silently.
func Load(path, schemaPath string) (*Maze, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("maze: read %s: %w", path, err)
	}

	if schemaPath != "" {
		schema, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("maze: compile schema %s: %w", schemaPath, err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("maze: parse %s: %w", path, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("maze: validate %s: %w", path, err)
		}
	}

	var mf mazeFile
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("maze: parse %s: %w", path, err)
	}

	m, err := New(mf.Width, mf.Height, mf.Layout)
	if err != nil {
		return nil, fmt.Errorf("maze: %s: %w", path, err)
	}

	for key, tuples := range mf.Events {
		c, err := parseCoordKey(key)
		if err != nil {
			return nil, fmt.Errorf("maze: %s: events key %q: %w", path, key, err)
		}
		if !m.inBounds(c) {
			return nil, fmt.Errorf("maze: %s: events key %q out of bounds", path, key)
		}
		for _, t := range tuples {
			ev, ok := EventFromTuple(t)
			if !ok {
				return nil, fmt.Errorf("maze: %s: malformed event %v at %s", path, t, c)
			}
			m.AddEvent(c, ev)
		}
	}
	return m, nil
}

// LoadOrDefault is the forgiving entry point for server startup: on any
// load failure it logs a warning and returns the 10x10 default maze. It
// never fails.
func LoadOrDefault(path, schemaPath string, logger *log.Logger) *Maze {
	m, err := Load(path, schemaPath)
	if err != nil {
		if logger != nil {
			logger.Printf("maze: load failed, using default 10x10: %v", err)
		}
		m = Default()
	}
	m.SetLogger(logger)
	return m
}

// EventFromTuple pads a 2-4 component tuple to a full event. Tuples with
// fewer than subject+predicate are malformed.
func EventFromTuple(t []string) (Event, bool) {
	if len(t) < 2 {
		return Event{}, false
	}
	var ev Event
	ev.Subject = t[0]
	ev.Predicate = t[1]
	if len(t) > 2 {
		ev.Object = t[2]
	}
	if len(t) > 3 {
		ev.Description = t[3]
	}
	return ev, true
}

func parseCoordKey(key string) (Coord, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("want \"x,y\"")
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Coord{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Coord{}, err
	}
	return Coord{X: x, Y: y}, nil
}

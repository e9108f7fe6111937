package persona

import (
	"encoding/json"
	"fmt"
	"os"

	"mazecraft.ai/internal/sim/maze"
)

// Scratch is an agent's short-term state: where it stands, how far it can
// see, how many events it can attend to per tick, and the running
// importance trigger the perception pass decrements. The maze core reads
// and mutates it but does not own it; callers persist it between runs.
type Scratch struct {
	Name string `json:"name"`

	// CurrTile is nil while the agent is not placed in the maze.
	CurrTile *maze.Coord `json:"curr_tile"`

	VisionR      int `json:"vision_r"`
	AttBandwidth int `json:"att_bandwidth"`
	Retention    int `json:"retention"`

	ImportanceTriggerMax   float64 `json:"importance_trigger_max"`
	ImportanceTriggerCurr  float64 `json:"importance_trigger_curr"`
	ImportanceTriggerDecay float64 `json:"importance_trigger_decay"`
	ImportanceEleN         int     `json:"importance_ele_n"`

	// ActDescription is the agent's current activity, handed to chat-type
	// poignancy scorers. The core never interprets it.
	ActDescription string `json:"act_description,omitempty"`

	// RecentEvents keeps the last perceived events, capped at Retention.
	RecentEvents []maze.Event `json:"recent_events,omitempty"`
}

// DefaultScratch returns the stock short-term state for a fresh agent.
func DefaultScratch(name string) *Scratch {
	return &Scratch{
		Name:                   name,
		VisionR:                4,
		AttBandwidth:           3,
		Retention:              5,
		ImportanceTriggerMax:   10.0,
		ImportanceTriggerCurr:  10.0,
		ImportanceTriggerDecay: 0.1,
	}
}

// LoadScratch reads a saved scratch file. Failures are returned to the
// caller, who decides whether to fall back to DefaultScratch; loading
// never half-applies a broken file.
func LoadScratch(path string) (*Scratch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scratch: read %s: %w", path, err)
	}
	s := DefaultScratch("")
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("scratch: parse %s: %w", path, err)
	}
	return s, nil
}

// Save writes the scratch as JSON.
func (s *Scratch) Save(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("scratch: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("scratch: write %s: %w", path, err)
	}
	return nil
}

// RememberEvents appends perceived events to the recent ring, dropping the
// oldest beyond Retention.
func (s *Scratch) RememberEvents(events []maze.Event) {
	if s.Retention <= 0 {
		return
	}
	s.RecentEvents = append(s.RecentEvents, events...)
	if over := len(s.RecentEvents) - s.Retention; over > 0 {
		s.RecentEvents = append(s.RecentEvents[:0:0], s.RecentEvents[over:]...)
	}
}

// ResetImportanceTrigger rearms the trigger after a consolidation pass.
func (s *Scratch) ResetImportanceTrigger() {
	s.ImportanceTriggerCurr = s.ImportanceTriggerMax
	s.ImportanceEleN = 0
}

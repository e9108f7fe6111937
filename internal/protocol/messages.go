package protocol

// Event is the wire form of a perceived event: always the full
// subject-predicate-object-description tuple, padded with empty strings.
type Event struct {
	Subject     string `json:"subject"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object,omitempty"`
	Description string `json:"description,omitempty"`
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	// Observer sessions receive OBS for every agent and may not act.
	Observer bool `json:"observer,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	AgentID         string     `json:"agent_id,omitempty"`
	MazeParams      MazeParams `json:"maze_params"`
}

type MazeParams struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	TickRateHz   int `json:"tick_rate_hz"`
	VisionR      int `json:"vision_r"`
	AttBandwidth int `json:"att_bandwidth"`
}

// OBS (server -> client): one perception pass for one agent.
type ObsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	AgentID         string  `json:"agent_id"`
	AgentName       string  `json:"agent_name,omitempty"`
	Position        *[2]int `json:"position,omitempty"`
	Events          []Event `json:"events"`

	ImportanceTriggerCurr float64 `json:"importance_trigger_curr"`
	ImportanceEleN        int     `json:"importance_ele_n"`
}

// ACT (client -> server): requested mutations for the next tick.
type ActMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick,omitempty"`
	AgentID         string     `json:"agent_id"`
	Move            *[2]int    `json:"move,omitempty"`
	PlaceEvent      *EventAt   `json:"place_event,omitempty"`
	RemoveEvent     *EventAt   `json:"remove_event,omitempty"`
	RemoveSubject   *SubjectAt `json:"remove_subject,omitempty"`
}

type EventAt struct {
	Position [2]int `json:"position"`
	// Tuple holds 1-4 leading event components. Full tuples are events;
	// shorter ones act as removal patterns.
	Tuple []string `json:"tuple"`
	// Expand grows the maze when the position lies beyond it (placement only).
	Expand bool `json:"expand,omitempty"`
}

type SubjectAt struct {
	Position [2]int `json:"position"`
	Subject  string `json:"subject"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

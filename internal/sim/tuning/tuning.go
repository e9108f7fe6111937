package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Per-agent perception defaults; saved scratch state overrides them.
	VisionR      int `yaml:"vision_r"`
	AttBandwidth int `yaml:"att_bandwidth"`
	Retention    int `yaml:"retention"`

	MazePath   string `yaml:"maze_path"`
	SchemaPath string `yaml:"schema_path"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         5,
		SnapshotEveryTicks: 600,
		VisionR:            4,
		AttBandwidth:       3,
		Retention:          5,
		SchemaPath:         "./schemas/maze.schema.json",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = Defaults().TickRateHz
	}
	if t.VisionR < 0 {
		t.VisionR = 0
	}
	if t.AttBandwidth < 0 {
		t.AttBandwidth = 0
	}
	return t, nil
}

// Package snapshot persists the maze and agent scratch state as a
// zstd-compressed file: one JSON header line for cheap inspection, then a
// gob body with the full state.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"mazecraft.ai/internal/sim/encoding"
)

type Header struct {
	Version int    `json:"version"`
	MazeID  string `json:"maze_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Width  int `json:"width"`
	Height int `json:"height"`
	// Layout is the row-major tile-kind grid, run-length encoded.
	Layout string `json:"layout"`

	Tiles  []TileV1  `json:"tiles,omitempty"`
	Agents []AgentV1 `json:"agents,omitempty"`
}

// TileV1 is recorded only for tiles with content; empty traversable tiles
// are implied by the layout.
type TileV1 struct {
	X           int        `json:"x"`
	Y           int        `json:"y"`
	Events      [][]string `json:"events,omitempty"`
	Objects     []string   `json:"objects,omitempty"`
	Description string     `json:"description,omitempty"`
}

type AgentV1 struct {
	ID      string          `json:"id"`
	Scratch json.RawMessage `json:"scratch"`
}

// PackLayout flattens a tile-kind grid into its run-length form.
func PackLayout(grid [][]int) string {
	var flat []int
	for _, row := range grid {
		flat = append(flat, row...)
	}
	return encoding.EncodeKindRuns(flat)
}

// UnpackLayout rebuilds the width x height grid; the encoded run count
// must match exactly.
func UnpackLayout(enc string, width, height int) ([][]int, error) {
	flat, err := encoding.DecodeKindRuns(enc)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	if len(flat) != width*height {
		return nil, fmt.Errorf("layout: %d kinds for %dx%d grid", len(flat), width, height)
	}
	grid := make([][]int, height)
	for y := 0; y < height; y++ {
		grid[y] = flat[y*width : (y+1)*width]
	}
	return grid, nil
}

// Write stores the snapshot atomically: a temp file in the target
// directory, fsynced, then renamed into place.
func Write(path string, snap SnapshotV1) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeBody(tmp, snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeBody(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for humans and index tooling; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

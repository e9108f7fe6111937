package maze

import (
	"errors"
	"fmt"
	"log"
)

// ErrInvalidDimension is returned by New for non-positive width or height.
var ErrInvalidDimension = errors.New("maze: invalid dimension")

// Tile kinds, derived once from the layout matrix.
const (
	KindTraversable = "traversable"
	KindWall        = "wall"
)

// Coord addresses a tile. Valid coordinates satisfy
// 0 <= X < width and 0 <= Y < height.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Tile is the per-cell mutable state. Tiles are owned by the Maze and
// addressed only by Coord; callers never hold one across mutations.
type Tile struct {
	Kind        string
	Events      map[Event]struct{}
	Objects     map[string]struct{}
	Description string
}

func newTile(kind string) *Tile {
	return &Tile{
		Kind:    kind,
		Events:  map[Event]struct{}{},
		Objects: map[string]struct{}{},
	}
}

// Maze is the tile-grid world: a wall/traversable layout plus per-tile
// event and object sets. Accessed only from the simulation loop goroutine;
// callers that want concurrent readers must serialize writes themselves.
type Maze struct {
	width  int
	height int
	layout [][]int // 0 = traversable, 1 = wall
	tiles  [][]*Tile

	log *log.Logger
}

// New builds a maze from explicit dimensions. A nil layout means all tiles
// traversable. The layout is copied; the caller's slices are not retained.
func New(width, height int, layout [][]int) (*Maze, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	m := &Maze{width: width, height: height}
	m.layout = make([][]int, height)
	for y := 0; y < height; y++ {
		m.layout[y] = make([]int, width)
		if layout == nil || y >= len(layout) {
			continue
		}
		for x := 0; x < width && x < len(layout[y]); x++ {
			if layout[y][x] != 0 {
				m.layout[y][x] = 1
			}
		}
	}
	m.tiles = generateTiles(m.layout, width, height)
	return m, nil
}

// Default is the fallback maze used when no usable maze file is available:
// 10x10, all traversable.
func Default() *Maze {
	m, _ := New(10, 10, nil)
	return m
}

// SetLogger routes out-of-bounds and expansion diagnostics. Nil silences them.
func (m *Maze) SetLogger(l *log.Logger) { m.log = l }

func (m *Maze) Width() int  { return m.width }
func (m *Maze) Height() int { return m.height }

func (m *Maze) inBounds(c Coord) bool {
	return c.X >= 0 && c.X < m.width && c.Y >= 0 && c.Y < m.height
}

// IsTraversable reports whether the tile is in bounds and not a wall.
// Out-of-bounds coordinates are simply not traversable.
func (m *Maze) IsTraversable(c Coord) bool {
	if !m.inBounds(c) {
		return false
	}
	return m.tiles[c.Y][c.X].Kind == KindTraversable
}

// Description returns the tile's free-text description, "" out of bounds.
func (m *Maze) Description(c Coord) string {
	if !m.inBounds(c) {
		return ""
	}
	return m.tiles[c.Y][c.X].Description
}

// SetDescription is a no-op out of bounds.
func (m *Maze) SetDescription(c Coord, desc string) {
	if !m.inBounds(c) {
		m.warnOOB("set_description", c)
		return
	}
	m.tiles[c.Y][c.X].Description = desc
}

// ObjectsAt returns a sorted snapshot of the tile's object set.
func (m *Maze) ObjectsAt(c Coord) []string {
	if !m.inBounds(c) {
		return nil
	}
	return sortedKeys(m.tiles[c.Y][c.X].Objects)
}

// AddObject is a no-op out of bounds.
func (m *Maze) AddObject(c Coord, id string) {
	if !m.inBounds(c) {
		m.warnOOB("add_object", c)
		return
	}
	m.tiles[c.Y][c.X].Objects[id] = struct{}{}
}

// Expand grows the maze to at least newWidth x newHeight. Shrinking never
// happens: dimensions already covered are kept. Existing tiles keep their
// content at the same coordinates; new tiles are traversable and empty.
// The swap is all-or-nothing: the maze is never observable half-grown.
func (m *Maze) Expand(newWidth, newHeight int) {
	if newWidth <= m.width && newHeight <= m.height {
		return
	}
	if newWidth < m.width {
		newWidth = m.width
	}
	if newHeight < m.height {
		newHeight = m.height
	}

	layout := make([][]int, newHeight)
	tiles := make([][]*Tile, newHeight)
	for y := 0; y < newHeight; y++ {
		layout[y] = make([]int, newWidth)
		tiles[y] = make([]*Tile, newWidth)
		for x := 0; x < newWidth; x++ {
			if y < m.height && x < m.width {
				layout[y][x] = m.layout[y][x]
				tiles[y][x] = m.tiles[y][x]
			} else {
				tiles[y][x] = newTile(KindTraversable)
			}
		}
	}

	m.layout = layout
	m.tiles = tiles
	m.width = newWidth
	m.height = newHeight
	if m.log != nil {
		m.log.Printf("maze expanded to %dx%d", m.width, m.height)
	}
}

func (m *Maze) warnOOB(op string, c Coord) {
	if m.log != nil {
		m.log.Printf("maze: %s: coordinates out of bounds: %s", op, c)
	}
}

func generateTiles(layout [][]int, width, height int) [][]*Tile {
	tiles := make([][]*Tile, height)
	for y := 0; y < height; y++ {
		tiles[y] = make([]*Tile, width)
		for x := 0; x < width; x++ {
			kind := KindTraversable
			if layout[y][x] != 0 {
				kind = KindWall
			}
			tiles[y][x] = newTile(kind)
		}
	}
	return tiles
}

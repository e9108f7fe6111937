package maze

import (
	"reflect"
	"testing"
)

func TestDistance_ManhattanAndSymmetric(t *testing.T) {
	cases := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{0, 0}, 0},
		{Coord{0, 0}, Coord{3, 0}, 3},
		{Coord{0, 0}, Coord{0, 4}, 4},
		{Coord{1, 2}, Coord{4, 6}, 7},
		{Coord{5, 5}, Coord{2, 9}, 7},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Fatalf("Distance(%s,%s) = %d, want %d", c.a, c.b, got, c.want)
		}
		if Distance(c.a, c.b) != Distance(c.b, c.a) {
			t.Fatalf("Distance(%s,%s) not symmetric", c.a, c.b)
		}
	}
}

func TestLineOfSight_SelfAlwaysClear(t *testing.T) {
	m, _ := New(4, 4, [][]int{
		{0, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := Coord{X: x, Y: y}
			if !m.LineOfSight(c, c) {
				t.Fatalf("LineOfSight(%s,%s) = false", c, c)
			}
		}
	}
}

func TestLineOfSight_WallBlocks(t *testing.T) {
	// Wall at (2,2) sits on the straight line from (0,2) to (4,2).
	m, _ := New(5, 5, nil)
	wall(m, 2, 2)

	if m.LineOfSight(Coord{X: 0, Y: 2}, Coord{X: 4, Y: 2}) {
		t.Fatalf("sight through wall at (2,2)")
	}
	if !m.LineOfSight(Coord{X: 0, Y: 2}, Coord{X: 1, Y: 1}) {
		t.Fatalf("unobstructed diagonal blocked")
	}
}

func TestLineOfSight_DestinationWallVisible(t *testing.T) {
	// A wall tile never blocks sight to itself, only past itself.
	m, _ := New(5, 5, nil)
	wall(m, 3, 2)

	if !m.LineOfSight(Coord{X: 0, Y: 2}, Coord{X: 3, Y: 2}) {
		t.Fatalf("sight to the wall tile itself should be clear")
	}
	if m.LineOfSight(Coord{X: 0, Y: 2}, Coord{X: 4, Y: 2}) {
		t.Fatalf("sight past the wall should be blocked")
	}
}

func TestTilesInVision_RadiusZeroIsSelf(t *testing.T) {
	m, _ := New(5, 5, nil)
	c := Coord{X: 2, Y: 2}
	got := m.TilesInVision(c, 0)
	if len(got) != 1 || got[0] != c {
		t.Fatalf("TilesInVision(%s, 0) = %v, want [%s]", c, got, c)
	}
}

func TestTilesInVision_OutOfBoundsCenterEmpty(t *testing.T) {
	m, _ := New(5, 5, nil)
	if got := m.TilesInVision(Coord{X: 9, Y: 0}, 3); len(got) != 0 {
		t.Fatalf("out-of-bounds center sees %v", got)
	}
}

func TestTilesInVision_RadiusAndOrder(t *testing.T) {
	m, _ := New(3, 3, nil)
	got := m.TilesInVision(Coord{X: 1, Y: 1}, 1)
	// Row-major over the offset square: dy then dx, diamond-filtered.
	want := []Coord{
		{X: 1, Y: 0},
		{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1},
		{X: 1, Y: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TilesInVision = %v, want %v", got, want)
	}
}

func TestTilesInVision_NoDuplicates(t *testing.T) {
	m, _ := New(7, 7, nil)
	got := m.TilesInVision(Coord{X: 3, Y: 3}, 3)
	seen := map[Coord]struct{}{}
	for _, c := range got {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate tile %s", c)
		}
		seen[c] = struct{}{}
	}
}

func TestTilesInVision_WallHidesTilesBehindIt(t *testing.T) {
	// The scenario from the perception contract: agent at (0,2), wall at
	// (2,2). The tile (4,2) behind the wall is out of sight; (1,1) is not.
	m, _ := New(5, 5, nil)
	wall(m, 2, 2)

	visible := map[Coord]struct{}{}
	for _, c := range m.TilesInVision(Coord{X: 0, Y: 2}, 4) {
		visible[c] = struct{}{}
	}
	if _, ok := visible[Coord{X: 4, Y: 2}]; ok {
		t.Fatalf("(4,2) visible through the wall at (2,2)")
	}
	if _, ok := visible[Coord{X: 1, Y: 1}]; !ok {
		t.Fatalf("(1,1) should be visible")
	}
	// The wall tile itself is visible; only what lies beyond it is not.
	if _, ok := visible[Coord{X: 2, Y: 2}]; !ok {
		t.Fatalf("the wall tile itself should be visible")
	}
}

// wall rebuilds m's tile at (x,y) as a wall. Layout is fixed at
// construction, so tests route through New.
func wall(m *Maze, x, y int) {
	layout := make([][]int, m.Height())
	for yy := 0; yy < m.Height(); yy++ {
		layout[yy] = make([]int, m.Width())
		for xx := 0; xx < m.Width(); xx++ {
			if !m.IsTraversable(Coord{X: xx, Y: yy}) {
				layout[yy][xx] = 1
			}
		}
	}
	layout[y][x] = 1
	rebuilt, _ := New(m.Width(), m.Height(), layout)
	*m = *rebuilt
}

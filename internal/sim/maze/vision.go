package maze

// Distance is the Manhattan distance between two tiles.
func Distance(a, b Coord) int {
	return absInt(b.X-a.X) + absInt(b.Y-a.Y)
}

// LineOfSight walks the digital line from a to b and reports whether no
// intermediate tile blocks it. The walk visits every tile the ideal line
// crosses, in order, stepping one axis at a time so diagonal corners are
// never skipped. The destination tile itself never blocks sight to it,
// even when it is a wall; intermediate walls always do. Because the error
// term is seeded from the a-side, sight is not guaranteed symmetric.
func (m *Maze) LineOfSight(a, b Coord) bool {
	dx := absInt(b.X - a.X)
	dy := absInt(b.Y - a.Y)
	x, y := a.X, a.Y
	n := 1 + dx + dy
	xInc := -1
	if b.X > a.X {
		xInc = 1
	}
	yInc := -1
	if b.Y > a.Y {
		yInc = 1
	}
	err := dx - dy
	dx *= 2
	dy *= 2

	for i := 0; i < n; i++ {
		if !m.IsTraversable(Coord{X: x, Y: y}) && !(x == b.X && y == b.Y) {
			return false
		}
		if err > 0 {
			x += xInc
			err -= dy
		} else {
			y += yInc
			err += dx
		}
	}
	return true
}

// TilesInVision enumerates the tiles an agent at center can see within the
// given Manhattan radius: in bounds, within radius, and with clear line of
// sight from center. The scan is row-major over the offset square (dy
// outer, dx inner), which fixes the enumeration order downstream ranking
// relies on; no coordinate appears twice. An out-of-bounds center sees
// nothing.
func (m *Maze) TilesInVision(center Coord, radius int) []Coord {
	if !m.inBounds(center) {
		m.warnOOB("tiles_in_vision", center)
		return nil
	}

	var visible []Coord
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			target := Coord{X: center.X + dx, Y: center.Y + dy}
			if !m.inBounds(target) {
				continue
			}
			if absInt(dx)+absInt(dy) > radius {
				continue
			}
			if m.LineOfSight(center, target) {
				visible = append(visible, target)
			}
		}
	}
	return visible
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

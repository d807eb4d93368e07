package main

import "math"

// BodyKind tags a physics body with the entity category it belongs to.
// Collision resolution dispatches on the pair of kinds.
type BodyKind int

const (
	BodyPlayer BodyKind = iota
	BodyBullet
	BodyWall
)

// Body is a shape registered in a World: a circle (players, bullets) or an
// axis-aligned box (walls). Owner holds the id of the owning entity so the
// resolver can look it up; the entity owns the body, never the reverse.
type Body struct {
	Kind   BodyKind
	Owner  string
	X, Y   float64 // circle center, or box top-left corner
	Radius float64
	W, H   float64
	Box    bool
	Static bool

	id uint64 // world-assigned, gives pairs a stable order
}

// AABB returns the body's bounding box.
func (b *Body) AABB() (minX, minY, maxX, maxY float64) {
	if b.Box {
		return b.X, b.Y, b.X + b.W, b.Y + b.H
	}
	return b.X - b.Radius, b.Y - b.Radius, b.X + b.Radius, b.Y + b.Radius
}

const worldCellSize = 128.0

// World is a per-room collision index: a fixed grid broad phase over
// circle and box bodies with an exact narrow phase. Nothing is cached
// between CheckAll calls; every call recomputes from current positions.
type World struct {
	cols, rows int
	minX, minY float64

	nextID  uint64
	bodies  map[*Body]struct{}
	statics []*Body

	staticCells [][]*Body
	dynCells    [][]*Body
}

// NewWorld creates a world covering the given extent. Bodies outside the
// extent are clamped into the edge cells, so the bounds only need to be
// approximate.
func NewWorld(minX, minY, maxX, maxY float64) *World {
	cols := int((maxX-minX)/worldCellSize) + 1
	rows := int((maxY-minY)/worldCellSize) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &World{
		cols:        cols,
		rows:        rows,
		minX:        minX,
		minY:        minY,
		bodies:      make(map[*Body]struct{}),
		staticCells: make([][]*Body, cols*rows),
		dynCells:    make([][]*Body, cols*rows),
	}
}

// CreateCircle registers a new circle body centered at pos.
func (w *World) CreateCircle(pos Vec, radius float64) *Body {
	b := &Body{X: pos.X, Y: pos.Y, Radius: radius}
	w.Insert(b)
	return b
}

// CreateBox registers a new box body with origin at its top-left corner.
func (w *World) CreateBox(origin Vec, width, height float64, static bool) *Body {
	b := &Body{X: origin.X, Y: origin.Y, W: width, H: height, Box: true, Static: static}
	w.Insert(b)
	return b
}

// Insert adds a body to the index.
func (w *World) Insert(b *Body) {
	if _, ok := w.bodies[b]; ok {
		return
	}
	w.nextID++
	b.id = w.nextID
	w.bodies[b] = struct{}{}
	if b.Static {
		w.statics = append(w.statics, b)
		w.insertCells(w.staticCells, b)
	}
}

// Remove drops a body from the index.
func (w *World) Remove(b *Body) {
	if _, ok := w.bodies[b]; !ok {
		return
	}
	delete(w.bodies, b)
	if b.Static {
		for i, s := range w.statics {
			if s == b {
				w.statics = append(w.statics[:i], w.statics[i+1:]...)
				break
			}
		}
		w.rebuildStaticCells()
	}
}

// Len returns the number of registered bodies.
func (w *World) Len() int {
	return len(w.bodies)
}

func (w *World) rebuildStaticCells() {
	for i := range w.staticCells {
		w.staticCells[i] = w.staticCells[i][:0]
	}
	for _, b := range w.statics {
		w.insertCells(w.staticCells, b)
	}
}

func (w *World) cellRange(b *Body) (minCX, minCY, maxCX, maxCY int) {
	x0, y0, x1, y1 := b.AABB()
	minCX = int((x0 - w.minX) / worldCellSize)
	maxCX = int((x1 - w.minX) / worldCellSize)
	minCY = int((y0 - w.minY) / worldCellSize)
	maxCY = int((y1 - w.minY) / worldCellSize)
	if minCX < 0 {
		minCX = 0
	}
	if maxCX >= w.cols {
		maxCX = w.cols - 1
	}
	if maxCX < 0 {
		maxCX = 0
	}
	if minCX > maxCX {
		minCX = maxCX
	}
	if minCY < 0 {
		minCY = 0
	}
	if maxCY >= w.rows {
		maxCY = w.rows - 1
	}
	if maxCY < 0 {
		maxCY = 0
	}
	if minCY > maxCY {
		minCY = maxCY
	}
	return
}

func (w *World) insertCells(cells [][]*Body, b *Body) {
	minCX, minCY, maxCX, maxCY := w.cellRange(b)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*w.cols + cx
			cells[idx] = append(cells[idx], b)
		}
	}
}

// CheckAll enumerates every currently-overlapping body pair exactly once,
// reporting each with its minimum-translation overlap vector. The vector
// points from a toward b with penetration-depth magnitude: moving a by -ov
// (or b by +ov) separates the pair. Static-static pairs are never
// reported; walls do not move.
func (w *World) CheckAll(cb func(a, b *Body, ov Vec)) {
	for i := range w.dynCells {
		w.dynCells[i] = w.dynCells[i][:0]
	}
	var movers []*Body
	for b := range w.bodies {
		if b.Static {
			continue
		}
		movers = append(movers, b)
		w.insertCells(w.dynCells, b)
	}

	seen := make(map[[2]uint64]struct{})
	for _, a := range movers {
		minCX, minCY, maxCX, maxCY := w.cellRange(a)
		for cy := minCY; cy <= maxCY; cy++ {
			for cx := minCX; cx <= maxCX; cx++ {
				idx := cy*w.cols + cx
				for _, b := range w.dynCells[idx] {
					if b == a {
						continue
					}
					w.checkPair(a, b, seen, cb)
				}
				for _, b := range w.staticCells[idx] {
					w.checkPair(a, b, seen, cb)
				}
			}
		}
	}
}

func (w *World) checkPair(a, b *Body, seen map[[2]uint64]struct{}, cb func(a, b *Body, ov Vec)) {
	// Report in registration order so the callback sees a deterministic
	// (a, b) orientation for asymmetric rules.
	if a.id > b.id {
		a, b = b, a
	}
	key := [2]uint64{a.id, b.id}
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	// Removal inside the callback must not resurface the pair, hence the
	// membership check after dedupe.
	if _, ok := w.bodies[a]; !ok {
		return
	}
	if _, ok := w.bodies[b]; !ok {
		return
	}
	if ov, ok := overlap(a, b); ok {
		cb(a, b, ov)
	}
}

// overlap computes the minimum-translation vector between two bodies,
// pointing from a toward b.
func overlap(a, b *Body) (Vec, bool) {
	switch {
	case !a.Box && !b.Box:
		return circleCircleOverlap(a, b)
	case !a.Box && b.Box:
		return circleBoxOverlap(a, b)
	case a.Box && !b.Box:
		ov, ok := circleBoxOverlap(b, a)
		return Vec{X: -ov.X, Y: -ov.Y}, ok
	default:
		// Box-box pairs are wall-wall and never reach the resolver.
		return Vec{}, false
	}
}

func circleCircleOverlap(a, b *Body) (Vec, bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	rsum := a.Radius + b.Radius
	dist2 := dx*dx + dy*dy
	if dist2 >= rsum*rsum {
		return Vec{}, false
	}
	dist := math.Sqrt(dist2)
	if dist == 0 {
		return Vec{X: rsum}, true
	}
	pen := rsum - dist
	return Vec{X: dx / dist * pen, Y: dy / dist * pen}, true
}

func circleBoxOverlap(c, b *Body) (Vec, bool) {
	// Closest point on the box to the circle center.
	px := Clamp(c.X, b.X, b.X+b.W)
	py := Clamp(c.Y, b.Y, b.Y+b.H)
	dx := px - c.X
	dy := py - c.Y
	dist2 := dx*dx + dy*dy
	if dist2 >= c.Radius*c.Radius {
		return Vec{}, false
	}
	if dist2 > 0 {
		dist := math.Sqrt(dist2)
		pen := c.Radius - dist
		return Vec{X: dx / dist * pen, Y: dy / dist * pen}, true
	}
	// Center inside the box: push out along the shallowest axis.
	left := c.X - b.X + c.Radius
	right := b.X + b.W - c.X + c.Radius
	up := c.Y - b.Y + c.Radius
	down := b.Y + b.H - c.Y + c.Radius
	min := left
	ov := Vec{X: left}
	if right < min {
		min = right
		ov = Vec{X: -right}
	}
	if up < min {
		min = up
		ov = Vec{Y: up}
	}
	if down < min {
		ov = Vec{Y: -down}
	}
	return ov, true
}

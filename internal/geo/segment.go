package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-12

// Segment is a straight piece of a polyline on the track plane.
type Segment struct {
	A, B mgl64.Vec2
}

// Segments splits a polyline into consecutive segments, skipping
// zero-length ones.
func Segments(line []mgl64.Vec2) []Segment {
	out := make([]Segment, 0, len(line))
	for i := 1; i < len(line); i++ {
		if line[i].Sub(line[i-1]).Len() < epsilon {
			continue
		}
		out = append(out, Segment{A: line[i-1], B: line[i]})
	}
	return out
}

// Bounds returns the lower corner and the extent of the segment's box.
func (s Segment) Bounds() (lo, size mgl64.Vec2) {
	lo = mgl64.Vec2{math.Min(s.A.X(), s.B.X()), math.Min(s.A.Y(), s.B.Y())}
	hi := mgl64.Vec2{math.Max(s.A.X(), s.B.X()), math.Max(s.A.Y(), s.B.Y())}
	return lo, hi.Sub(lo)
}

// Len returns the segment length.
func (s Segment) Len() float64 {
	return s.B.Sub(s.A).Len()
}

// RayHit returns the distance along the unit direction dir at which a ray
// from origin meets the segment.
func (s Segment) RayHit(origin, dir mgl64.Vec2) (float64, bool) {
	e := s.B.Sub(s.A)
	den := cross(dir, e)
	if math.Abs(den) < epsilon {
		return 0, false
	}
	w := s.A.Sub(origin)
	t := cross(w, e) / den
	u := cross(w, dir) / den
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// Crosses reports whether the path p→q intersects the segment. Touching an
// endpoint counts.
func (s Segment) Crosses(p, q mgl64.Vec2) bool {
	_, ok := s.intersect(p, q)
	return ok
}

func (s Segment) intersect(p, q mgl64.Vec2) (float64, bool) {
	d := q.Sub(p)
	e := s.B.Sub(s.A)
	den := cross(d, e)
	if math.Abs(den) < epsilon {
		return 0, false
	}
	w := s.A.Sub(p)
	t := cross(w, e) / den
	u := cross(w, d) / den
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// DistanceTo returns the shortest distance from point p to the segment.
func (s Segment) DistanceTo(p mgl64.Vec2) float64 {
	e := s.B.Sub(s.A)
	l2 := e.Dot(e)
	if l2 < epsilon {
		return p.Sub(s.A).Len()
	}
	t := clamp01(p.Sub(s.A).Dot(e) / l2)
	return p.Sub(s.A.Add(e.Mul(t))).Len()
}

// PathDistance returns the shortest distance between the path p→q and the segment.
func (s Segment) PathDistance(p, q mgl64.Vec2) float64 {
	if s.Crosses(p, q) {
		return 0
	}
	path := Segment{A: p, B: q}
	return math.Min(
		math.Min(s.DistanceTo(p), s.DistanceTo(q)),
		math.Min(path.DistanceTo(s.A), path.DistanceTo(s.B)),
	)
}

func cross(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

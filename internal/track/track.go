// Package track is a flat race track built from line features. It answers
// ray queries for the sensors and turns car movement into world events.
package track

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/geo"
	"github.com/racerl/racecore/pkg/core"
)

// Layer bits used for ray masks.
const (
	LayerWall       uint32 = 1 << 0
	LayerCheckpoint uint32 = 1 << 1
	LayerFinish     uint32 = 1 << 2
)

// rect padding for axis-aligned segments, rtreego rejects zero extents
const boundsPad = 1e-6

// ErrNoWalls is returned for a track without any wall geometry.
var ErrNoWalls = errors.New("track has no walls")

// Kind classifies a track feature.
type Kind int

const (
	KindWall Kind = iota
	KindCheckpoint
	KindFinish
)

func (k Kind) String() string {
	switch k {
	case KindWall:
		return "wall"
	case KindCheckpoint:
		return "checkpoint"
	case KindFinish:
		return "finish"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) defaultLayer() uint32 {
	switch k {
	case KindCheckpoint:
		return LayerCheckpoint
	case KindFinish:
		return LayerFinish
	}
	return LayerWall
}

func (k Kind) event() core.EventKind {
	switch k {
	case KindCheckpoint:
		return core.EventCheckpoint
	case KindFinish:
		return core.EventEndLap
	}
	return core.EventWall
}

// Feature is a named wall, checkpoint or finish line.
type Feature struct {
	ID    string
	Kind  Kind
	Layer uint32
	Lines [][]mgl64.Vec2
}

type segment struct {
	feature *Feature
	geo.Segment
	rect rtreego.Rect
}

func (s *segment) Bounds() rtreego.Rect {
	return s.rect
}

type featureKey struct {
	kind Kind
	id   string
}

// Track holds the indexed geometry. Ray queries may run concurrently with
// each other; contact tracking and feature activation are serialized.
type Track struct {
	name        string
	features    []*Feature
	checkpoints []string
	spawn       *core.Pose
	tree        *rtreego.Rtree

	mu          sync.RWMutex
	inactive    map[featureKey]bool
	contacts    map[*Feature]uint64
	nextContact uint64
}

// New builds a track from a parsed file.
func New(f File) (*Track, error) {
	origin, err := vec2(f.Origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	proj, err := geo.NewProjection(f.CRS, origin)
	if err != nil {
		return nil, err
	}

	t := &Track{
		name:     f.Name,
		tree:     rtreego.NewTree(2, 25, 50),
		inactive: make(map[featureKey]bool),
		contacts: make(map[*Feature]uint64),
	}

	if len(f.Walls) == 0 {
		return nil, ErrNoWalls
	}
	for _, w := range f.Walls {
		if err := t.add(proj, KindWall, w); err != nil {
			return nil, err
		}
	}
	seen := make(map[string]bool, len(f.Checks))
	for _, c := range f.Checks {
		if c.ID == "" {
			return nil, errors.New("checkpoint without id")
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate checkpoint %q", c.ID)
		}
		seen[c.ID] = true
		if err := t.add(proj, KindCheckpoint, c); err != nil {
			return nil, err
		}
		t.checkpoints = append(t.checkpoints, c.ID)
	}
	if f.Finish != nil {
		if err := t.add(proj, KindFinish, *f.Finish); err != nil {
			return nil, err
		}
	}

	if f.Spawn != nil {
		pos, err := vec2(f.Spawn.Position)
		if err != nil {
			return nil, fmt.Errorf("spawn: %w", err)
		}
		p := proj.Project(pos)
		t.spawn = &core.Pose{
			Position: geo.ToWorld(p, f.Spawn.Height),
			Rotation: mgl64.QuatRotate(mgl64.DegToRad(f.Spawn.Yaw), core.Up),
		}
	}
	return t, nil
}

func (t *Track) add(proj *geo.Projection, kind Kind, l LineFile) error {
	lines, err := l.lines()
	if err != nil {
		return fmt.Errorf("%s %q: %w", kind, l.ID, err)
	}
	f := &Feature{ID: l.ID, Kind: kind, Layer: l.Layer, Lines: make([][]mgl64.Vec2, len(lines))}
	if f.Layer == 0 {
		f.Layer = kind.defaultLayer()
	}
	for i, line := range lines {
		f.Lines[i] = proj.ProjectAll(line)
		for _, s := range geo.Segments(f.Lines[i]) {
			rect, err := boundsOf(s, 0)
			if err != nil {
				return fmt.Errorf("%s %q: %w", kind, l.ID, err)
			}
			t.tree.Insert(&segment{feature: f, Segment: s, rect: rect})
		}
	}
	t.features = append(t.features, f)
	return nil
}

func boundsOf(s geo.Segment, radius float64) (rtreego.Rect, error) {
	lo, size := s.Bounds()
	pad := radius + boundsPad
	return rtreego.NewRect(
		rtreego.Point{lo.X() - pad, lo.Y() - pad},
		[]float64{size.X() + 2*pad, size.Y() + 2*pad},
	)
}

// Name returns the track name.
func (t *Track) Name() string {
	return t.name
}

// Features returns the track features in load order.
func (t *Track) Features() []*Feature {
	return t.features
}

// Checkpoints returns the checkpoint ids in load order.
func (t *Track) Checkpoints() []string {
	return t.checkpoints
}

// Spawn returns the declared spawn pose, or nil if the track has none.
func (t *Track) Spawn() *core.Pose {
	return t.spawn
}

// Size returns the number of indexed segments.
func (t *Track) Size() int {
	return t.tree.Size()
}

// SetCheckpointActive toggles a checkpoint. Inactive checkpoints are
// invisible to rays and produce no contacts.
func (t *Track) SetCheckpointActive(id string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := featureKey{KindCheckpoint, id}
	if active {
		delete(t.inactive, key)
	} else {
		t.inactive[key] = true
	}
}

// Reset reactivates every feature and forgets ongoing contacts. Contact ids
// keep increasing across resets.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.inactive)
	clear(t.contacts)
}

func (t *Track) isActive(f *Feature) bool {
	return !t.inactive[featureKey{f.Kind, f.ID}]
}

func (t *Track) search(s geo.Segment, radius float64) []*segment {
	rect, err := boundsOf(s, radius)
	if err != nil {
		return nil
	}
	found := t.tree.SearchIntersect(rect)
	out := make([]*segment, 0, len(found))
	for _, sp := range found {
		out = append(out, sp.(*segment))
	}
	return out
}

// Raycast returns the distance to the nearest active feature whose layer is
// in mask along dir from origin. Only the horizontal part of the ray is
// traced; the returned distance is measured along the full 3D direction.
func (t *Track) Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (bool, float64) {
	dirLen := dir.Len()
	flat := geo.ToPlane(dir)
	if dirLen == 0 || flat.Len() < 1e-9 || maxDistance <= 0 {
		return false, 0
	}
	horizontal := flat.Len() / dirLen
	flat = flat.Normalize()
	o := geo.ToPlane(origin)
	reach := maxDistance * horizontal

	t.mu.RLock()
	defer t.mu.RUnlock()

	best := math.Inf(1)
	for _, s := range t.search(geo.Segment{A: o, B: o.Add(flat.Mul(reach))}, 0) {
		if s.feature.Layer&mask == 0 || !t.isActive(s.feature) {
			continue
		}
		if d, ok := s.RayHit(o, flat); ok && d <= reach && d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return false, 0
	}
	return true, best / horizontal
}

// Contacts converts a body moving from prev to next into world events.
// A wall is touched when the swept body of the given radius comes within
// reach of it; a checkpoint or the finish is touched when the path crosses it.
// An event is emitted only when a contact begins, and a contact keeps its
// ContactID until it ends.
func (t *Track) Contacts(prev, next mgl64.Vec3, radius float64) []core.WorldEvent {
	p, q := geo.ToPlane(prev), geo.ToPlane(next)

	t.mu.Lock()
	defer t.mu.Unlock()

	touching := make(map[*Feature]bool)
	for _, s := range t.search(geo.Segment{A: p, B: q}, radius) {
		f := s.feature
		if touching[f] || !t.isActive(f) {
			continue
		}
		var hit bool
		if f.Kind == KindWall {
			hit = s.PathDistance(p, q) <= radius
		} else {
			hit = s.Crosses(p, q)
		}
		if hit {
			touching[f] = true
		}
	}

	for f := range t.contacts {
		if !touching[f] {
			delete(t.contacts, f)
		}
	}

	var events []core.WorldEvent
	for _, f := range t.features {
		if !touching[f] {
			continue
		}
		if _, ongoing := t.contacts[f]; ongoing {
			continue
		}
		t.nextContact++
		t.contacts[f] = t.nextContact
		events = append(events, core.WorldEvent{Kind: f.Kind.event(), Tag: f.ID, ContactID: t.nextContact})
	}
	return events
}

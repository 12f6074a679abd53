package track

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/geo"
)

// File is the on-disk track description.
type File struct {
	Name string `json:"name"`
	// CRS is one of geo.CRSLocal (default), geo.CRSMercator or geo.CRSWGS84.
	CRS    string     `json:"crs,omitempty"`
	Origin []float64  `json:"origin,omitempty"`
	Spawn  *SpawnFile `json:"spawn,omitempty"`
	Walls  []LineFile `json:"walls"`
	Checks []LineFile `json:"checkpoints"`
	Finish *LineFile  `json:"finish,omitempty"`
}

// LineFile is one feature given either as WKT or as a coordinate list.
type LineFile struct {
	ID     string      `json:"id"`
	WKT    string      `json:"wkt,omitempty"`
	Coords [][]float64 `json:"coords,omitempty"`
	// Layer overrides the default layer bit of the feature kind.
	Layer uint32 `json:"layer,omitempty"`
}

// SpawnFile places the car. Position is in source coordinates.
type SpawnFile struct {
	Position []float64 `json:"position"`
	Height   float64   `json:"height,omitempty"`
	Yaw      float64   `json:"yaw"`
}

// Load reads and builds the track at path.
func Load(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a track from its JSON description.
func Parse(data []byte) (*Track, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	return New(f)
}

func (l LineFile) lines() ([][]mgl64.Vec2, error) {
	switch {
	case l.WKT != "":
		return geo.ParseWKT(l.WKT)
	case len(l.Coords) > 0:
		line, err := geo.PolylineFromCoords(l.Coords)
		if err != nil {
			return nil, err
		}
		return [][]mgl64.Vec2{line}, nil
	}
	return nil, fmt.Errorf("feature %q has no geometry", l.ID)
}

func vec2(v []float64) (mgl64.Vec2, error) {
	switch len(v) {
	case 0:
		return mgl64.Vec2{}, nil
	case 2:
		return mgl64.Vec2{v[0], v[1]}, nil
	}
	return mgl64.Vec2{}, fmt.Errorf("expected 2 coordinates, got %d: %w", len(v), geo.ErrInvalidCoordinates)
}

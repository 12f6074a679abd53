package geo

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParseWKT reads a LINESTRING, MULTILINESTRING or POLYGON and returns its
// polylines. Polygon rings are returned closed.
func ParseWKT(wkt string) ([][]mgl64.Vec2, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WKT: %w", err)
	}

	var lines []geom.LineString
	if ls, ok := g.AsLineString(); ok {
		lines = append(lines, ls)
	} else if mls, ok := g.AsMultiLineString(); ok {
		for i := 0; i < mls.NumLineStrings(); i++ {
			lines = append(lines, mls.LineStringN(i))
		}
	} else if poly, ok := g.AsPolygon(); ok {
		lines = append(lines, poly.ExteriorRing())
		for i := 0; i < poly.NumInteriorRings(); i++ {
			lines = append(lines, poly.InteriorRingN(i))
		}
	} else {
		return nil, fmt.Errorf("unsupported geometry type %s", g.Type())
	}

	out := make([][]mgl64.Vec2, 0, len(lines))
	for _, ls := range lines {
		pts := lineStringPoints(ls)
		if len(pts) < 2 {
			return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(pts))
		}
		out = append(out, pts)
	}
	return out, nil
}

// ParsePolyline parses a JSON array of coordinates.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input string) ([]mgl64.Vec2, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}
	return PolylineFromCoords(coords)
}

// PolylineFromCoords converts [x, y] pairs to a polyline.
func PolylineFromCoords(coords [][]float64) ([]mgl64.Vec2, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	line := make([]mgl64.Vec2, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		line[i] = mgl64.Vec2{coord[0], coord[1]}
	}
	return line, nil
}

// LineString converts a polyline back to a simplefeatures geometry.
func LineString(line []mgl64.Vec2) (geom.LineString, error) {
	if len(line) == 0 {
		return geom.LineString{}, nil
	}
	coords := make([]float64, 0, len(line)*2)
	for _, p := range line {
		coords = append(coords, p.X(), p.Y())
	}
	ls, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("invalid line string: %w", err)
	}
	return ls, nil
}

func lineStringPoints(ls geom.LineString) []mgl64.Vec2 {
	seq := ls.Coordinates()
	pts := make([]mgl64.Vec2, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		pts[i] = mgl64.Vec2{xy.X, xy.Y}
	}
	return pts
}

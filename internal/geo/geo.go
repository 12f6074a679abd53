package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/wroge/wgs84"
)

// Track geometry lives on the horizontal plane. Vec2.X() is world X and
// Vec2.Y() is world Z. Geographic input is projected to EPSG:3857, scaled to
// true metres at the origin latitude and shifted so the origin is (0, 0).

// Supported coordinate reference systems.
const (
	CRSLocal    = "local"
	CRSWGS84    = "EPSG:4326"
	CRSMercator = "EPSG:3857"
)

// ErrUnsupportedCRS is returned for any CRS other than the ones above.
var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// ErrInvalidCoordinates is returned when a coordinate pair is malformed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Projection maps source coordinates onto the local track plane.
type Projection struct {
	crs       string
	transform func(a, b, c float64) (float64, float64, float64)
	origin    mgl64.Vec2
	scale     float64
}

// NewProjection builds a projection for crs whose local origin is origin,
// given in source coordinates. An empty crs means CRSLocal.
func NewProjection(crs string, origin mgl64.Vec2) (*Projection, error) {
	p := &Projection{crs: strings.ToUpper(strings.TrimSpace(crs)), scale: 1}
	switch p.crs {
	case "", strings.ToUpper(CRSLocal):
		p.crs = CRSLocal
		p.origin = origin
	case CRSMercator:
		p.origin = origin
	case CRSWGS84:
		if math.Abs(origin.Y()) >= 90 {
			return nil, fmt.Errorf("origin latitude %f: %w", origin.Y(), ErrInvalidCoordinates)
		}
		p.transform = wgs84.EPSG().Transform(4326, 3857)
		x, y, _ := p.transform(origin.X(), origin.Y(), 0)
		p.origin = mgl64.Vec2{x, y}
		// mercator stretches by 1/cos(lat)
		p.scale = math.Cos(mgl64.DegToRad(origin.Y()))
	default:
		return nil, fmt.Errorf("%q: %w", crs, ErrUnsupportedCRS)
	}
	return p, nil
}

// CRS returns the normalized source CRS.
func (p *Projection) CRS() string {
	return p.crs
}

// Project maps a source coordinate to the track plane.
func (p *Projection) Project(v mgl64.Vec2) mgl64.Vec2 {
	if p.transform != nil {
		x, y, _ := p.transform(v.X(), v.Y(), 0)
		v = mgl64.Vec2{x, y}
	}
	return v.Sub(p.origin).Mul(p.scale)
}

// ProjectAll maps every vertex of a polyline.
func (p *Projection) ProjectAll(line []mgl64.Vec2) []mgl64.Vec2 {
	out := make([]mgl64.Vec2, len(line))
	for i, v := range line {
		out[i] = p.Project(v)
	}
	return out
}

// ToWorld lifts a plane coordinate into world space at height y.
func ToWorld(v mgl64.Vec2, y float64) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), y, v.Y()}
}

// ToPlane drops the vertical component of a world position.
func ToPlane(v mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{v.X(), v.Z()}
}

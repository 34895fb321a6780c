package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrUnsupportedFence is returned when a boundary is not a (multi)polygon.
var ErrUnsupportedFence = errors.New("boundary must be a Polygon or MultiPolygon")

// Fence is a polygonal operating boundary, typically a field outline.
type Fence struct {
	geom orb.Geometry
}

// ParseFence decodes a GeoJSON geometry or feature into a Fence.
// Coordinates follow GeoJSON order: [longitude, latitude].
func ParseFence(raw json.RawMessage) (*Fence, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid boundary json: %w", err)
	}

	var geom orb.Geometry
	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boundary feature: %w", err)
		}
		geom = f.Geometry
	} else {
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boundary geometry: %w", err)
		}
		geom = g.Geometry()
	}

	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, ErrUnsupportedFence
	}
	return &Fence{geom: geom}, nil
}

// NewFence builds a single-ring fence from points in order.
func NewFence(ring []Point) *Fence {
	r := make(orb.Ring, 0, len(ring)+1)
	for _, p := range ring {
		r = append(r, orb.Point{p.Lon, p.Lat})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return &Fence{geom: orb.Polygon{r}}
}

// Contains reports whether p lies inside the fence.
// A nil fence contains everything.
func (f *Fence) Contains(p Point) bool {
	if f == nil {
		return true
	}
	return containsPoint(f.geom, orb.Point{p.Lon, p.Lat})
}

func containsPoint(geom orb.Geometry, point orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, point) {
				return true
			}
		}
	}
	return false
}

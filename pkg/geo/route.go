package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Route summarizes a planned path through an ordered list of points.
type Route struct {
	LengthM float64
	Bound   orb.Bound
	Points  int
}

// Center returns the middle of the route's bounding box.
func (r Route) Center() Point {
	c := r.Bound.Center()
	return Point{Lat: c.Lat(), Lon: c.Lon()}
}

// SummarizeRoute computes the along-track length and bounding box of a path.
// An empty path yields the zero Route.
func SummarizeRoute(points []Point) Route {
	if len(points) == 0 {
		return Route{}
	}

	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, orb.Point{p.Lon, p.Lat})
	}

	r := Route{
		Bound:  ls.Bound(),
		Points: len(points),
	}
	if len(ls) > 1 {
		r.LengthM = orbgeo.Length(ls)
	}
	return r
}

// TrackFeature converts a flown path into a GeoJSON LineString feature with
// the given properties. Fewer than two points yield a Point feature, or nil
// for an empty path.
func TrackFeature(points []Point, props map[string]any) *geojson.Feature {
	var f *geojson.Feature
	switch len(points) {
	case 0:
		return nil
	case 1:
		f = geojson.NewFeature(orb.Point{points[0].Lon, points[0].Lat})
	default:
		ls := make(orb.LineString, 0, len(points))
		for _, p := range points {
			ls = append(ls, orb.Point{p.Lon, p.Lat})
		}
		f = geojson.NewFeature(ls)
	}
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

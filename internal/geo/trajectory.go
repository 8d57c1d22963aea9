// Package geo converts simulated trajectories to and from simplefeatures
// geometries so they can be stored as WKB and rendered as WKT.
package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// ErrNotLineString is returned when a geometry is not a LineString
var ErrNotLineString = errors.New("geometry is not a LineString")

// LineString converts a trajectory to a geom.LineString. Trajectories with
// fewer than two waypoints have no length and map to the empty LineString.
func LineString(t core.Trajectory) geom.LineString {
	if len(t) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(t)*2)
	for _, p := range t {
		coords = append(coords, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// FromLineString converts a geom.LineString back to a trajectory.
func FromLineString(ls geom.LineString) core.Trajectory {
	seq := ls.Coordinates()
	n := seq.Length()
	if n == 0 {
		return nil
	}
	t := make(core.Trajectory, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		t[i] = core.Point{X: xy.X, Y: xy.Y}
	}
	return t
}

// FromGeometry converts a stored geometry to a trajectory. An empty
// geometry of any type yields a nil trajectory.
func FromGeometry(g geom.Geometry) (core.Trajectory, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	ls, ok := g.AsLineString()
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotLineString, g.Type())
	}
	return FromLineString(ls), nil
}

// WKT renders a trajectory as well-known text.
func WKT(t core.Trajectory) string {
	return LineString(t).AsText()
}

// ParseWKT parses a LINESTRING in well-known text into a trajectory.
func ParseWKT(wkt string) (core.Trajectory, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WKT: %w", err)
	}
	return FromGeometry(g)
}

// Length returns the travelled distance along the trajectory in millimetres.
func Length(t core.Trajectory) float64 {
	return LineString(t).Length()
}

// Bounces counts the wall contacts along a trajectory, that is the
// waypoints where the lateral direction of travel reverses.
func Bounces(t core.Trajectory) int {
	n := 0
	var prevDir float64
	for i := 1; i < len(t); i++ {
		dy := t[i].Y - t[i-1].Y
		if dy == 0 {
			continue
		}
		if prevDir != 0 && (dy > 0) != (prevDir > 0) {
			n++
		}
		prevDir = dy
	}
	return n
}

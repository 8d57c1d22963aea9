// pkg/core/geometry.go
package core

import "fmt"

// Point is a position on the playing field in field-relative millimetres.
// X runs downfield toward the goal line, Y runs laterally across the goal.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String renders the point the way the position log stores it.
func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.X, p.Y)
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Observation is a single per-frame ball sample. A frame in which the
// vision collaborator found no ball is an Observation with Detected unset.
type Observation struct {
	Point
	Detected bool `json:"detected"`
}

// Detected builds an observation for a frame in which the ball was found.
func Detected(x, y float64) Observation {
	return Observation{Point: Point{X: x, Y: y}, Detected: true}
}

// Missing builds an observation for a frame without a detection.
func Missing() Observation {
	return Observation{}
}

// Trajectory is an ordered list of waypoints from the current ball
// position to the goal line, or to where the simulated ball came to rest.
type Trajectory []Point

// Last returns the final waypoint, or false for an empty trajectory.
func (t Trajectory) Last() (Point, bool) {
	if len(t) == 0 {
		return Point{}, false
	}
	return t[len(t)-1], true
}

// Clone returns a copy that shares no backing array with t.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

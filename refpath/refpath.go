// Package refpath prepares reference-path inputs for the trajectory
// optimizer: it re-expresses world-frame waypoints in the vehicle's own
// frame and fits a fixed-degree polynomial to them.
package refpath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ErrNoWaypoints is returned when a frame transform is requested for an
// empty waypoint sequence.
var ErrNoWaypoints = errors.New("no waypoints to transform")

// Pose is the vehicle's world-frame position and heading in radians.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// VehicleFrame re-expresses world-frame waypoints in the vehicle's frame:
// the vehicle sits at the origin with zero heading, the x axis points along
// the heading and the y axis to the vehicle's left. Waypoint order is
// preserved; the input slice is not modified.
func VehicleFrame(pose Pose, waypoints []r2.Point) ([]r2.Point, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}
	sin, cos := math.Sincos(pose.Heading)
	local := make([]r2.Point, len(waypoints))
	for i, wp := range waypoints {
		dx := wp.X - pose.X
		dy := wp.Y - pose.Y
		local[i] = r2.Point{X: cos*dx + sin*dy, Y: cos*dy - sin*dx}
	}
	return local, nil
}

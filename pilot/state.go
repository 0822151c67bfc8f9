package pilot

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/refpath"
	"go.viam.com/mpc/utils"
)

// ErrInvalidTelemetry is returned when a telemetry sample cannot seed a
// control cycle. The cycle is skipped; no command is produced for it.
var ErrInvalidTelemetry = errors.New("invalid telemetry")

// Telemetry is one sample from the vehicle: the upcoming waypoints in world
// coordinates, the vehicle's world pose, and its speed.
type Telemetry struct {
	Waypoints []r2.Point
	Pose      refpath.Pose
	Speed     float64
}

func (t Telemetry) validate() error {
	for _, v := range []float64{t.Pose.X, t.Pose.Y, t.Pose.Heading, t.Speed} {
		if !utils.Finite(v) {
			return errors.Wrap(ErrInvalidTelemetry, "non-finite pose or speed")
		}
	}
	for _, wp := range t.Waypoints {
		if !utils.Finite(wp.X) || !utils.Finite(wp.Y) {
			return errors.Wrap(ErrInvalidTelemetry, "non-finite waypoint")
		}
	}
	return nil
}

// BuildState anchors a control state at the vehicle. In its own frame the
// vehicle sits at the origin with zero heading, so the cross track error is
// the curve's value there and the heading error the negated slope angle.
func BuildState(curve refpath.Polynomial, speed float64) mpc.ControlState {
	return mpc.ControlState{
		Speed:        speed,
		CrossTrack:   curve.Eval(0),
		HeadingError: -math.Atan(curve.Derivative().Eval(0)),
	}
}

package pilot

import (
	"github.com/golang/geo/r2"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/utils"
)

// Command is one cycle's actuator output in the external convention, plus
// the display paths that ride along with it.
type Command struct {
	// Steering is in [-1, 1]. The external actuator counts positive as a
	// right turn while the model counts positive as left, so this is the
	// model's steer negated and scaled by the steering limit.
	Steering float64
	// Throttle is in [-1, 1]; positive accelerates, negative brakes.
	Throttle float64
	// Predicted is the planned (x, y) trajectory in the vehicle frame. It is
	// display only, never a commitment to future commands.
	Predicted []r2.Point
	// Reference is the waypoint path in the vehicle frame, display only.
	Reference []r2.Point
}

// emit maps an actuation onto the wire ranges. Inputs are clipped to the
// configured limits first so nothing outside [-1, 1] can leave the pilot.
func emit(act mpc.Actuation, limits config.Limits, predicted, reference []r2.Point) *Command {
	steer := utils.Clamp(act.Steer, -limits.MaxSteer, limits.MaxSteer)
	accel := utils.Clamp(act.Accel, -limits.MaxDecel, limits.MaxAccel)
	throttle := accel / limits.MaxAccel
	if accel < 0 {
		throttle = accel / limits.MaxDecel
	}
	return &Command{
		Steering:  utils.Clamp(-steer/limits.MaxSteer, -1, 1),
		Throttle:  utils.Clamp(throttle, -1, 1),
		Predicted: predicted,
		Reference: reference,
	}
}

package pilot

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
)

func TestEmitSteeringConvention(t *testing.T) {
	limits := config.Limits{MaxSteer: 0.4, MaxAccel: 1, MaxDecel: 1}

	// A left steer in the model is a negative wire value, at full scale at
	// the steering limit.
	cmd := emit(mpc.Actuation{Steer: 0.4}, limits, nil, nil)
	test.That(t, cmd.Steering, test.ShouldAlmostEqual, -1)
	cmd = emit(mpc.Actuation{Steer: -0.4}, limits, nil, nil)
	test.That(t, cmd.Steering, test.ShouldAlmostEqual, 1)
	cmd = emit(mpc.Actuation{Steer: 0.2}, limits, nil, nil)
	test.That(t, cmd.Steering, test.ShouldAlmostEqual, -0.5)

	// Out of range steer clips at the limit instead of leaving [-1, 1].
	cmd = emit(mpc.Actuation{Steer: 1.3}, limits, nil, nil)
	test.That(t, cmd.Steering, test.ShouldAlmostEqual, -1)
}

func TestEmitThrottleNormalization(t *testing.T) {
	// Asymmetric limits: braking has twice the authority of acceleration,
	// yet both map onto the same [-1, 1] wire range.
	limits := config.Limits{MaxSteer: 0.4, MaxAccel: 2, MaxDecel: 4}

	cmd := emit(mpc.Actuation{Accel: 1}, limits, nil, nil)
	test.That(t, cmd.Throttle, test.ShouldAlmostEqual, 0.5)
	cmd = emit(mpc.Actuation{Accel: -2}, limits, nil, nil)
	test.That(t, cmd.Throttle, test.ShouldAlmostEqual, -0.5)
	cmd = emit(mpc.Actuation{Accel: 3}, limits, nil, nil)
	test.That(t, cmd.Throttle, test.ShouldAlmostEqual, 1)
	cmd = emit(mpc.Actuation{Accel: -6}, limits, nil, nil)
	test.That(t, cmd.Throttle, test.ShouldAlmostEqual, -1)
}

func TestEmitZeroActuation(t *testing.T) {
	cmd := emit(mpc.Actuation{}, config.Default().Limits, nil, nil)
	test.That(t, cmd.Steering, test.ShouldEqual, 0)
	test.That(t, cmd.Throttle, test.ShouldEqual, 0)
}

func TestEmitCarriesDisplayPaths(t *testing.T) {
	predicted := []r2.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	reference := []r2.Point{{X: 5, Y: 6}}
	cmd := emit(mpc.Actuation{}, config.Default().Limits, predicted, reference)
	test.That(t, cmd.Predicted, test.ShouldResemble, predicted)
	test.That(t, cmd.Reference, test.ShouldResemble, reference)
}

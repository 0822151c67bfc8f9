package pilot

import (
	"time"

	"go.einride.tech/pid"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/utils"
)

// fallback chooses what to actuate when a solve fails: either keep the last
// commanded actuation, or keep its steering and regulate speed down toward
// zero. Not safe for concurrent use; the pilot's single flight cycle
// serializes calls.
type fallback struct {
	policy string
	limits config.Limits
	period time.Duration
	brake  pid.Controller
}

func newFallback(cfg config.Config) *fallback {
	return &fallback{
		policy: cfg.Fallback.Policy,
		limits: cfg.Limits,
		period: time.Duration(cfg.Horizon.StepSeconds * float64(time.Second)),
		brake: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: cfg.Fallback.BrakeGains.P,
				IntegralGain:     cfg.Fallback.BrakeGains.I,
				DerivativeGain:   cfg.Fallback.BrakeGains.D,
			},
		},
	}
}

// next returns the degraded actuation for one failed cycle.
func (f *fallback) next(held mpc.Actuation, speed float64) mpc.Actuation {
	if f.policy == config.PolicyHold {
		return held
	}
	// Regulate speed toward zero. The control signal is negative while the
	// vehicle still moves forward, and never commands acceleration.
	f.brake.Update(pid.ControllerInput{
		ReferenceSignal:  0,
		ActualSignal:     speed,
		SamplingInterval: f.period,
	})
	return mpc.Actuation{
		Steer: held.Steer,
		Accel: utils.Clamp(f.brake.State.ControlSignal, -f.limits.MaxDecel, 0),
	}
}

// reset clears the regulator after a successful solve so stale integral
// state cannot leak into the next failure burst.
func (f *fallback) reset() {
	f.brake.Reset()
}

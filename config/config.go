// Package config describes the tunable surface of the path tracking
// controller: vehicle geometry, horizon shape, cost weights, actuation
// limits, solver selection, and the failure fallback policy.
package config

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/mpc/utils"
)

// Solver backends.
const (
	SolverNLopt = "nlopt"
	SolverGonum = "gonum"
)

// Fallback policies applied when an optimization cycle fails.
const (
	PolicyHold  = "hold"
	PolicyBrake = "brake"
)

// Config is the full controller configuration. The zero value is not
// usable; start from Default and override.
type Config struct {
	Vehicle  Vehicle  `json:"vehicle"`
	Horizon  Horizon  `json:"horizon"`
	Weights  Weights  `json:"weights"`
	Limits   Limits   `json:"limits"`
	Solver   Solver   `json:"solver"`
	Fallback Fallback `json:"fallback"`
	CAN      CAN      `json:"can"`
}

// Vehicle holds the physical parameters of the controlled car.
type Vehicle struct {
	// WheelbaseToCG is the distance from the front axle to the center of
	// gravity, in meters. It scales how quickly steering turns the vehicle.
	WheelbaseToCG float64 `json:"wheelbase_to_cg"`
	// ActuationDelaySeconds is how long a command takes to reach the
	// actuators. The controller plans from the state projected this far
	// into the future.
	ActuationDelaySeconds float64 `json:"actuation_delay_seconds"`
}

// Horizon shapes the prediction window.
type Horizon struct {
	Steps          int     `json:"steps"`
	StepSeconds    float64 `json:"step_seconds"`
	ReferenceSpeed float64 `json:"reference_speed"`
}

// Weights are the cost term multipliers. Larger values penalize the
// corresponding deviation more heavily.
type Weights struct {
	CrossTrack float64 `json:"cross_track"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	Steer      float64 `json:"steer"`
	Accel      float64 `json:"accel"`
	SteerRate  float64 `json:"steer_rate"`
	AccelRate  float64 `json:"accel_rate"`
}

// Limits are the actuation bounds. All values are positive magnitudes.
type Limits struct {
	// MaxSteer is the steering bound in radians, applied symmetrically.
	MaxSteer float64 `json:"max_steer"`
	MaxAccel float64 `json:"max_accel"`
	MaxDecel float64 `json:"max_decel"`
}

// Solver selects and budgets the optimization backend.
type Solver struct {
	Backend       string  `json:"backend"`
	MaxIterations int     `json:"max_iterations"`
	BudgetSeconds float64 `json:"budget_seconds"`
	WarmStart     bool    `json:"warm_start"`
}

// BudgetDuration returns the per-cycle solve budget as a duration.
func (s Solver) BudgetDuration() time.Duration {
	return time.Duration(s.BudgetSeconds * float64(time.Second))
}

// PID holds proportional, integral, and derivative gains.
type PID struct {
	P float64 `json:"p"`
	I float64 `json:"i"`
	D float64 `json:"d"`
}

// Fallback selects what the controller commands when optimization fails.
type Fallback struct {
	Policy string `json:"policy"`
	// BrakeGains tune the speed regulator used by the brake policy.
	BrakeGains PID `json:"brake_gains"`
}

// CAN configures the optional actuation bridge onto a CAN bus.
type CAN struct {
	Enabled   bool   `json:"enabled"`
	Interface string `json:"interface"`
	FrameID   uint32 `json:"frame_id"`
}

// Default returns the configuration tuned for the simulator track at a
// 40 unit reference speed.
func Default() Config {
	return Config{
		Vehicle: Vehicle{
			WheelbaseToCG:         2.67,
			ActuationDelaySeconds: 0.1,
		},
		Horizon: Horizon{
			Steps:          10,
			StepSeconds:    0.1,
			ReferenceSpeed: 40,
		},
		Weights: Weights{
			CrossTrack: 2000,
			Heading:    2000,
			Speed:      1,
			Steer:      5,
			Accel:      5,
			SteerRate:  200,
			AccelRate:  10,
		},
		Limits: Limits{
			MaxSteer: utils.DegToRad(25),
			MaxAccel: 1.0,
			MaxDecel: 1.0,
		},
		Solver: Solver{
			Backend:       SolverNLopt,
			MaxIterations: 500,
			BudgetSeconds: 0.05,
			WarmStart:     true,
		},
		Fallback: Fallback{
			Policy:     PolicyHold,
			BrakeGains: PID{P: 0.5, I: 0.05, D: 0},
		},
		CAN: CAN{
			Enabled:   false,
			Interface: "can0",
			FrameID:   0x101,
		},
	}
}

// Validate checks the configuration for values the controller cannot run
// with.
func (c *Config) Validate() error {
	if c.Vehicle.WheelbaseToCG <= 0 {
		return errors.Errorf("vehicle.wheelbase_to_cg must be positive, got %v", c.Vehicle.WheelbaseToCG)
	}
	if c.Vehicle.ActuationDelaySeconds < 0 {
		return errors.Errorf("vehicle.actuation_delay_seconds cannot be negative, got %v", c.Vehicle.ActuationDelaySeconds)
	}
	if c.Horizon.Steps < 2 {
		return errors.Errorf("horizon.steps must be at least 2, got %d", c.Horizon.Steps)
	}
	if c.Horizon.StepSeconds <= 0 {
		return errors.Errorf("horizon.step_seconds must be positive, got %v", c.Horizon.StepSeconds)
	}
	if c.Horizon.ReferenceSpeed < 0 {
		return errors.Errorf("horizon.reference_speed cannot be negative, got %v", c.Horizon.ReferenceSpeed)
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"cross_track", c.Weights.CrossTrack},
		{"heading", c.Weights.Heading},
		{"speed", c.Weights.Speed},
		{"steer", c.Weights.Steer},
		{"accel", c.Weights.Accel},
		{"steer_rate", c.Weights.SteerRate},
		{"accel_rate", c.Weights.AccelRate},
	} {
		if w.value < 0 || !utils.Finite(w.value) {
			return errors.Errorf("weights.%s must be finite and non-negative, got %v", w.name, w.value)
		}
	}
	if c.Limits.MaxSteer <= 0 {
		return errors.Errorf("limits.max_steer must be positive, got %v", c.Limits.MaxSteer)
	}
	if c.Limits.MaxAccel <= 0 {
		return errors.Errorf("limits.max_accel must be positive, got %v", c.Limits.MaxAccel)
	}
	if c.Limits.MaxDecel <= 0 {
		return errors.Errorf("limits.max_decel must be positive, got %v", c.Limits.MaxDecel)
	}
	switch c.Solver.Backend {
	case SolverNLopt, SolverGonum:
	default:
		return errors.Errorf("solver.backend must be %q or %q, got %q", SolverNLopt, SolverGonum, c.Solver.Backend)
	}
	if c.Solver.MaxIterations <= 0 {
		return errors.Errorf("solver.max_iterations must be positive, got %d", c.Solver.MaxIterations)
	}
	if c.Solver.BudgetSeconds <= 0 {
		return errors.Errorf("solver.budget_seconds must be positive, got %v", c.Solver.BudgetSeconds)
	}
	switch c.Fallback.Policy {
	case PolicyHold, PolicyBrake:
	default:
		return errors.Errorf("fallback.policy must be %q or %q, got %q", PolicyHold, PolicyBrake, c.Fallback.Policy)
	}
	if c.Fallback.BrakeGains.P < 0 || c.Fallback.BrakeGains.I < 0 || c.Fallback.BrakeGains.D < 0 {
		return errors.New("fallback.brake_gains cannot be negative")
	}
	if c.CAN.Enabled {
		if c.CAN.Interface == "" {
			return errors.New("can.interface is required when can.enabled is set")
		}
		if c.CAN.FrameID == 0 || c.CAN.FrameID > 0x7FF {
			return errors.Errorf("can.frame_id must be a standard 11-bit identifier, got %#x", c.CAN.FrameID)
		}
	}
	return nil
}

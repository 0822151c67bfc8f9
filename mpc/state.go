// Package mpc plans vehicle actuations by optimizing a kinematic bicycle
// model over a short receding horizon. Each solve returns a full horizon
// plan; only the first actuation is meant to be executed before the next
// telemetry sample triggers a fresh solve.
package mpc

import "github.com/golang/geo/r2"

// ControlState is the tracked state of the vehicle in its own frame. The
// frame is re-anchored every cycle, so X, Y, and Heading measure drift
// accumulated across the horizon rather than world coordinates.
type ControlState struct {
	X       float64
	Y       float64
	Heading float64
	Speed   float64
	// CrossTrack is the signed lateral offset from the reference curve,
	// positive when the curve is to the vehicle's left.
	CrossTrack float64
	// HeadingError is the signed angle from the reference tangent to the
	// vehicle heading.
	HeadingError float64
}

// Actuation is one step of commanded control. Steer is in radians with
// positive values turning left; Accel is in distance units per second
// squared with negative values braking.
type Actuation struct {
	Steer float64
	Accel float64
}

// HorizonPlan is one solved horizon: len(States) == len(Actuations)+1 and
// States[0] is the starting state the solve was anchored to.
type HorizonPlan struct {
	States     []ControlState
	Actuations []Actuation
	Cost       float64
}

// First returns the actuation to execute this cycle.
func (p *HorizonPlan) First() Actuation {
	if len(p.Actuations) == 0 {
		return Actuation{}
	}
	return p.Actuations[0]
}

// Path returns the planned positions, in the vehicle frame, for display.
func (p *HorizonPlan) Path() []r2.Point {
	pts := make([]r2.Point, len(p.States))
	for i, s := range p.States {
		pts[i] = r2.Point{X: s.X, Y: s.Y}
	}
	return pts
}

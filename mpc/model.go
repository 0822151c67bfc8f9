package mpc

import (
	"math"

	"go.viam.com/mpc/refpath"
)

// Model is the kinematic bicycle model evaluated against one reference
// curve. The curve's derivative is computed once at construction since
// every step needs the tangent.
type Model struct {
	curve refpath.Polynomial
	slope refpath.Polynomial
	lf    float64
}

// NewModel builds a model for the given reference curve and front
// axle to center of gravity distance.
func NewModel(curve refpath.Polynomial, wheelbaseToCG float64) Model {
	return Model{curve: curve, slope: curve.Derivative(), lf: wheelbaseToCG}
}

// Evolve advances the state by one step of length dt under the given
// actuation. Positive steer increases heading, turning the vehicle left.
func (m Model) Evolve(s ControlState, act Actuation, dt float64) ControlState {
	refY := m.curve.Eval(s.X)
	refHeading := math.Atan(m.slope.Eval(s.X))
	turn := s.Speed / m.lf * act.Steer * dt
	return ControlState{
		X:            s.X + s.Speed*math.Cos(s.Heading)*dt,
		Y:            s.Y + s.Speed*math.Sin(s.Heading)*dt,
		Heading:      s.Heading + turn,
		Speed:        s.Speed + act.Accel*dt,
		CrossTrack:   (refY - s.Y) + s.Speed*math.Sin(s.HeadingError)*dt,
		HeadingError: (s.Heading - refHeading) + turn,
	}
}

// Rollout simulates the actuation sequence from the starting state,
// returning len(acts)+1 states with the start in position zero.
func (m Model) Rollout(start ControlState, acts []Actuation, dt float64) []ControlState {
	states := make([]ControlState, len(acts)+1)
	states[0] = start
	for i, act := range acts {
		states[i+1] = m.Evolve(states[i], act, dt)
	}
	return states
}

package mpc

import (
	"go.viam.com/mpc/config"
	"go.viam.com/mpc/utils"
)

// planCost scores a rollout. Tracking terms run over every state, effort
// terms over every actuation, and smoothness terms over adjacent actuation
// pairs.
func planCost(states []ControlState, acts []Actuation, weights config.Weights, refSpeed float64) float64 {
	cost := 0.0
	for _, s := range states {
		cost += weights.CrossTrack * utils.Square(s.CrossTrack)
		cost += weights.Heading * utils.Square(s.HeadingError)
		cost += weights.Speed * utils.Square(s.Speed-refSpeed)
	}
	for _, a := range acts {
		cost += weights.Steer * utils.Square(a.Steer)
		cost += weights.Accel * utils.Square(a.Accel)
	}
	for i := 0; i+1 < len(acts); i++ {
		cost += weights.SteerRate * utils.Square(acts[i+1].Steer-acts[i].Steer)
		cost += weights.AccelRate * utils.Square(acts[i+1].Accel-acts[i].Accel)
	}
	return cost
}

package mpc

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/refpath"
	"go.viam.com/mpc/utils"
)

// Solver computes an actuation plan that tracks a reference curve from a
// starting state. Implementations are not safe for concurrent Solve calls.
type Solver interface {
	Solve(ctx context.Context, start ControlState, curve refpath.Polynomial) (*HorizonPlan, error)
}

// NewSolver returns the backend the configuration selects. When the native
// backend is not compiled in, the pure Go backend is substituted with a
// warning rather than failing startup.
func NewSolver(cfg config.Config, logger golog.Logger) (Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Solver.Backend {
	case config.SolverNLopt:
		solver, err := newNLOptSolver(cfg, logger)
		if err == nil {
			return solver, nil
		}
		if !errors.Is(err, errNLOptUnavailable) {
			return nil, err
		}
		logger.Warnw("configured solver backend unavailable in this build, using pure Go backend",
			"configured", config.SolverNLopt)
		return newGonumSolver(cfg, logger)
	case config.SolverGonum:
		return newGonumSolver(cfg, logger)
	default:
		return nil, errors.Errorf("unknown solver backend %q", cfg.Solver.Backend)
	}
}

// problem carries everything one solve needs. The decision vector holds the
// horizon's actuations interleaved as steer, accel pairs; states are
// recovered by rolling the model forward, so model constraints hold exactly
// for any vector the optimizer proposes.
type problem struct {
	model    Model
	start    ControlState
	steps    int
	dt       float64
	weights  config.Weights
	refSpeed float64
	limits   config.Limits
}

func newProblem(cfg config.Config, curve refpath.Polynomial, start ControlState) problem {
	return problem{
		model:    NewModel(curve, cfg.Vehicle.WheelbaseToCG),
		start:    start,
		steps:    cfg.Horizon.Steps,
		dt:       cfg.Horizon.StepSeconds,
		weights:  cfg.Weights,
		refSpeed: cfg.Horizon.ReferenceSpeed,
		limits:   cfg.Limits,
	}
}

func (p problem) dims() int { return 2 * (p.steps - 1) }

func (p problem) bounds() (lower, upper []float64) {
	return actuationBounds(p.limits, p.steps-1)
}

// actuationBounds returns interleaved per-variable bounds for n actuation
// steps: steering at even indices, acceleration at odd ones.
func actuationBounds(limits config.Limits, n int) (lower, upper []float64) {
	lower = make([]float64, 2*n)
	upper = make([]float64, 2*n)
	for i := 0; i < n; i++ {
		lower[2*i] = -limits.MaxSteer
		upper[2*i] = limits.MaxSteer
		lower[2*i+1] = -limits.MaxDecel
		upper[2*i+1] = limits.MaxAccel
	}
	return lower, upper
}

func unpackActuations(x []float64) []Actuation {
	acts := make([]Actuation, len(x)/2)
	for i := range acts {
		acts[i] = Actuation{Steer: x[2*i], Accel: x[2*i+1]}
	}
	return acts
}

// checkInputs rejects problems poisoned by non-finite telemetry before the
// optimizer can propagate them into a plan.
func (p problem) checkInputs() error {
	for _, v := range []float64{
		p.start.X, p.start.Y, p.start.Heading,
		p.start.Speed, p.start.CrossTrack, p.start.HeadingError,
	} {
		if !utils.Finite(v) {
			return errors.Wrap(ErrOptimizationFailed, "non-finite starting state")
		}
	}
	for _, c := range p.model.curve {
		if !utils.Finite(c) {
			return errors.Wrap(ErrOptimizationFailed, "non-finite reference curve")
		}
	}
	return nil
}

// evaluate is the optimization objective over a decision vector.
func (p problem) evaluate(x []float64) float64 {
	acts := unpackActuations(x)
	states := p.model.Rollout(p.start, acts, p.dt)
	return planCost(states, acts, p.weights, p.refSpeed)
}

// gradientAt fills grad with a forward-difference estimate of the objective
// gradient at x, where base is the already computed objective value. The
// probe flips backward where stepping forward would leave the feasible box.
func (p problem) gradientAt(x []float64, base float64, grad []float64) {
	const jump = 1e-6
	_, upper := p.bounds()
	probe := make([]float64, len(x))
	copy(probe, x)
	for i := range x {
		step := jump
		if x[i]+step > upper[i] {
			step = -jump
		}
		probe[i] = x[i] + step
		grad[i] = (p.evaluate(probe) - base) / step
		probe[i] = x[i]
	}
}

// plan expands a decision vector into the full horizon.
func (p problem) plan(x []float64) *HorizonPlan {
	acts := unpackActuations(x)
	states := p.model.Rollout(p.start, acts, p.dt)
	return &HorizonPlan{
		States:     states,
		Actuations: acts,
		Cost:       planCost(states, acts, p.weights, p.refSpeed),
	}
}

// validate checks a solved plan for numerical health. Bound violations
// within the optimizer's tolerance are clipped; anything larger fails the
// solve.
func (p problem) validate(plan *HorizonPlan) error {
	const slack = 1e-6
	if len(plan.Actuations) != p.steps-1 {
		return errors.Wrapf(ErrOptimizationFailed,
			"solution has %d actuations, want %d", len(plan.Actuations), p.steps-1)
	}
	for i := range plan.Actuations {
		act := &plan.Actuations[i]
		if !utils.Finite(act.Steer) || !utils.Finite(act.Accel) {
			return errors.Wrap(ErrOptimizationFailed, "non-finite actuation in solution")
		}
		if act.Steer < -p.limits.MaxSteer-slack || act.Steer > p.limits.MaxSteer+slack {
			return errors.Wrapf(ErrOptimizationFailed, "steer %v outside [%v, %v]",
				act.Steer, -p.limits.MaxSteer, p.limits.MaxSteer)
		}
		if act.Accel < -p.limits.MaxDecel-slack || act.Accel > p.limits.MaxAccel+slack {
			return errors.Wrapf(ErrOptimizationFailed, "accel %v outside [%v, %v]",
				act.Accel, -p.limits.MaxDecel, p.limits.MaxAccel)
		}
		act.Steer = utils.Clamp(act.Steer, -p.limits.MaxSteer, p.limits.MaxSteer)
		act.Accel = utils.Clamp(act.Accel, -p.limits.MaxDecel, p.limits.MaxAccel)
	}
	for _, s := range plan.States {
		for _, v := range []float64{s.X, s.Y, s.Heading, s.Speed, s.CrossTrack, s.HeadingError} {
			if !utils.Finite(v) {
				return errors.Wrap(ErrOptimizationFailed, "non-finite state in solution")
			}
		}
	}
	if !utils.Finite(plan.Cost) {
		return errors.Wrap(ErrOptimizationFailed, "non-finite cost")
	}
	return nil
}

package mpc

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/refpath"
	"go.viam.com/mpc/utils"
)

// gonumSolver is the pure Go backend. Quasi-Newton descent runs in an
// unconstrained space mapped onto the actuation box by a smooth change of
// variables, so every iterate stays feasible.
type gonumSolver struct {
	cfg    config.Config
	logger golog.Logger
	seeds  *warmStart
}

func newGonumSolver(cfg config.Config, logger golog.Logger) (Solver, error) {
	return &gonumSolver{
		cfg:    cfg,
		logger: logger,
		seeds:  newWarmStart(2 * (cfg.Horizon.Steps - 1)),
	}, nil
}

func (s *gonumSolver) Solve(
	ctx context.Context,
	start ControlState,
	curve refpath.Polynomial,
) (*HorizonPlan, error) {
	prob := newProblem(s.cfg, curve, start)
	if err := prob.checkInputs(); err != nil {
		s.seeds.invalidate()
		return nil, err
	}

	lower, upper := prob.bounds()
	squash := newBoxSquash(lower, upper)
	objective := func(z []float64) float64 {
		return prob.evaluate(squash.apply(z))
	}

	budget := s.cfg.Solver.BudgetDuration()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < budget {
			budget = remaining
		}
	}
	if budget <= 0 || ctx.Err() != nil {
		s.seeds.invalidate()
		return nil, errors.Wrap(ErrOptimizationFailed, "no solve time remaining")
	}
	settings := &optimize.Settings{
		MajorIterations: s.cfg.Solver.MaxIterations,
		Runtime:         budget,
	}

	started := time.Now()
	result, err := optimize.Minimize(optimize.Problem{
		Func: objective,
		Grad: func(grad, z []float64) {
			fd.Gradient(grad, objective, z, nil)
		},
	}, squash.invert(s.seeds.seed()), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != prob.dims() {
		s.seeds.invalidate()
		return nil, errors.Wrapf(ErrOptimizationFailed, "optimizer produced no result: %v", err)
	}
	if err != nil {
		// Linesearch trouble near the bounds still leaves a best iterate;
		// validation decides whether it is usable.
		s.logger.Debugw("optimizer stopped early, validating best iterate",
			"status", result.Status.String(), "error", err)
	}

	solution := squash.apply(result.X)
	plan := prob.plan(solution)
	if err := prob.validate(plan); err != nil {
		s.seeds.invalidate()
		return nil, err
	}
	if s.cfg.Solver.WarmStart {
		s.seeds.store(solution)
	}
	s.logger.Debugw("horizon solved", "cost", plan.Cost, "evals", result.FuncEvaluations, "took", time.Since(started))
	return plan, nil
}

// boxSquash maps unconstrained optimizer space onto box bounds through
// u = center + half*tanh(z).
type boxSquash struct {
	center []float64
	half   []float64
}

func newBoxSquash(lower, upper []float64) *boxSquash {
	center := make([]float64, len(lower))
	half := make([]float64, len(lower))
	for i := range lower {
		center[i] = (upper[i] + lower[i]) / 2
		half[i] = (upper[i] - lower[i]) / 2
	}
	return &boxSquash{center: center, half: half}
}

func (b *boxSquash) apply(z []float64) []float64 {
	u := make([]float64, len(z))
	for i := range z {
		u[i] = b.center[i] + b.half[i]*math.Tanh(z[i])
	}
	return u
}

// invert maps a feasible point back into optimizer space. Points are kept
// strictly inside the box since atanh diverges at the bounds.
func (b *boxSquash) invert(u []float64) []float64 {
	const margin = 1 - 1e-9
	z := make([]float64, len(u))
	for i := range u {
		ratio := (u[i] - b.center[i]) / b.half[i]
		z[i] = math.Atanh(utils.Clamp(ratio, -margin, margin))
	}
	return z
}

//go:build !windows && !no_cgo

package mpc

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/refpath"
)

const (
	nloptFtol = 1e-6
	nloptXtol = 1e-8
)

// nloptSolver runs SLSQP from the nlopt C library. Box bounds are native
// to the algorithm, so each solve is a single descent from the seed.
type nloptSolver struct {
	cfg    config.Config
	logger golog.Logger
	seeds  *warmStart
}

type optimizeReturn struct {
	solution []float64
	cost     float64
	err      error
}

func newNLOptSolver(cfg config.Config, logger golog.Logger) (Solver, error) {
	return &nloptSolver{
		cfg:    cfg,
		logger: logger,
		seeds:  newWarmStart(2 * (cfg.Horizon.Steps - 1)),
	}, nil
}

func (s *nloptSolver) Solve(
	ctx context.Context,
	start ControlState,
	curve refpath.Polynomial,
) (*HorizonPlan, error) {
	prob := newProblem(s.cfg, curve, start)
	if err := prob.checkInputs(); err != nil {
		s.seeds.invalidate()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.seeds.invalidate()
		return nil, errors.Wrapf(ErrOptimizationFailed, "solve canceled: %v", err)
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(prob.dims()))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	evals := 0
	// Gradient is, under the hood, an unsafe C structure that we are meant
	// to mutate in place.
	objective := func(x, gradient []float64) float64 {
		evals++
		cost := prob.evaluate(x)
		if len(gradient) > 0 {
			prob.gradientAt(x, cost, gradient)
		}
		return cost
	}

	lower, upper := prob.bounds()
	err = multierr.Combine(
		opt.SetLowerBounds(lower),
		opt.SetUpperBounds(upper),
		opt.SetFtolRel(nloptFtol),
		opt.SetFtolAbs(nloptFtol),
		opt.SetXtolRel(nloptXtol),
		opt.SetXtolAbs1(nloptXtol),
		opt.SetMaxEval(s.cfg.Solver.MaxIterations),
		opt.SetMaxTime(s.cfg.Solver.BudgetSeconds),
		opt.SetMinObjective(objective),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nlopt configuration error")
	}

	started := time.Now()
	var activeSolvers sync.WaitGroup
	solveChan := make(chan *optimizeReturn, 1)
	activeSolvers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer activeSolvers.Done()
		solution, cost, optErr := opt.Optimize(s.seeds.seed())
		solveChan <- &optimizeReturn{solution, cost, optErr}
	})

	var solved *optimizeReturn
	select {
	case <-ctx.Done():
		stopErr := multierr.Combine(ctx.Err(), opt.ForceStop())
		activeSolvers.Wait()
		s.seeds.invalidate()
		return nil, errors.Wrapf(ErrOptimizationFailed, "solve interrupted: %v", stopErr)
	case solved = <-solveChan:
	}

	if solved.solution == nil {
		s.seeds.invalidate()
		return nil, errors.Wrapf(ErrOptimizationFailed, "nlopt returned no solution: %v", solved.err)
	}
	if solved.err != nil {
		// SLSQP can report roundoff trouble while still returning its best
		// iterate; validation decides whether that iterate is usable.
		s.logger.Debugw("nlopt finished with error, validating best iterate", "error", solved.err)
	}

	plan := prob.plan(solved.solution)
	if err := prob.validate(plan); err != nil {
		s.seeds.invalidate()
		return nil, err
	}
	if s.cfg.Solver.WarmStart {
		s.seeds.store(solved.solution)
	}
	s.logger.Debugw("horizon solved", "cost", plan.Cost, "evals", evals, "took", time.Since(started))
	return plan, nil
}

// Package pilot runs the per telemetry cycle control pipeline: reference
// path preparation, state building, the horizon solve, and emission of the
// normalized actuator command.
package pilot

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/refpath"
)

// ErrCycleInFlight is returned when a cycle arrives while the previous one
// is still solving. One solve at a time per vehicle; late telemetry is
// rejected rather than queued.
var ErrCycleInFlight = errors.New("control cycle already in flight")

// Sink receives every actuation the pilot emits, in model units, in
// addition to the command returned to the caller.
type Sink interface {
	Send(ctx context.Context, act mpc.Actuation) error
}

// Pilot drives one vehicle: each telemetry sample in, one command out.
type Pilot struct {
	cfg    config.Config
	solver mpc.Solver
	logger golog.Logger
	clk    clock.Clock
	diag   *diagnostics
	fall   *fallback
	sink   Sink

	inFlight atomic.Bool
	lastSent atomic.Pointer[mpc.Actuation]
}

// New returns a pilot around the given solver. The configuration must be
// the one the solver was built with.
func New(cfg config.Config, solver mpc.Solver, logger golog.Logger) (*Pilot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newWithClock(cfg, solver, logger, clock.New()), nil
}

func newWithClock(cfg config.Config, solver mpc.Solver, logger golog.Logger, clk clock.Clock) *Pilot {
	return &Pilot{
		cfg:    cfg,
		solver: solver,
		logger: logger,
		clk:    clk,
		diag:   newDiagnostics(logger),
		fall:   newFallback(cfg),
	}
}

// AttachSink adds a secondary destination for emitted actuations, e.g. a
// CAN bridge. Attach before the first cycle; sink failures are logged and
// never fail the cycle.
func (p *Pilot) AttachSink(sink Sink) {
	p.sink = sink
}

// Cycle runs the pipeline for one telemetry sample and returns the command
// to execute now. Preprocessing problems (unusable telemetry, too few
// waypoints for the fit) return an error and no command, leaving the
// vehicle to external control for the sample. A failed solve instead
// degrades to the configured fallback policy and still returns a command.
func (p *Pilot) Cycle(ctx context.Context, tel Telemetry) (*Command, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer p.inFlight.Store(false)

	if err := tel.validate(); err != nil {
		return nil, err
	}
	local, err := refpath.VehicleFrame(tel.Pose, tel.Waypoints)
	if err != nil {
		return nil, err
	}
	curve, err := refpath.Fit(local, refpath.CurveDegree)
	if err != nil {
		return nil, err
	}

	held := p.held()
	state := BuildState(curve, tel.Speed)
	if delay := p.cfg.Vehicle.ActuationDelaySeconds; delay > 0 {
		// Solve from where the vehicle will be once this cycle's command
		// reaches the actuators, assuming the previous command keeps acting
		// until then. The command itself goes out immediately, so the delay
		// is compensated exactly once.
		model := mpc.NewModel(curve, p.cfg.Vehicle.WheelbaseToCG)
		state = model.Evolve(state, held, delay)
	}

	solveStarted := p.clk.Now()
	plan, err := p.solver.Solve(ctx, state, curve)
	if err != nil {
		p.diag.failure()
		p.logger.Warnw("solve failed, degrading to fallback policy",
			"policy", p.cfg.Fallback.Policy, "error", err)
		return p.send(ctx, p.fall.next(held, tel.Speed), nil, local), nil
	}
	p.diag.success(p.clk.Since(solveStarted), plan.Cost)
	p.fall.reset()
	return p.send(ctx, plan.First(), plan.Path(), local), nil
}

// send records the actuation as the latest on the wire and fans it out.
func (p *Pilot) send(ctx context.Context, act mpc.Actuation, predicted, reference []r2.Point) *Command {
	p.lastSent.Store(&act)
	cmd := emit(act, p.cfg.Limits, predicted, reference)
	if p.sink != nil {
		if err := p.sink.Send(ctx, act); err != nil {
			p.logger.Warnw("actuation sink send failed", "error", err)
		}
	}
	return cmd
}

func (p *Pilot) held() mpc.Actuation {
	if held := p.lastSent.Load(); held != nil {
		return *held
	}
	return mpc.Actuation{}
}

// Close logs the final solve statistics. The solver and any attached sink
// are owned by the caller and closed separately.
func (p *Pilot) Close(ctx context.Context) error {
	p.diag.summary()
	return nil
}

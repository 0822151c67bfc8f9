// Package main replays recorded telemetry through the controller and
// reports solve statistics, for tuning weights and budgets without the
// simulator attached.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/pilot"
	"go.viam.com/mpc/refpath"
)

var logger = golog.NewDebugLogger("mpc_replay")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	InputFile  string `flag:"0,usage=telemetry log (one JSON record per line, default stdin)"`
	ConfigFile string `flag:"config,usage=controller config file"`
}

// record is one logged telemetry sample, in the simulator's field names.
type record struct {
	PtsX  []float64 `json:"ptsx"`
	PtsY  []float64 `json:"ptsy"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Psi   float64   `json:"psi"`
	Speed float64   `json:"speed"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		read, err := config.Read(argsParsed.ConfigFile)
		if err != nil {
			return err
		}
		cfg = *read
	}

	input := os.Stdin
	if argsParsed.InputFile != "" {
		input, err = os.Open(argsParsed.InputFile)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, input.Close())
		}()
	}

	solver, err := mpc.NewSolver(cfg, logger)
	if err != nil {
		return err
	}
	p, err := pilot.New(cfg, solver, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, p.Close(ctx))
	}()

	var records, commands int
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		records++
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warnw("skipping unparsable record", "record", records, "error", err)
			continue
		}
		if len(rec.PtsX) != len(rec.PtsY) {
			logger.Warnw("skipping record with mismatched waypoints", "record", records)
			continue
		}
		tel := pilot.Telemetry{
			Waypoints: make([]r2.Point, len(rec.PtsX)),
			Pose:      refpath.Pose{X: rec.X, Y: rec.Y, Heading: rec.Psi},
			Speed:     rec.Speed,
		}
		for i := range rec.PtsX {
			tel.Waypoints[i] = r2.Point{X: rec.PtsX[i], Y: rec.PtsY[i]}
		}
		cmd, err := p.Cycle(ctx, tel)
		if err != nil {
			logger.Warnw("cycle skipped", "record", records, "error", err)
			continue
		}
		commands++
		logger.Debugw("command", "record", records,
			"steering", cmd.Steering, "throttle", cmd.Throttle)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	logger.Infow("replay done", "records", records, "commands", commands)
	return nil
}

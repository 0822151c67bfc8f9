// Package server implements the entry point for the path tracking
// controller: configuration, solver, pilot, and the simulator-facing web
// server, wired together and run until shutdown.
package server

import (
	"context"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/mpc/canbridge"
	"go.viam.com/mpc/config"
	"go.viam.com/mpc/mpc"
	"go.viam.com/mpc/pilot"
	"go.viam.com/mpc/web"
)

// defaultPort is the port the simulator dials.
var defaultPort = 4567

// Arguments for the command.
type Arguments struct {
	ConfigFile string            `flag:"config,usage=controller config file"`
	Port       utils.NetPortFlag `flag:"port,usage=port to listen on"`
}

// RunServer runs the controller server until the context is done.
func RunServer(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Port == 0 {
		argsParsed.Port = utils.NetPortFlag(defaultPort)
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		read, err := config.Read(argsParsed.ConfigFile)
		if err != nil {
			return err
		}
		cfg = *read
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

	if cfg.CAN.Enabled {
		var bridge *canbridge.Bridge
		bridge, err = canbridge.New(ctx, cfg.CAN, logger)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, bridge.Close())
		}()
		p.AttachSink(bridge)
	}

	return web.NewServer(p, logger).Run(ctx, int(argsParsed.Port))
}

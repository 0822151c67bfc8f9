//go:build windows || no_cgo

package mpc

import (
	"github.com/edaniels/golog"

	"go.viam.com/mpc/config"
)

func newNLOptSolver(cfg config.Config, logger golog.Logger) (Solver, error) {
	return nil, errNLOptUnavailable
}

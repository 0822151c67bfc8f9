// Package main runs the path tracking controller against the driving
// simulator.
package main

import (
	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"go.viam.com/mpc/web/server"
)

var logger = golog.NewDevelopmentLogger("mpc_server")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}

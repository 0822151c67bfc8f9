package mpc

import "github.com/pkg/errors"

// ErrOptimizationFailed reports that a solve produced no usable plan. The
// caller decides what to actuate instead.
var ErrOptimizationFailed = errors.New("trajectory optimization failed")

var errNLOptUnavailable = errors.New("nlopt backend is not available in this build")

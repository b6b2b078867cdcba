package deploy

import "errors"

var (
	// ErrDeployInProgress means another deployment holds the pipeline
	// lock. The caller should retry after the active deployment ends.
	ErrDeployInProgress = errors.New("deployment already in progress")

	// ErrAlreadyFinalized means a terminal deployment record was asked
	// to transition again.
	ErrAlreadyFinalized = errors.New("deployment already finalized")

	// ErrHealthCheckTimeout means readiness was never reported within
	// the configured window.
	ErrHealthCheckTimeout = errors.New("health check timeout")

	// ErrVersionMismatch means the running application reports a
	// different version than the one deployed.
	ErrVersionMismatch = errors.New("deployed version mismatch")
)

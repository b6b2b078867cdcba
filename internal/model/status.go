package model

// Deployment status constants. Transitions are monotonic: a record starts
// as StatusStarted and is updated exactly once to one of the terminal
// statuses below.
const (
	StatusStarted    = "started"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled_back"
)

// Pipeline step status constants.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// TerminalStatus reports whether a deployment status permits no further
// transitions.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

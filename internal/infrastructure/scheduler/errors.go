package scheduler

import "errors"

var (
	// ErrSweeperNotRunning is returned when a sweep is requested on a stopped sweeper
	ErrSweeperNotRunning = errors.New("sweeper is not running")
	// ErrInvalidConfig is returned when the sweeper configuration is invalid
	ErrInvalidConfig = errors.New("invalid sweeper configuration")
)

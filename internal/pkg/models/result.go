package models

import "time"

// AttemptStatus is the outcome of asking one source variant for one window.
type AttemptStatus string

const (
	// StatusSuccess means at least one valid draw in the window.
	StatusSuccess AttemptStatus = "success"
	// StatusEmpty means the payload was understood but held no valid draw in the window.
	StatusEmpty AttemptStatus = "empty"
	// StatusHTTPError means the transport gave up after its retries.
	StatusHTTPError AttemptStatus = "http_error"
	// StatusParseError means no extraction strategy recognized the payload.
	StatusParseError AttemptStatus = "parse_error"
)

// Attempt records one variant tried for a window.
type Attempt struct {
	Game     Game
	Window   string
	Variant  string
	Status   AttemptStatus
	Strategy string
	Draws    int
	Rejected int
	Duration time.Duration
	Err      error
}

// WindowResult is the outcome of resolving one game for one window.
// Err is set when every variant was exhausted; Draws is then empty.
type WindowResult struct {
	Game     Game
	Window   Window
	Variant  string
	Draws    []Draw
	Attempts []Attempt
	Err      error
}

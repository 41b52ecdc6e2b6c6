// Package process tracks named, long-running dev server processes spawned
// on behalf of the agent. The Manager owns the registry: all starts, stops,
// and kills route through it, so an OS handle is never leaked or
// double-released.
package process

import (
	"time"
)

// Info is the externally visible metadata for a managed process. The OS
// handle never leaves this package.
type Info struct {
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Dir       string    `json:"dir"`
	PID       int       `json:"pid"`
	Port      int       `json:"port,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Uptime returns how long the process has been running.
func (i Info) Uptime() time.Duration {
	return time.Since(i.StartedAt).Round(time.Millisecond)
}

// StopResult summarizes a stop operation.
type StopResult struct {
	Name   string        `json:"name"`
	Uptime time.Duration `json:"uptime"`
	// Forced is true when the graceful window elapsed and the process had
	// to be killed.
	Forced bool `json:"forced"`
}

// Health is a cheap diagnostic snapshot of the registry.
type Health struct {
	Status  string                   `json:"status"`
	Count   int                      `json:"count"`
	Uptimes map[string]time.Duration `json:"uptimes,omitempty"`
}

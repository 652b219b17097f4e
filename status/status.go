// Package status defines the verbosity ladder and the reporter contract
// shared by all introspectable components.
package status

import "github.com/hupe1980/eventgo/data"

// Verbosity selects how much detail a status record carries. Higher levels
// strictly add fields, never remove them.
type Verbosity int

const (
	// Terse reports identity only.
	Terse Verbosity = iota
	// Info adds configuration and lifecycle state.
	Info
	// Detailed adds cumulative counters.
	Detailed
	// Debug adds internals useful only for troubleshooting.
	Debug
)

// String returns the verbosity name.
func (v Verbosity) String() string {
	switch v {
	case Terse:
		return "terse"
	case Info:
		return "info"
	case Detailed:
		return "detailed"
	case Debug:
		return "debug"
	}
	return "unknown"
}

// Reporter is implemented by components that answer status queries with a
// structured record.
type Reporter interface {
	Status(v Verbosity) data.Data
}

// Entry builds one named field of a status record.
func Entry(name string, value data.Data) data.MapEntry {
	return data.MapEntry{Key: data.Str(name), Value: value}
}

// Record builds a status record from named fields, preserving order.
func Record(entries ...data.MapEntry) data.Data {
	return data.Map(entries...)
}

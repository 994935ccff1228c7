// Package filestore implements the sharded directory storage engine
// for kvstash.
package filestore

import "fmt"

// FlushMode selects when written entries are fsynced.
type FlushMode int

const (
	// FlushAlways fsyncs after every write. The default.
	FlushAlways FlushMode = iota

	// FlushManual defers all fsyncs to Flush and Close. Writes are
	// visible to reads immediately; durability waits for the caller.
	FlushManual

	// FlushTimed fsyncs all held handles on a background ticker
	// running every Config.FlushInterval.
	FlushTimed
)

// String returns the config-file spelling of the mode.
func (m FlushMode) String() string {
	switch m {
	case FlushAlways:
		return "always"
	case FlushManual:
		return "manual"
	case FlushTimed:
		return "timed"
	default:
		return fmt.Sprintf("FlushMode(%d)", int(m))
	}
}

// ParseFlushMode converts a config string into a FlushMode. The empty
// string selects FlushAlways.
func ParseFlushMode(s string) (FlushMode, error) {
	switch s {
	case "always", "":
		return FlushAlways, nil
	case "manual":
		return FlushManual, nil
	case "timed":
		return FlushTimed, nil
	default:
		return 0, fmt.Errorf("filestore: unknown flush mode %q", s)
	}
}

package collector

// State is the phase of the collector's loop.
type State int32

const (
	// StateIdle waits for the next tick.
	StateIdle State = iota
	// StateCollecting reads the source.
	StateCollecting
	// StateExporting hands a snapshot to the exporter, retries included.
	StateExporting
	// StateStopped is entered once Run has finished its final flush.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateExporting:
		return "exporting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

package domain

// RestoreState is the coordination state shared by everything that writes
// to or refreshes from a document while a restore may be running.
type RestoreState int32

const (
	// RestoreIdle means no restore is running
	RestoreIdle RestoreState = iota
	// RestoreRestoring means the restored document is being written
	RestoreRestoring
	// RestoreFlushing means the write landed and dependent state is being updated
	RestoreFlushing
)

// String returns the state name used in logs
func (s RestoreState) String() string {
	switch s {
	case RestoreIdle:
		return "idle"
	case RestoreRestoring:
		return "restoring"
	case RestoreFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

package recorder

// State is the per-camera recording state.
type State int32

const (
	StateIdle State = iota
	StateSuspending
	StateRecording
	StateResuming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSuspending:
		return "suspending"
	case StateRecording:
		return "recording"
	case StateResuming:
		return "resuming"
	default:
		return "unknown"
	}
}

package pipeline

// State is the lifecycle state of the processing loop.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateStopping
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Stage is one step of per-frame processing.
type Stage int

const (
	StageAcquire Stage = iota
	StageOverlay
	StageDetect
	StageIdentify
	StagePresent
)

func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageOverlay:
		return "overlay"
	case StageDetect:
		return "detect"
	case StageIdentify:
		return "identify"
	case StagePresent:
		return "present"
	default:
		return "unknown"
	}
}

package stream

// State is a step of the camera session lifecycle.
type State int

const (
	Idle State = iota
	Starting
	Streaming
	Backoff // waiting after a failed frame, only entered from Streaming
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Streaming:
		return "streaming"
	case Backoff:
		return "backoff"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

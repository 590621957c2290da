package telephony

// State is a call session's lifecycle position. Sessions move strictly
// forward: Ringing → Answered → Streaming → Terminating → Ended.
// Terminating may be entered from any earlier state; Ended is terminal.
type State int32

const (
	Ringing State = iota
	Answered
	Streaming
	Terminating
	Ended
)

func (s State) String() string {
	switch s {
	case Ringing:
		return "ringing"
	case Answered:
		return "answered"
	case Streaming:
		return "streaming"
	case Terminating:
		return "terminating"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// canTransition reports whether from → to is a legal forward move.
func canTransition(from, to State) bool {
	if from == Ended {
		return false
	}
	switch to {
	case Answered:
		return from == Ringing
	case Streaming:
		return from == Answered
	case Terminating:
		return from < Terminating
	case Ended:
		return from == Terminating
	}
	return false
}

// EndReason records why a session reached Terminating.
type EndReason string

const (
	ReasonHangup      EndReason = "hangup"
	ReasonNoAnswer    EndReason = "no_answer"
	ReasonTimeout     EndReason = "timeout"
	ReasonStreamError EndReason = "stream_error"
	ReasonResolved    EndReason = "resolved"
	ReasonError       EndReason = "error"
	ReasonShutdown    EndReason = "shutdown"
)

package worker

// EventKind identifies what a search worker is reporting
type EventKind int

const (
	// EventProgress carries a batch of attempts that found no match
	EventProgress EventKind = iota
	// EventResult carries a matching address and its private key
	EventResult
	// EventFault reports an unrecoverable worker error
	EventFault
	// EventExit is the last event a worker ever sends
	EventExit
)

// String returns a string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventResult:
		return "result"
	case EventFault:
		return "fault"
	case EventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is a single report from a search worker. Workers for all jobs share
// one channel, so whoever owns the receiving end observes every report in a
// single total order; when two workers race to a result, the channel decides
// who was first.
type Event struct {
	Kind     EventKind
	JobID    string
	WorkerID int

	// Attempts is the delta since this worker's previous event, never a
	// running total
	Attempts int64

	// Address and PrivateKey are set on EventResult only
	Address    string
	PrivateKey string

	// Err is set on EventFault only
	Err error
}

package link

// Event is an internal lifecycle trigger, already translated from whatever
// vocabulary the aggregator or the user-facing API speaks.
type Event int

const (
	EventUnknown Event = iota
	EventConnectInitiated
	EventConnecting
	EventConnected
	EventFailed
	EventRevoked
	EventExpired
	EventDisconnected
	EventDataAvailable
)

var eventNames = map[Event]string{
	EventUnknown:          "unknown",
	EventConnectInitiated: "connect_initiated",
	EventConnecting:       "connecting",
	EventConnected:        "connected",
	EventFailed:           "failed",
	EventRevoked:          "revoked",
	EventExpired:          "expired",
	EventDisconnected:     "disconnected",
	EventDataAvailable:    "data_available",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Transition returns the status a link in current moves to on ev. It is a
// pure assignment: applying the same event twice yields the same status.
//
// revoked and expired never change except that a user disconnect on an
// expired link records revoked. error recovers to connected.
func Transition(current Status, ev Event) Status {
	if current.IsTerminal() {
		if ev == EventDisconnected {
			return StatusRevoked
		}
		return current
	}

	switch ev {
	case EventConnectInitiated:
		if current == "" {
			return StatusPending
		}
		return current
	case EventConnecting:
		if current == StatusPending || current == StatusConnecting {
			return StatusConnecting
		}
		return current
	case EventConnected:
		return StatusConnected
	case EventFailed:
		return StatusError
	case EventRevoked, EventDisconnected:
		return StatusRevoked
	case EventExpired:
		return StatusExpired
	default:
		return current
	}
}

// TriggersSync reports whether the event means the aggregator has data the
// engine should fetch.
func (e Event) TriggersSync() bool {
	return e == EventConnected || e == EventDataAvailable
}

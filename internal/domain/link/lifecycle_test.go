package link

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		event   Event
		want    Status
	}{
		{"new link is pending", "", EventConnectInitiated, StatusPending},
		{"connect initiated does not reset", StatusConnected, EventConnectInitiated, StatusConnected},
		{"pending to connecting", StatusPending, EventConnecting, StatusConnecting},
		{"connecting stays connecting", StatusConnecting, EventConnecting, StatusConnecting},
		{"connecting ignored once connected", StatusConnected, EventConnecting, StatusConnected},
		{"connecting ignored from error", StatusError, EventConnecting, StatusError},
		{"pending to connected", StatusPending, EventConnected, StatusConnected},
		{"connecting to connected", StatusConnecting, EventConnected, StatusConnected},
		{"connected is idempotent", StatusConnected, EventConnected, StatusConnected},
		{"error recovers", StatusError, EventConnected, StatusConnected},
		{"connected fails", StatusConnected, EventFailed, StatusError},
		{"pending fails", StatusPending, EventFailed, StatusError},
		{"connected revoked", StatusConnected, EventRevoked, StatusRevoked},
		{"error revoked", StatusError, EventRevoked, StatusRevoked},
		{"connected expired", StatusConnected, EventExpired, StatusExpired},
		{"user disconnect", StatusConnected, EventDisconnected, StatusRevoked},
		{"disconnect pending", StatusPending, EventDisconnected, StatusRevoked},
		{"data available keeps status", StatusConnected, EventDataAvailable, StatusConnected},
		{"unknown keeps status", StatusConnecting, EventUnknown, StatusConnecting},

		{"revoked ignores connected", StatusRevoked, EventConnected, StatusRevoked},
		{"revoked ignores failed", StatusRevoked, EventFailed, StatusRevoked},
		{"revoked ignores expired", StatusRevoked, EventExpired, StatusRevoked},
		{"revoked disconnect", StatusRevoked, EventDisconnected, StatusRevoked},
		{"expired ignores connected", StatusExpired, EventConnected, StatusExpired},
		{"expired ignores revoked event", StatusExpired, EventRevoked, StatusExpired},
		{"expired disconnect records revoked", StatusExpired, EventDisconnected, StatusRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transition(tt.current, tt.event)
			if got != tt.want {
				t.Errorf("Transition(%q, %s) = %q, want %q", tt.current, tt.event, got, tt.want)
			}
			if again := Transition(got, tt.event); tt.event != EventConnectInitiated && again != got {
				t.Errorf("Transition is not idempotent: second %s moved %q to %q", tt.event, got, again)
			}
		})
	}
}

func TestTransition_TerminalNeverLeavesTerminal(t *testing.T) {
	events := []Event{
		EventUnknown, EventConnectInitiated, EventConnecting, EventConnected, EventFailed,
		EventRevoked, EventExpired, EventDisconnected, EventDataAvailable,
	}
	for _, current := range []Status{StatusRevoked, StatusExpired} {
		for _, ev := range events {
			if got := Transition(current, ev); !got.IsTerminal() {
				t.Errorf("Transition(%q, %s) = %q, left terminal status", current, ev, got)
			}
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status    Status
		terminal  bool
		errorLike bool
	}{
		{StatusPending, false, false},
		{StatusConnecting, false, false},
		{StatusConnected, false, false},
		{StatusError, false, true},
		{StatusRevoked, true, true},
		{StatusExpired, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Errorf("%q should be valid", tt.status)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.IsErrorLike(); got != tt.errorLike {
				t.Errorf("IsErrorLike() = %v, want %v", got, tt.errorLike)
			}
		})
	}

	if Status("paused").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestEvent_TriggersSync(t *testing.T) {
	if !EventConnected.TriggersSync() || !EventDataAvailable.TriggersSync() {
		t.Error("connected and data available should trigger a sync")
	}
	if EventFailed.TriggersSync() || EventRevoked.TriggersSync() || EventUnknown.TriggersSync() {
		t.Error("failure events should not trigger a sync")
	}
}

package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ofsync/internal/domain/link"
)

type fakeMessenger struct {
	topic string
	msgs  []Message
	err   error
}

func (f *fakeMessenger) SendToTopic(ctx context.Context, topic string, msg Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestService_LinkStatusChanged(t *testing.T) {
	tests := []struct {
		name      string
		status    link.Status
		wantSent  bool
		wantTitle string
	}{
		{"error", link.StatusError, true, "Bank connection needs attention"},
		{"revoked", link.StatusRevoked, true, "Bank connection removed"},
		{"expired", link.StatusExpired, true, "Bank consent expired"},
		{"connected", link.StatusConnected, false, ""},
		{"pending", link.StatusPending, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{}
			svc := NewService(m)

			l := &link.Link{ID: "link-1", UserID: "user-9", Status: tt.status, InstitutionName: "Banco Azul"}
			if err := svc.LinkStatusChanged(context.Background(), l); err != nil {
				t.Fatalf("LinkStatusChanged() error = %v", err)
			}

			if !tt.wantSent {
				if len(m.msgs) != 0 {
					t.Errorf("expected no message, got %d", len(m.msgs))
				}
				return
			}
			if len(m.msgs) != 1 {
				t.Fatalf("expected 1 message, got %d", len(m.msgs))
			}
			msg := m.msgs[0]
			if m.topic != "user-user-9" {
				t.Errorf("topic = %q, want user-user-9", m.topic)
			}
			if msg.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", msg.Title, tt.wantTitle)
			}
			if !strings.Contains(msg.Body, "Banco Azul") {
				t.Errorf("body = %q, want institution name", msg.Body)
			}
			if msg.Data["link_id"] != "link-1" || msg.Data["status"] != string(tt.status) || msg.Data["type"] != TypeLinkEvent {
				t.Errorf("data = %v", msg.Data)
			}
		})
	}
}

func TestService_LinkStatusChanged_Disabled(t *testing.T) {
	svc := NewService(nil)
	if svc.Enabled() {
		t.Error("service without messenger should be disabled")
	}
	l := &link.Link{ID: "link-1", UserID: "u", Status: link.StatusError}
	if err := svc.LinkStatusChanged(context.Background(), l); err != nil {
		t.Errorf("LinkStatusChanged() error = %v, want nil when disabled", err)
	}
}

func TestService_LinkStatusChanged_MessengerError(t *testing.T) {
	m := &fakeMessenger{err: errors.New("fcm down")}
	svc := NewService(m)

	l := &link.Link{ID: "link-1", UserID: "u", Status: link.StatusRevoked}
	if err := svc.LinkStatusChanged(context.Background(), l); err == nil {
		t.Error("LinkStatusChanged() should surface messenger errors")
	}
}

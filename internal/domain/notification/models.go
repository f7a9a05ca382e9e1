package notification

import "ofsync/internal/domain/link"

// Route is the client-side screen a link notification opens.
const (
	RouteAccounts = "accounts"
	TypeLinkEvent = "open_finance_link"
)

// Message is a platform-neutral push payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type template struct {
	title string
	body  string
}

var statusTemplates = map[link.Status]template{
	link.StatusError: {
		title: "Bank connection needs attention",
		body:  "We could not refresh %s. Reconnect to keep your data up to date.",
	},
	link.StatusRevoked: {
		title: "Bank connection removed",
		body:  "Access to %s was revoked. No new data will be imported.",
	},
	link.StatusExpired: {
		title: "Bank consent expired",
		body:  "Your consent for %s has expired. Connect again to resume syncing.",
	},
}

// Topic is the per-user FCM topic clients subscribe to.
func Topic(userID string) string {
	return "user-" + userID
}

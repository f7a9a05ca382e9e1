package openfinance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"ofsync/internal/domain/link"
	ofclient "ofsync/internal/infrastructure/openfinance"
	"ofsync/internal/shared/logger"
)

// Webhook outcomes
const (
	OutcomeApplied      = "applied"
	OutcomeUnchanged    = "unchanged"
	OutcomeIgnored      = "ignored"
	OutcomeUncorrelated = "uncorrelated"
)

const signaturePrefix = "sha256="

// eventMap translates the aggregator's event vocabulary.
var eventMap = map[string]link.Event{
	"item/created":            link.EventConnected,
	"item/login_succeeded":    link.EventConnected,
	"item/historical_ready":   link.EventConnected,
	"item/waiting_user_input": link.EventConnecting,
	"item/login_started":      link.EventConnecting,
	"item/error":              link.EventFailed,
	"item/login_error":        link.EventFailed,
	"item/deleted":            link.EventRevoked,
	"consent/revoked":         link.EventRevoked,
	"consent/expired":         link.EventExpired,
	"item/updated":            link.EventDataAvailable,
	"transactions/created":    link.EventDataAvailable,
	"transactions/updated":    link.EventDataAvailable,
}

// MapEvent returns the lifecycle event for an aggregator event name, or
// EventUnknown.
func MapEvent(name string) link.Event {
	if ev, ok := eventMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return ev
	}
	return link.EventUnknown
}

// WebhookEvent is the aggregator's webhook payload. An empty Event maps to
// EventUnknown.
type WebhookEvent struct {
	Event           string        `json:"event"`
	EventID         string        `json:"eventId"`
	ItemID          string        `json:"itemId"`
	ClientUserID    string        `json:"clientUserId"`
	InstitutionName string        `json:"institutionName"`
	Error           *WebhookError `json:"error"`

	// ConsentExpiresAt is nil when the payload omits the field or carries a
	// value ParseWebhookEvent could not read; the latter keeps the raw text
	// in UnparsedConsentExpiry.
	ConsentExpiresAt      *time.Time `json:"-"`
	UnparsedConsentExpiry string     `json:"-"`
}

// WebhookError carries the aggregator's failure detail. A bare string is
// read as the message.
type WebhookError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WebhookError) UnmarshalJSON(data []byte) error {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		*e = WebhookError{Message: msg}
		return nil
	}
	type plain WebhookError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = WebhookError(p)
	return nil
}

// WebhookResult describes what processing did with one event.
type WebhookResult struct {
	Outcome string      `json:"outcome"`
	LinkID  string      `json:"link_id,omitempty"`
	Status  link.Status `json:"status,omitempty"`
}

// ParseWebhookEvent decodes a raw webhook body. Only bodies that are not a
// JSON object of the expected field types fail; missing fields and an
// unreadable consent expiry do not.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		WebhookEvent
		ConsentExpiresAt json.RawMessage `json:"consentExpiresAt"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := payload.WebhookEvent
	if raw := consentExpiryText(payload.ConsentExpiresAt); raw != "" {
		if t, err := ofclient.ParseTimestamp(raw); err == nil {
			ev.ConsentExpiresAt = &t
		} else {
			ev.UnparsedConsentExpiry = raw
		}
	}
	return &ev, nil
}

// consentExpiryText returns the expiry as text whether it arrived as a JSON
// string or a bare number; null yields "".
func consentExpiryText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// WebhookProcessor verifies and applies aggregator webhooks.
type WebhookProcessor struct {
	links    link.Repository
	queue    SyncQueue
	notifier LinkNotifier
	secret   []byte
}

// NewWebhookProcessor creates a webhook processor. An empty secret puts the
// processor in degraded mode where signatures are not checked. notifier may
// be nil.
func NewWebhookProcessor(links link.Repository, queue SyncQueue, notifier LinkNotifier, secret string) *WebhookProcessor {
	return &WebhookProcessor{
		links:    links,
		queue:    queue,
		notifier: notifier,
		secret:   []byte(secret),
	}
}

// SignatureRequired reports whether a webhook secret is configured.
func (p *WebhookProcessor) SignatureRequired() bool {
	return len(p.secret) > 0
}

// Verify checks the hex HMAC-SHA256 of body against signature. It must be
// called before Process and before any side effect.
func (p *WebhookProcessor) Verify(ctx context.Context, body []byte, signature string) error {
	if !p.SignatureRequired() {
		logger.FromContext(ctx).Warn("webhook signature verification skipped: no secret configured")
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrSignatureMissing
	}
	signature = strings.TrimPrefix(strings.ToLower(signature), signaturePrefix)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(got, Sign(p.secret, body)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// Process correlates ev with a link and applies the resulting transition.
// Unknown events and unresolvable links are acknowledged, not errors.
func (p *WebhookProcessor) Process(ctx context.Context, ev *WebhookEvent) (*WebhookResult, error) {
	log, ctx := logger.With(ctx,
		zap.String("event", ev.Event),
		zap.String("event_id", ev.EventID),
		zap.String("item_id", ev.ItemID),
		zap.String("client_user_id", ev.ClientUserID),
	)
	if ev.UnparsedConsentExpiry != "" {
		log.Warn("webhook consent expiry not understood, field dropped",
			zap.String("consent_expires_at", ev.UnparsedConsentExpiry))
	}

	result, err := p.process(ctx, log, ev)
	if err != nil {
		return nil, err
	}

	webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", ev.Event),
		attribute.String("outcome", result.Outcome),
	))
	return result, nil
}

func (p *WebhookProcessor) process(ctx context.Context, log *zap.Logger, ev *WebhookEvent) (*WebhookResult, error) {
	internal := MapEvent(ev.Event)
	if internal == link.EventUnknown {
		log.Info("ignoring unrecognized webhook event")
		return &WebhookResult{Outcome: OutcomeIgnored}, nil
	}

	l, err := p.correlate(ctx, ev)
	if errors.Is(err, link.ErrLinkNotFound) {
		log.Warn("webhook could not be correlated to a link")
		return &WebhookResult{Outcome: OutcomeUncorrelated}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to correlate webhook: %w", err)
	}

	log = log.With(zap.String("link_id", l.ID))
	ctx = logger.ToContext(ctx, log)

	if l.Status.IsTerminal() {
		log.Info("webhook for terminal link ignored", zap.String("status", string(l.Status)))
		return &WebhookResult{Outcome: OutcomeUnchanged, LinkID: l.ID, Status: l.Status}, nil
	}

	next := link.Transition(l.Status, internal)
	update, changed := buildUpdate(l, ev, internal, next)

	effectiveProviderID := l.ProviderLinkID
	if update.ProviderLinkID != nil {
		effectiveProviderID = *update.ProviderLinkID
	}
	if next == link.StatusConnected && effectiveProviderID == "" {
		log.Warn("connected event without provider link id ignored")
		return &WebhookResult{Outcome: OutcomeIgnored, LinkID: l.ID, Status: l.Status}, nil
	}

	outcome := OutcomeUnchanged
	current := l
	if changed {
		updated, err := p.links.UpdateState(ctx, l.ID, update)
		if errors.Is(err, link.ErrLinkTerminal) {
			log.Info("link became terminal concurrently; event not applied")
			return &WebhookResult{Outcome: OutcomeUnchanged, LinkID: l.ID, Status: l.Status}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update link state: %w", err)
		}
		current = updated
		outcome = OutcomeApplied

		log.Info("link state updated",
			zap.String("from", string(l.Status)),
			zap.String("to", string(current.Status)),
		)

		if current.Status != l.Status && current.Status.IsErrorLike() {
			p.notify(ctx, log, current)
		}
	}

	if internal.TriggersSync() && current.Syncable() && p.queue != nil {
		if err := p.queue.EnqueueSync(ctx, current.ID); err != nil {
			log.Error("failed to enqueue sync", zap.Error(err))
		}
	}

	return &WebhookResult{Outcome: outcome, LinkID: current.ID, Status: current.Status}, nil
}

// correlate resolves the link by external reference first, then by the
// provider-assigned item id.
func (p *WebhookProcessor) correlate(ctx context.Context, ev *WebhookEvent) (*link.Link, error) {
	if id, err := uuid.Parse(strings.TrimSpace(ev.ClientUserID)); err == nil {
		l, err := p.links.GetByID(ctx, id.String())
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, link.ErrLinkNotFound) {
			return nil, err
		}
	}

	if ev.ItemID != "" {
		return p.links.GetByProviderLinkID(ctx, ev.ItemID)
	}
	return nil, link.ErrLinkNotFound
}

func (p *WebhookProcessor) notify(ctx context.Context, log *zap.Logger, l *link.Link) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.LinkStatusChanged(ctx, l); err != nil {
		log.Warn("link status notification failed", zap.Error(err))
	}
}

// buildUpdate returns the assignment that brings l in line with the event,
// and whether it differs from what is stored.
func buildUpdate(l *link.Link, ev *WebhookEvent, internal link.Event, next link.Status) (link.StateUpdate, bool) {
	update := link.StateUpdate{Status: next}
	changed := next != l.Status

	if l.ProviderLinkID == "" && ev.ItemID != "" {
		itemID := ev.ItemID
		update.ProviderLinkID = &itemID
		changed = true
	}

	switch next {
	case link.StatusError:
		msg := errorMessage(ev)
		if internal != link.EventFailed {
			msg = l.ErrorMessage
		}
		if msg != l.ErrorMessage {
			update.ErrorMessage = &msg
			changed = true
		}
	case link.StatusConnected:
		if l.ErrorMessage != "" {
			empty := ""
			update.ErrorMessage = &empty
			changed = true
		}
	}

	if name := strings.TrimSpace(ev.InstitutionName); name != "" && name != l.InstitutionName {
		update.InstitutionName = &name
		changed = true
	}

	if ev.ConsentExpiresAt != nil && (l.ConsentExpiresAt == nil || !l.ConsentExpiresAt.Equal(*ev.ConsentExpiresAt)) {
		expires := ev.ConsentExpiresAt.UTC()
		update.ConsentExpiresAt = &expires
		changed = true
	}

	return update, changed
}

func errorMessage(ev *WebhookEvent) string {
	if ev.Error != nil {
		if msg := strings.TrimSpace(ev.Error.Message); msg != "" {
			return msg
		}
		if code := strings.TrimSpace(ev.Error.Code); code != "" {
			return code
		}
	}
	if strings.EqualFold(ev.Event, "item/login_error") {
		return "invalid credentials"
	}
	return "aggregator reported an error"
}

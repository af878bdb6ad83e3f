package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventType is the provider neutral kind of a webhook event.
type EventType string

const (
	EventActivated     EventType = "activated"
	EventCharged       EventType = "charged"
	EventCancelled     EventType = "cancelled"
	EventPaymentFailed EventType = "payment_failed"
	EventLinkPaid      EventType = "link_paid"
	EventIgnored       EventType = "ignored"
)

// Event is a verified, decoded webhook.
type Event struct {
	ID             string
	Type           EventType
	RawType        string // provider event name, e.g. "subscription.charged"
	UserID         string
	Tier           string
	SubscriptionID string
	PaymentID      string
	LinkID         string
	PeriodEnd      time.Time // zero when the provider did not send one
	Reason         string
}

// Ref is the reference stored on the entitlement record for this event.
func (e *Event) Ref() string {
	if e.SubscriptionID != "" {
		return e.SubscriptionID
	}
	return e.LinkID
}

// EventIDFromBody derives a stable id for providers that omit one.
func EventIDFromBody(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Message is a rendered notice ready for delivery.
type Message struct {
	ID        string
	Kind      entitlement.NoticeKind
	UserID    string
	Title     string
	Body      string
	ActionURL string
	CreatedAt time.Time
}

// Renderer turns ledger notices into user facing text.
type Renderer struct {
	catalog *tiers.Catalog
	product string
	baseURL string
}

// NewRenderer builds a renderer. baseURL is used for pricing page links.
func NewRenderer(catalog *tiers.Catalog, product, baseURL string) *Renderer {
	return &Renderer{catalog: catalog, product: product, baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *Renderer) Render(n entitlement.Notice) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		UserID:    n.UserID,
		CreatedAt: n.At,
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	to := r.label(n.ToTier)
	switch n.Kind {
	case entitlement.NoticeUpgrade:
		msg.Title = fmt.Sprintf("Welcome to %s %s", r.product, to)
		msg.Body = fmt.Sprintf("Your plan is now %s. Your usage limits have been refreshed for the new billing cycle.", to)
	case entitlement.NoticeDowngrade:
		msg.Title = fmt.Sprintf("Your %s plan has changed", r.product)
		msg.Body = fmt.Sprintf("You are now on the %s plan. Usage limits for %s apply from today.", to, to)
		msg.ActionURL = r.baseURL + "/pricing"
	case entitlement.NoticePaymentSuccess:
		msg.Title = "Payment received"
		msg.Body = fmt.Sprintf("Thanks! We received your %s payment and your %s plan has been renewed.", r.price(n.ToTier), to)
	case entitlement.NoticePaymentFailed:
		msg.Title = "Payment failed"
		msg.Body = "We could not process your latest payment."
		if n.Reason != "" {
			msg.Body += " Reason: " + n.Reason + "."
		}
		msg.Body += " Please update your payment method to keep your plan."
		msg.ActionURL = r.baseURL + "/pricing"
	case entitlement.NoticeLimitReached:
		msg.Title = "Usage limit reached"
		msg.Body = fmt.Sprintf("You have used all of your %s for this billing cycle on the %s plan. Upgrade to keep going.",
			n.Feature.DisplayName(), to)
		msg.ActionURL = r.baseURL + "/pricing"
	default:
		msg.Title = r.product + " account update"
		msg.Body = string(n.Kind)
	}
	return msg
}

func (r *Renderer) label(tier string) string {
	if t, err := r.catalog.Get(tier); err == nil {
		return t.DisplayName()
	}
	return tier
}

func (r *Renderer) price(tier string) string {
	if t, err := r.catalog.Get(tier); err == nil {
		return t.DisplayPrice()
	}
	return ""
}

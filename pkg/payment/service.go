package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Ledger is the part of entitlement.Ledger the payment flows drive.
type Ledger interface {
	Catalog() *tiers.Catalog
	CheckAndReset(ctx context.Context, userID string) (*entitlement.Record, error)
	TransitionTier(ctx context.Context, userID, tier, ref string) (*entitlement.Record, error)
	RenewCycle(ctx context.Context, userID, tier, ref string, periodEnd time.Time) (*entitlement.Record, bool, error)
	Notify(ctx context.Context, n entitlement.Notice)
}

// Observer receives webhook outcomes for metrics.
type Observer interface {
	WebhookHandled(eventType, outcome string)
}

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeNoop      = "noop"
	OutcomeRejected  = "rejected"
	OutcomeInFlight  = "in_flight"
	OutcomeFailed    = "failed"
)

// Result describes how a webhook was handled.
type Result struct {
	EventID string    `json:"eventId"`
	Type    EventType `json:"type"`
	Outcome string    `json:"outcome"`
}

type nopObserver struct{}

func (nopObserver) WebhookHandled(string, string) {}

// Service turns payment events and user payment actions into ledger calls.
type Service struct {
	ledger   Ledger
	provider Provider
	events   EventLog
	locker   Locker
	observer Observer
	log      *slog.Logger
	cfg      Config
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithEventLog(l EventLog) Option {
	return func(s *Service) {
		if l != nil {
			s.events = l
		}
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewService wires the payment flows. Event log and locker default to the
// in-memory implementations.
func NewService(ledger Ledger, provider Provider, cfg Config, opts ...Option) *Service {
	if ledger == nil {
		panic("payment: ledger is required")
	}
	if provider == nil {
		panic("payment: provider is required")
	}
	s := &Service{
		ledger:   ledger,
		provider: provider,
		events:   NewMemoryEventLog(cfg.EventInFlight, cfg.EventRetain),
		locker:   NewMemoryLocker(),
		observer: nopObserver{},
		log:      logger.Discard(),
		cfg:      cfg,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("payment"))
	return s
}

// HandleWebhook verifies, dedupes and applies one webhook delivery.
// eventID may be empty; a hash of the body is used then.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature, eventID string) (Result, error) {
	ev, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.observer.WebhookHandled("unknown", OutcomeRejected)
		s.log.LogAttrs(ctx, slog.LevelWarn, "webhook rejected", logger.Error(err))
		return Result{Outcome: OutcomeRejected}, err
	}

	ev.ID = eventID
	if ev.ID == "" {
		ev.ID = EventIDFromBody(payload)
	}
	res := Result{EventID: ev.ID, Type: ev.Type}
	log := s.log.With(logger.EventID(ev.ID), logger.EventType(ev.RawType), logger.UserID(ev.UserID))

	if ev.Type == EventIgnored {
		res.Outcome = OutcomeIgnored
		s.observer.WebhookHandled(string(ev.Type), res.Outcome)
		log.LogAttrs(ctx, slog.LevelDebug, "webhook ignored")
		return res, nil
	}
	if ev.UserID == "" {
		res.Outcome = OutcomeRejected
		s.observer.WebhookHandled(string(ev.Type), res.Outcome)
		log.LogAttrs(ctx, slog.LevelError, "webhook without user id")
		return res, fmt.Errorf("%w: no user id in notes", ErrInvalidPayload)
	}

	if err := s.events.Begin(ctx, ev.ID); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEvent):
			res.Outcome = OutcomeDuplicate
			s.observer.WebhookHandled(string(ev.Type), res.Outcome)
			return res, nil
		case errors.Is(err, ErrEventInFlight):
			res.Outcome = OutcomeInFlight
			s.observer.WebhookHandled(string(ev.Type), res.Outcome)
			return res, err
		}
		res.Outcome = OutcomeFailed
		s.observer.WebhookHandled(string(ev.Type), res.Outcome)
		return res, errors.Join(entitlement.ErrStoreUnavailable, err)
	}

	changed, err := s.dispatch(ctx, ev)
	if err != nil {
		if rerr := s.events.Release(ctx, ev.ID); rerr != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to release webhook claim", logger.Error(rerr))
		}
		res.Outcome = OutcomeFailed
		s.observer.WebhookHandled(string(ev.Type), res.Outcome)
		log.LogAttrs(ctx, slog.LevelError, "webhook processing failed", logger.Error(err))
		return res, err
	}
	if err := s.events.Complete(ctx, ev.ID); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to mark webhook done", logger.Error(err))
	}

	res.Outcome = OutcomeProcessed
	if !changed {
		res.Outcome = OutcomeNoop
	}
	s.observer.WebhookHandled(string(ev.Type), res.Outcome)
	log.LogAttrs(ctx, slog.LevelInfo, "webhook handled", slog.String("outcome", res.Outcome))
	return res, nil
}

// dispatch applies ev under the user's lock and reports whether the
// record changed.
func (s *Service) dispatch(ctx context.Context, ev *Event) (bool, error) {
	unlock, err := s.locker.Lock(ctx, ev.UserID)
	if err != nil {
		return false, errors.Join(entitlement.ErrStoreUnavailable, err)
	}
	defer unlock()

	switch ev.Type {
	case EventActivated, EventLinkPaid:
		return s.grant(ctx, ev.UserID, ev.Tier, ev.Ref())

	case EventCharged:
		if ev.Tier == "" {
			return false, fmt.Errorf("%w: charge without tier", ErrInvalidPayload)
		}
		_, changed, err := s.ledger.RenewCycle(ctx, ev.UserID, ev.Tier, ev.SubscriptionID, ev.PeriodEnd)
		return changed, err

	case EventCancelled:
		rec, err := s.ledger.CheckAndReset(ctx, ev.UserID)
		if err != nil {
			return false, err
		}
		if rec.SubscriptionRef != "" && ev.SubscriptionID != "" && rec.SubscriptionRef != ev.SubscriptionID {
			s.log.LogAttrs(ctx, slog.LevelInfo, "ignoring cancellation of a replaced subscription",
				logger.UserID(ev.UserID), slog.String("subscription", ev.SubscriptionID))
			return false, nil
		}
		if !s.ledger.Catalog().IsPaid(rec.Tier) && rec.PaymentStatus != entitlement.StatusActive {
			return false, nil
		}
		if _, err := s.ledger.TransitionTier(ctx, ev.UserID, s.ledger.Catalog().DefaultName(), ev.SubscriptionID); err != nil {
			return false, err
		}
		return true, nil

	case EventPaymentFailed:
		s.ledger.Notify(ctx, entitlement.Notice{
			Kind:   entitlement.NoticePaymentFailed,
			UserID: ev.UserID,
			ToTier: ev.Tier,
			Reason: ev.Reason,
		})
		return false, nil
	}
	return false, nil
}

// grant moves the user to a paid tier unless the record already reflects
// this exact payment.
func (s *Service) grant(ctx context.Context, userID, tier, ref string) (bool, error) {
	if tier == "" {
		return false, fmt.Errorf("%w: no tier in notes", ErrInvalidPayload)
	}
	if !s.ledger.Catalog().IsPaid(tier) {
		if !s.ledger.Catalog().Has(tier) {
			return false, fmt.Errorf("%w: %q", entitlement.ErrUnknownTier, tier)
		}
		return false, fmt.Errorf("%w: %q", ErrPaidTierRequired, tier)
	}

	rec, err := s.ledger.CheckAndReset(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec.Tier == tier && rec.PaymentStatus == entitlement.StatusActive && rec.SubscriptionRef == ref {
		return false, nil
	}
	if _, err := s.ledger.TransitionTier(ctx, userID, tier, ref); err != nil {
		return false, err
	}
	return true, nil
}

// CreatePaymentLink creates a hosted payment page for upgrading userID to
// tierName.
func (s *Service) CreatePaymentLink(ctx context.Context, userID, tierName string) (*PaymentLink, error) {
	if userID == "" {
		return nil, entitlement.ErrMissingUserID
	}
	tier, err := s.ledger.Catalog().Get(tierName)
	if err != nil {
		return nil, err
	}
	if !tier.Paid() {
		return nil, fmt.Errorf("%w: %q", ErrPaidTierRequired, tierName)
	}

	rec, err := s.ledger.CheckAndReset(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.Tier == tier.Name && rec.PaymentStatus == entitlement.StatusActive {
		return nil, ErrAlreadyOnTier
	}

	now := s.clock()
	ref := referenceID(s.cfg.KeySecret, userID, tier.Name, now)
	link, err := s.provider.CreatePaymentLink(ctx, LinkRequest{
		UserID:      userID,
		Tier:        tier.Name,
		Amount:      tier.Price.Amount,
		Currency:    tier.Price.Currency,
		Description: strings.TrimSpace(s.cfg.ProductName + " " + tier.DisplayName() + " Subscription"),
		ReferenceID: ref,
		CallbackURL: s.callbackURL(userID, tier.Name, ref),
		ExpireBy:    now.Add(s.linkExpiry()),
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "payment link creation failed",
			logger.UserID(userID), logger.Tier(tier.Name), logger.Error(err))
		return nil, err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "payment link created",
		logger.UserID(userID), logger.Tier(tier.Name), slog.String("reference_id", ref))
	return link, nil
}

// ConfirmPaymentLink applies a paid payment link from its callback
// parameters. Replaying the same payment returns the current record.
func (s *Service) ConfirmPaymentLink(ctx context.Context, userID string, cb LinkCallback) (*entitlement.Record, error) {
	if userID == "" {
		return nil, entitlement.ErrMissingUserID
	}
	if cb.PaymentID == "" || cb.LinkID == "" {
		return nil, fmt.Errorf("%w: payment and link ids are required", ErrInvalidPayload)
	}
	if err := s.provider.VerifyPaymentLink(cb); err != nil {
		return nil, err
	}
	if cb.Status != "paid" {
		return nil, fmt.Errorf("%w: status %q", ErrPaymentNotCompleted, cb.Status)
	}

	tier := tierFromReference(s.cfg.KeySecret, userID, cb.ReferenceID)
	if tier == "" {
		return nil, fmt.Errorf("%w: payment link was not issued to this user", ErrInvalidPayload)
	}
	if cb.Tier != "" && cb.Tier != tier {
		return nil, fmt.Errorf("%w: tier %q does not match the payment link", ErrInvalidPayload, cb.Tier)
	}

	id := "link:" + cb.PaymentID
	if err := s.events.Begin(ctx, id); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return s.ledger.CheckAndReset(ctx, userID)
		}
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		_ = s.events.Release(ctx, id)
		return nil, errors.Join(entitlement.ErrStoreUnavailable, err)
	}
	defer unlock()

	if _, err := s.grant(ctx, userID, tier, cb.LinkID); err != nil {
		_ = s.events.Release(ctx, id)
		return nil, err
	}
	if err := s.events.Complete(ctx, id); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "failed to mark payment done", logger.Error(err))
	}
	return s.ledger.CheckAndReset(ctx, userID)
}

// CancelSubscription downgrades userID to the default tier, cancelling the
// gateway subscription first when there is one.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*entitlement.Record, error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, errors.Join(entitlement.ErrStoreUnavailable, err)
	}
	defer unlock()

	rec, err := s.ledger.CheckAndReset(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.ledger.Catalog().IsPaid(rec.Tier) {
		return nil, ErrNoSubscription
	}

	if strings.HasPrefix(rec.SubscriptionRef, "sub_") {
		if err := s.provider.CancelSubscription(ctx, rec.SubscriptionRef); err != nil {
			return nil, err
		}
	}
	return s.ledger.TransitionTier(ctx, userID, s.ledger.Catalog().DefaultName(), rec.SubscriptionRef)
}

func (s *Service) linkExpiry() time.Duration {
	if s.cfg.LinkExpiry > 0 {
		return s.cfg.LinkExpiry
	}
	return 24 * time.Hour
}

func (s *Service) callbackURL(userID, tier, ref string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("tier", tier)
	q.Set("referenceId", ref)
	q.Set("proUpgradeSuccess", "true")
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/pricing?" + q.Encode()
}

const referenceTagLen = 10

// referenceID builds "<tier>_sub_<base36 millis><nonce>_<tag>". The tag is
// an HMAC over the owner, the tier and the stamp so a paid link can only be
// confirmed by the user it was created for.
func referenceID(secret, userID, tier string, now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 36) + strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("%s_sub_%s_%s", tier, stamp, referenceTag(secret, userID, tier, stamp))
}

func referenceTag(secret, userID, tier, stamp string) string {
	return Sign(secret, userID, tier, stamp)[:referenceTagLen]
}

// tierFromReference returns the tier a reference was issued for, or "" when
// ref was not issued to userID.
func tierFromReference(secret, userID, ref string) string {
	tier, rest, ok := strings.Cut(ref, "_sub_")
	if !ok || tier == "" {
		return ""
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return ""
	}
	stamp, tag := rest[:i], rest[i+1:]
	if !verify(secret, tag, referenceTag(secret, userID, tier, stamp)) {
		return ""
	}
	return tier
}

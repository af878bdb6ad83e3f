package mongostore

import (
	"time"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

type counterDoc struct {
	Count     int64     `bson:"count"`
	Cap       int64     `bson:"cap"`
	LastReset time.Time `bson:"lastReset"`
}

type recordDoc struct {
	ID              string                `bson:"_id"`
	Tier            string                `bson:"tier"`
	Usage           map[string]counterDoc `bson:"usage"`
	CycleStart      time.Time             `bson:"cycleStart"`
	CycleEnd        *time.Time            `bson:"cycleEnd"`
	PaymentStatus   string                `bson:"paymentStatus"`
	SubscriptionRef string                `bson:"subscriptionRef"`
	Deleted         bool                  `bson:"deleted"`
	UpdatedAt       time.Time             `bson:"updatedAt"`
}

func toDoc(rec *entitlement.Record) recordDoc {
	doc := recordDoc{
		ID:              rec.UserID,
		Tier:            rec.Tier,
		Usage:           make(map[string]counterDoc, len(rec.Usage)),
		CycleStart:      rec.CycleStart.UTC(),
		PaymentStatus:   string(rec.PaymentStatus),
		SubscriptionRef: rec.SubscriptionRef,
		Deleted:         rec.Deleted,
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if rec.CycleEnd != nil {
		end := rec.CycleEnd.UTC()
		doc.CycleEnd = &end
	}
	for f, c := range rec.Usage {
		doc.Usage[string(f)] = counterDoc{Count: c.Count, Cap: c.Cap, LastReset: c.LastReset.UTC()}
	}
	return doc
}

func (d recordDoc) record() (*entitlement.Record, error) {
	status, err := entitlement.ParsePaymentStatus(d.PaymentStatus)
	if err != nil {
		return nil, err
	}
	rec := &entitlement.Record{
		UserID:          d.ID,
		Tier:            d.Tier,
		Usage:           make(map[tiers.Feature]entitlement.UsageCounter, len(d.Usage)),
		CycleStart:      d.CycleStart.UTC(),
		PaymentStatus:   status,
		SubscriptionRef: d.SubscriptionRef,
		Deleted:         d.Deleted,
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.CycleEnd != nil {
		end := d.CycleEnd.UTC()
		rec.CycleEnd = &end
	}
	for f, c := range d.Usage {
		rec.Usage[tiers.Feature(f)] = entitlement.UsageCounter{Count: c.Count, Cap: c.Cap, LastReset: c.LastReset.UTC()}
	}
	return rec, nil
}

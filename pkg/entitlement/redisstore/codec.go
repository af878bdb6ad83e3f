package redisstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

const (
	fieldTier       = "tier"
	fieldCycleStart = "cycle_start"
	fieldCycleEnd   = "cycle_end"
	fieldStatus     = "status"
	fieldRef        = "ref"
	fieldDeleted    = "deleted"
	fieldUpdatedAt  = "updated_at"

	prefixCount = "count:"
	prefixCap   = "cap:"
	prefixReset = "reset:"
)

// encode flattens rec into HSET arguments. An absent cycle end is written
// as an empty string.
func encode(rec *entitlement.Record) []any {
	args := make([]any, 0, 14+len(rec.Usage)*6)

	end := ""
	if rec.CycleEnd != nil {
		end = strconv.FormatInt(rec.CycleEnd.UnixMilli(), 10)
	}
	deleted := "0"
	if rec.Deleted {
		deleted = "1"
	}

	args = append(args,
		fieldTier, rec.Tier,
		fieldCycleStart, rec.CycleStart.UnixMilli(),
		fieldCycleEnd, end,
		fieldStatus, string(rec.PaymentStatus),
		fieldRef, rec.SubscriptionRef,
		fieldDeleted, deleted,
		fieldUpdatedAt, rec.UpdatedAt.UnixMilli(),
	)
	for f, c := range rec.Usage {
		args = append(args,
			prefixCount+string(f), c.Count,
			prefixCap+string(f), c.Cap,
			prefixReset+string(f), c.LastReset.UnixMilli(),
		)
	}
	return args
}

func decode(userID string, h map[string]string) (*entitlement.Record, error) {
	rec := &entitlement.Record{
		UserID:          userID,
		Tier:            h[fieldTier],
		SubscriptionRef: h[fieldRef],
		Deleted:         h[fieldDeleted] == "1",
		Usage:           make(map[tiers.Feature]entitlement.UsageCounter),
	}

	status, err := entitlement.ParsePaymentStatus(h[fieldStatus])
	if err != nil {
		return nil, err
	}
	rec.PaymentStatus = status

	if rec.CycleStart, err = parseMillis(h[fieldCycleStart]); err != nil {
		return nil, fmt.Errorf("cycle start: %w", err)
	}
	if rec.UpdatedAt, err = parseMillis(h[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("updated at: %w", err)
	}
	if v := h[fieldCycleEnd]; v != "" {
		end, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("cycle end: %w", err)
		}
		rec.CycleEnd = &end
	}

	for field, v := range h {
		name, ok := strings.CutPrefix(field, prefixCount)
		if !ok {
			continue
		}
		f := tiers.Feature(name)
		c := entitlement.UsageCounter{}
		if c.Count, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("count %s: %w", f, err)
		}
		if c.Cap, err = strconv.ParseInt(h[prefixCap+name], 10, 64); err != nil {
			return nil, fmt.Errorf("cap %s: %w", f, err)
		}
		if c.LastReset, err = parseMillis(h[prefixReset+name]); err != nil {
			return nil, fmt.Errorf("reset %s: %w", f, err)
		}
		rec.Usage[f] = c
	}
	return rec, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

package tiers

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Catalog is an immutable set of tiers with a designated default tier
// assigned to new users and to downgrades.
type Catalog struct {
	tiers       map[string]Tier
	defaultTier string
}

// New validates the tiers and builds a catalog. Every tier must declare every
// feature; caps are either >= 0 or Unlimited.
func New(defaultTier string, list ...Tier) (*Catalog, error) {
	c := &Catalog{
		tiers:       make(map[string]Tier, len(list)),
		defaultTier: defaultTier,
	}

	var errs []error
	for _, t := range list {
		if t.Name == "" {
			errs = append(errs, errors.New("tier name is empty"))
			continue
		}
		if _, dup := c.tiers[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tier %q declared twice", t.Name))
			continue
		}
		if t.BillingCycleMonths < 1 {
			errs = append(errs, fmt.Errorf("tier %q: billing cycle must be at least one month", t.Name))
		}
		if t.Price.Amount < 0 {
			errs = append(errs, fmt.Errorf("tier %q: negative price", t.Name))
		}
		if t.Paid() && t.Price.Currency == "" {
			errs = append(errs, fmt.Errorf("tier %q: paid tier needs a currency", t.Name))
		}
		for _, f := range allFeatures {
			v, ok := t.Caps[f]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("tier %q: missing cap for %s", t.Name, f))
			case v < 0 && v != Unlimited:
				errs = append(errs, fmt.Errorf("tier %q: invalid cap %d for %s", t.Name, v, f))
			}
		}
		for f := range t.Caps {
			if !f.Valid() {
				errs = append(errs, fmt.Errorf("tier %q: %w %q", t.Name, ErrUnknownFeature, f))
			}
		}
		c.tiers[t.Name] = t.clone()
	}

	if _, ok := c.tiers[defaultTier]; !ok {
		errs = append(errs, fmt.Errorf("default tier %q is not declared", defaultTier))
	} else if c.tiers[defaultTier].Paid() {
		errs = append(errs, fmt.Errorf("default tier %q must be free", defaultTier))
	}

	if len(errs) > 0 {
		return nil, errors.Join(ErrInvalidCatalog, errors.Join(errs...))
	}
	return c, nil
}

// Get returns a copy of the named tier or ErrUnknownTier.
func (c *Catalog) Get(name string) (Tier, error) {
	t, ok := c.tiers[name]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return t.clone(), nil
}

// Has reports whether name is a known tier.
func (c *Catalog) Has(name string) bool {
	_, ok := c.tiers[name]
	return ok
}

// Default returns the tier assigned to new and downgraded users.
func (c *Catalog) Default() Tier {
	return c.tiers[c.defaultTier].clone()
}

// DefaultName is the key of the default tier.
func (c *Catalog) DefaultName() string {
	return c.defaultTier
}

// IsPaid reports whether name is a known tier with a non-zero price.
func (c *Catalog) IsPaid(name string) bool {
	t, ok := c.tiers[name]
	return ok && t.Paid()
}

// Names lists tiers ordered by price, cheapest first.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tiers))
	for name := range c.tiers {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if r := c.Compare(a, b); r != 0 {
			return r
		}
		return cmp.Compare(a, b)
	})
	return names
}

// Compare orders two tiers by price: negative when a is cheaper than b,
// positive when a is more expensive, zero when equal or unknown.
// A positive Compare(to, from) classifies a transition as an upgrade.
func (c *Catalog) Compare(a, b string) int {
	ta, okA := c.tiers[a]
	tb, okB := c.tiers[b]
	if !okA || !okB {
		return 0
	}
	return cmp.Compare(ta.Price.Amount, tb.Price.Amount)
}

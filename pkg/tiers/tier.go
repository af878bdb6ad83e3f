package tiers

import (
	"maps"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unlimited marks a feature without a quota (-1 keeps it storable as an integer).
const Unlimited int64 = -1

// Money is an amount in the smallest currency unit, e.g. 59900 paise.
type Money struct {
	Amount   int64
	Currency string // ISO 4217
}

// Tier describes a subscription level and the caps it grants per cycle.
type Tier struct {
	Name               string // catalog key: "free", "pro"
	Label              string // display label: "Free", "Pro"
	BillingCycleMonths int
	Price              Money
	Caps               map[Feature]int64
}

// Cap returns the snapshot value to copy into a usage counter.
// Features missing from the tier are treated as a zero quota.
func (t Tier) Cap(f Feature) int64 {
	if c, ok := t.Caps[f]; ok {
		return c
	}
	return 0
}

// Paid reports whether the tier costs money.
func (t Tier) Paid() bool {
	return t.Price.Amount > 0
}

// DisplayName falls back to a capitalised key when no label is configured.
func (t Tier) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	if t.Name == "" {
		return ""
	}
	return strings.ToUpper(t.Name[:1]) + t.Name[1:]
}

// DisplayPrice formats the price with its currency symbol, e.g. "₹ 599.00".
// Free tiers render as "Free".
func (t Tier) DisplayPrice() string {
	if !t.Paid() {
		return "Free"
	}
	unit, err := currency.ParseISO(t.Price.Currency)
	if err != nil {
		return formatMinor(t.Price.Amount, 2) + " " + t.Price.Currency
	}
	scale, _ := currency.Standard.Rounding(unit)
	amount := float64(t.Price.Amount) / math.Pow10(scale)
	return message.NewPrinter(language.English).Sprint(currency.Symbol(unit.Amount(amount)))
}

func (t Tier) clone() Tier {
	t.Caps = maps.Clone(t.Caps)
	return t
}

func formatMinor(amount int64, scale int) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", scale, float64(amount)/math.Pow10(scale))
}

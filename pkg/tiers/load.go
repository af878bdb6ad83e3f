package tiers

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Default returns the catalog compiled into the binary. It panics if the
// embedded file is invalid, which is caught by tests.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCat, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML catalog:
//
//	default: free
//	tiers:
//	  - name: pro
//	    label: Pro
//	    billingCycleMonths: 1
//	    price: {amount: 59900, currency: INR}
//	    caps:
//	      jobAnalysis: unlimited
func Load(r io.Reader) (*Catalog, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCat, err)
	}

	list := make([]Tier, 0, len(doc.Tiers))
	for _, t := range doc.Tiers {
		tier := Tier{
			Name:               t.Name,
			Label:              t.Label,
			BillingCycleMonths: t.BillingCycleMonths,
			Price:              Money{Amount: t.Price.Amount, Currency: t.Price.Currency},
			Caps:               make(map[Feature]int64, len(t.Caps)),
		}
		for k, v := range t.Caps {
			tier.Caps[Feature(k)] = int64(v)
		}
		list = append(list, tier)
	}
	return New(doc.Default, list...)
}

type catalogFile struct {
	Default string     `yaml:"default"`
	Tiers   []tierFile `yaml:"tiers"`
}

type tierFile struct {
	Name               string              `yaml:"name"`
	Label              string              `yaml:"label"`
	BillingCycleMonths int                 `yaml:"billingCycleMonths"`
	Price              priceFile           `yaml:"price"`
	Caps               map[string]capValue `yaml:"caps"`
}

type priceFile struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// capValue accepts either an integer or the word "unlimited".
type capValue int64

func (c *capValue) UnmarshalYAML(value *yaml.Node) error {
	if strings.EqualFold(strings.TrimSpace(value.Value), "unlimited") {
		*c = capValue(Unlimited)
		return nil
	}
	n, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: cap must be an integer or \"unlimited\": %w", value.Line, err)
	}
	*c = capValue(n)
	return nil
}

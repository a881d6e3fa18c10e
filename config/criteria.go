package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrCriteriaMissing = errors.New("criteria file not found")
	ErrCriteriaInvalid = errors.New("criteria file invalid")
)

// Criteria is the buyer configuration: hard filters, soft caps, weights,
// NLP signal groups, keyword tables and alert thresholds. A loaded value is
// treated as immutable; reloads swap in a new value.
type Criteria struct {
	HardFilters       HardFilters         `yaml:"hard_filters"`
	SoftCaps          SoftCaps            `yaml:"soft_caps"`
	Weights           map[string]float64  `yaml:"weights"`
	NLPSignals        NLPSignals          `yaml:"nlp_signals"`
	FlagKeywords      map[string][]string `yaml:"flag_keywords"`
	CriterionKeywords map[string][]string `yaml:"criterion_keywords"`
	Light             LightKeywords       `yaml:"light"`
	Alerts            AlertThresholds     `yaml:"alerts"`
	InactiveStatuses  []string            `yaml:"inactive_statuses"`
}

type HardFilters struct {
	PriceMax      *float64 `yaml:"price_max"`
	BedroomsMin   *float64 `yaml:"bedrooms_min"`
	BathroomsMin  *float64 `yaml:"bathrooms_min"`
	SqftMin       *float64 `yaml:"sqft_min"`
	Neighborhoods []string `yaml:"neighborhoods"`
}

type SoftCaps struct {
	PriceSoft *float64 `yaml:"price_soft"`
}

// SignalGroup is a named keyword list with a multiplier.
type SignalGroup struct {
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight"`
}

type NLPSignals struct {
	Positive map[string]SignalGroup `yaml:"positive"`
	Negative map[string]SignalGroup `yaml:"negative"`
}

type LightKeywords struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

type AlertThresholds struct {
	NewListing struct {
		ScoreThreshold float64 `yaml:"score_threshold"`
	} `yaml:"new_listing"`
	PriceDrop struct {
		PercentThreshold float64 `yaml:"percent_threshold"`
		DigestThreshold  float64 `yaml:"digest_threshold"`
	} `yaml:"price_drop"`
	DOMStale struct {
		Days int `yaml:"days"`
	} `yaml:"dom_stale"`
}

// LoadCriteria reads and validates the criteria YAML file at path.
func LoadCriteria(path string) (*Criteria, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: %w: %s", ErrCriteriaMissing, path)
		}
		return nil, fmt.Errorf("config: read criteria %q: %w", path, err)
	}
	return ParseCriteria(raw)
}

// ParseCriteria decodes criteria YAML. The document must be a mapping.
func ParseCriteria(raw []byte) (*Criteria, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: %w: %v", ErrCriteriaInvalid, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: %w: top-level document must be a mapping", ErrCriteriaInvalid)
	}

	var c Criteria
	if err := doc.Decode(&c); err != nil {
		return nil, fmt.Errorf("config: %w: %v", ErrCriteriaInvalid, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.normalise()
	return &c, nil
}

func (c *Criteria) validate() error {
	var errs []error
	for name, w := range c.Weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("weight %q is negative (%v)", name, w))
		}
	}
	hf := c.HardFilters
	if hf.PriceMax != nil && c.SoftCaps.PriceSoft != nil && *c.SoftCaps.PriceSoft > *hf.PriceMax {
		errs = append(errs, fmt.Errorf("soft_caps.price_soft (%v) exceeds hard_filters.price_max (%v)",
			*c.SoftCaps.PriceSoft, *hf.PriceMax))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w: %w", ErrCriteriaInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Criteria) applyDefaults() {
	if len(c.Weights) == 0 {
		c.Weights = make(map[string]float64, len(DefaultWeights))
		for k, v := range DefaultWeights {
			c.Weights[k] = v
		}
	}
	if c.FlagKeywords == nil {
		c.FlagKeywords = map[string][]string{}
	}
	for k, v := range DefaultFlagKeywords {
		if _, ok := c.FlagKeywords[k]; !ok {
			c.FlagKeywords[k] = v
		}
	}
	if c.CriterionKeywords == nil {
		c.CriterionKeywords = map[string][]string{}
	}
	for k, v := range DefaultCriterionKeywords {
		if _, ok := c.CriterionKeywords[k]; !ok {
			c.CriterionKeywords[k] = v
		}
	}
	if len(c.Light.Positive) == 0 {
		c.Light.Positive = DefaultLightPositive
	}
	if len(c.Light.Negative) == 0 {
		c.Light.Negative = DefaultLightNegative
	}
	if len(c.InactiveStatuses) == 0 {
		c.InactiveStatuses = []string{"pending", "contingent", "sold", "off market", "off_market"}
	}
	if c.Alerts.NewListing.ScoreThreshold == 0 {
		c.Alerts.NewListing.ScoreThreshold = 76
	}
	if c.Alerts.PriceDrop.PercentThreshold == 0 {
		c.Alerts.PriceDrop.PercentThreshold = 5
	}
	if c.Alerts.PriceDrop.DigestThreshold == 0 {
		c.Alerts.PriceDrop.DigestThreshold = 3
	}
	if c.Alerts.DOMStale.Days == 0 {
		c.Alerts.DOMStale.Days = 45
	}
}

func (c *Criteria) normalise() {
	for name, kws := range c.FlagKeywords {
		c.FlagKeywords[name] = lowerAll(kws)
	}
	for name, kws := range c.CriterionKeywords {
		c.CriterionKeywords[name] = lowerAll(kws)
	}
	for name, g := range c.NLPSignals.Positive {
		g.Keywords = lowerAll(g.Keywords)
		c.NLPSignals.Positive[name] = g
	}
	for name, g := range c.NLPSignals.Negative {
		g.Keywords = lowerAll(g.Keywords)
		c.NLPSignals.Negative[name] = g
	}
	c.Light.Positive = lowerAll(c.Light.Positive)
	c.Light.Negative = lowerAll(c.Light.Negative)
	c.InactiveStatuses = lowerAll(c.InactiveStatuses)
}

// TotalWeight is the sum of all configured base weights.
func (c *Criteria) TotalWeight() float64 {
	var total float64
	for _, w := range c.Weights {
		total += w
	}
	return total
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package alignment

import (
	"fmt"
	"strings"

	apperrors "chaosalign/internal/errors"
)

// RuleKind selects how a rule tests its attribute.
type RuleKind string

const (
	// RuleBelowIndustry fires when the value is below Factor × industry average.
	RuleBelowIndustry RuleKind = "below_industry"
	// RuleAbove fires when the value exceeds Threshold.
	RuleAbove RuleKind = "above"
	// RuleEquals fires when the value equals Threshold.
	RuleEquals RuleKind = "equals"
	// RuleMatches fires when the text value equals Value.
	RuleMatches RuleKind = "matches"
	// RuleTrue fires when the flag is true.
	RuleTrue RuleKind = "true"
	// RuleAllPositive fires when the value and every Also attribute are positive.
	RuleAllPositive RuleKind = "all_positive"
)

// Rule adds Bonus to a criterion when its attribute test passes.
type Rule struct {
	Criterion Criterion `mapstructure:"criterion"`
	Attribute string    `mapstructure:"attribute"`
	Kind      RuleKind  `mapstructure:"kind"`
	Threshold float64   `mapstructure:"threshold"`
	Factor    float64   `mapstructure:"factor"`
	Value     string    `mapstructure:"value"`
	Also      []string  `mapstructure:"also"`
	Bonus     float64   `mapstructure:"bonus"`
}

// DefaultRules returns the standard rule table.
func DefaultRules() []Rule {
	return []Rule{
		// non-harm
		{Criterion: NonHarm, Attribute: "carbon_intensity", Kind: RuleBelowIndustry, Factor: 1.0, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "carbon_intensity", Kind: RuleBelowIndustry, Factor: 0.8, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "renewable_energy_pct", Kind: RuleAbove, Threshold: 50, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "renewable_energy_pct", Kind: RuleAbove, Threshold: 80, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "safety_record", Kind: RuleMatches, Value: "excellent", Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "labor_violations", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "product_recalls", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "safety_ratings", Kind: RuleMatches, Value: "A+", Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "community_investment", Kind: RuleAbove, Threshold: 1.0, Bonus: 0.1},
		{Criterion: NonHarm, Attribute: "negative_externalities", Kind: RuleMatches, Value: "low", Bonus: 0.1},

		// truthfulness
		{Criterion: Truthfulness, Attribute: "audit_opinions", Kind: RuleMatches, Value: "clean", Bonus: 0.15},
		{Criterion: Truthfulness, Attribute: "disclosure_rating", Kind: RuleMatches, Value: "high", Bonus: 0.15},
		{Criterion: Truthfulness, Attribute: "false_advertising_incidents", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: Truthfulness, Attribute: "customer_complaints", Kind: RuleMatches, Value: "low", Bonus: 0.1},
		{Criterion: Truthfulness, Attribute: "regulatory_fines", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: Truthfulness, Attribute: "legal_actions", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: Truthfulness, Attribute: "stakeholder_engagement", Kind: RuleMatches, Value: "excellent", Bonus: 0.1},

		// fair exchange
		{Criterion: FairExchange, Attribute: "price_gouging_incidents", Kind: RuleEquals, Threshold: 0, Bonus: 0.15},
		{Criterion: FairExchange, Attribute: "consumer_protection_violations", Kind: RuleEquals, Threshold: 0, Bonus: 0.15},
		{Criterion: FairExchange, Attribute: "ip_infringement_cases", Kind: RuleEquals, Threshold: 0, Bonus: 0.1},
		{Criterion: FairExchange, Attribute: "patent_litigation", Kind: RuleMatches, Value: "defensive_only", Bonus: 0.1},
		{Criterion: FairExchange, Attribute: "supplier_diversity", Kind: RuleMatches, Value: "high", Bonus: 0.1},
		{Criterion: FairExchange, Attribute: "fair_trade_certified", Kind: RuleTrue, Bonus: 0.1},
		{Criterion: FairExchange, Attribute: "tax_avoidance", Kind: RuleMatches, Value: "minimal", Bonus: 0.1},

		// restraint
		{Criterion: Restraint, Attribute: "ceo_pay_ratio", Kind: RuleBelowIndustry, Factor: 1.0, Bonus: 0.15},
		{Criterion: Restraint, Attribute: "ceo_pay_ratio", Kind: RuleBelowIndustry, Factor: 0.8, Bonus: 0.15},
		{Criterion: Restraint, Attribute: "growth_rate", Kind: RuleAllPositive, Also: []string{"profit_margin"}, Bonus: 0.1},
		{Criterion: Restraint, Attribute: "resource_efficiency", Kind: RuleMatches, Value: "high", Bonus: 0.1},
		{Criterion: Restraint, Attribute: "waste_reduction", Kind: RuleMatches, Value: "excellent", Bonus: 0.1},
		{Criterion: Restraint, Attribute: "business_ethics_training", Kind: RuleTrue, Bonus: 0.1},

		// sharing
		{Criterion: Sharing, Attribute: "employee_ownership_pct", Kind: RuleAbove, Threshold: 10, Bonus: 0.15},
		{Criterion: Sharing, Attribute: "employee_ownership_pct", Kind: RuleAbove, Threshold: 20, Bonus: 0.15},
		{Criterion: Sharing, Attribute: "community_reinvestment_pct", Kind: RuleAbove, Threshold: 2, Bonus: 0.1},
		{Criterion: Sharing, Attribute: "open_source_contributions", Kind: RuleMatches, Value: "high", Bonus: 0.1},
		{Criterion: Sharing, Attribute: "industry_collaboration", Kind: RuleMatches, Value: "active", Bonus: 0.1},
		{Criterion: Sharing, Attribute: "pay_equity_ratio", Kind: RuleAbove, Threshold: 0.8, Bonus: 0.1},
	}
}

// DefaultIndustryAverages returns per-metric industry averages.
func DefaultIndustryAverages() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"carbon_intensity": {
			"technology":    50,
			"finance":       30,
			"healthcare":    40,
			"energy":        200,
			"manufacturing": 150,
		},
		"ceo_pay_ratio": {
			"technology":    150,
			"finance":       200,
			"healthcare":    120,
			"energy":        180,
			"manufacturing": 100,
		},
	}
}

// DefaultHarmfulIndustries lists industry substrings that draw a non-harm penalty.
func DefaultHarmfulIndustries() []string {
	return []string{
		"weapons",
		"tobacco",
		"fossil_fuels",
		"gambling",
		"alcohol",
		"fast_food",
		"pharmaceuticals_monopoly",
	}
}

// validate checks a rule is well formed.
func (r Rule) validate() error {
	if !isCriterion(r.Criterion) {
		return apperrors.NewValidationError("rule.criterion", r.Criterion, "unknown criterion", apperrors.ErrConfigInvalid)
	}
	for _, name := range r.attributes() {
		if name == "" {
			return apperrors.NewValidationError("rule.attribute", r.Attribute, "attribute names must be non-empty", apperrors.ErrConfigInvalid)
		}
	}
	if len(r.Also) > 0 && r.Kind != RuleAllPositive {
		return apperrors.NewValidationError("rule.also", r.Also, "only all_positive rules read extra attributes", apperrors.ErrConfigInvalid)
	}
	switch r.Kind {
	case RuleAbove, RuleEquals, RuleTrue, RuleAllPositive:
	case RuleBelowIndustry:
		if r.Factor <= 0 {
			return apperrors.NewValidationError("rule.factor", r.Factor, "must be positive", apperrors.ErrConfigInvalid)
		}
	case RuleMatches:
		if r.Value == "" {
			return apperrors.NewValidationError("rule.value", r.Attribute, "matches rule needs a value", apperrors.ErrConfigInvalid)
		}
	default:
		return apperrors.NewValidationError("rule.kind", r.Kind, "unknown rule kind", apperrors.ErrConfigInvalid)
	}
	return nil
}

// attributes lists every attribute the rule reads.
func (r Rule) attributes() []string {
	return append([]string{r.Attribute}, r.Also...)
}

// apply evaluates the rule. present reports whether the rule's attribute was
// supplied at all; err reports a malformed value.
func (r Rule) apply(attrs Attributes, industryAvg func(metric string) float64) (bonus float64, present bool, err error) {
	switch r.Kind {
	case RuleMatches:
		s, ok, err := attrs.Text(r.Attribute)
		if err != nil || !ok {
			return 0, ok, err
		}
		if s == r.Value {
			return r.Bonus, true, nil
		}
		return 0, true, nil

	case RuleTrue:
		b, ok, err := attrs.Flag(r.Attribute)
		if err != nil || !ok {
			return 0, ok, err
		}
		if b {
			return r.Bonus, true, nil
		}
		return 0, true, nil
	}

	v, ok, err := attrs.Number(r.Attribute)
	if err != nil || !ok {
		return 0, ok, err
	}

	var fires bool
	switch r.Kind {
	case RuleBelowIndustry:
		fires = v < industryAvg(r.Attribute)*r.Factor
	case RuleAbove:
		fires = v > r.Threshold
	case RuleEquals:
		fires = v == r.Threshold
	case RuleAllPositive:
		fires = v > 0
		for _, other := range r.Also {
			ov, ook, oerr := attrs.Number(other)
			if oerr != nil {
				return 0, true, oerr
			}
			fires = fires && ook && ov > 0
		}
	default:
		return 0, true, fmt.Errorf("rule %s: unknown kind %q", r.Attribute, r.Kind)
	}
	if fires {
		return r.Bonus, true, nil
	}
	return 0, true, nil
}

func isHarmful(industry string, harmful []string) bool {
	industry = strings.ToLower(industry)
	if industry == "" {
		return false
	}
	for _, h := range harmful {
		if h != "" && strings.Contains(industry, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

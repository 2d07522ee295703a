package marketdata

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"chaosalign/internal/alignment"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

// Portfolio is a YAML fixture describing holdings, the market they trade in
// and the attributes of the entities behind them.
//
//	portfolio: main
//	positions:
//	  - {symbol: AAPL, weight: 0.6, quantity: 10, avg_price: 150}
//	quotes:
//	  AAPL: {last_price: 165, volatility: 0.02}
//	entities:
//	  AAPL: {industry: technology, labor_violations: 0}
type Portfolio struct {
	ID        string                          `yaml:"portfolio"`
	Positions []models.Position               `yaml:"positions"`
	Quotes    map[string]models.Quote         `yaml:"quotes"`
	Entities  map[string]alignment.Attributes `yaml:"entities"`
	BarFiles  map[string]string               `yaml:"bars"`
}

// ParsePortfolio decodes a portfolio fixture.
func ParsePortfolio(data []byte) (*Portfolio, error) {
	var p Portfolio
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse portfolio")
	}
	if p.ID == "" {
		p.ID = "default"
	}
	for sym, q := range p.Quotes {
		if q.Symbol == "" {
			q.Symbol = sym
			p.Quotes[sym] = q
		}
	}
	return &p, nil
}

// LoadPortfolio reads a portfolio fixture from disk.
func LoadPortfolio(path string) (*Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = apperrors.ErrDataNotFound
		}
		return nil, apperrors.Wrapf(err, "failed to read portfolio %s", path)
	}
	return ParsePortfolio(data)
}

// Snapshot returns the fixture's quotes as a market snapshot, attaching bar
// history from history where present.
func (p *Portfolio) Snapshot(history map[string][]models.Bar) models.MarketSnapshot {
	snap := make(models.MarketSnapshot, len(p.Quotes))
	for sym, q := range p.Quotes {
		if bars, ok := history[sym]; ok {
			q.History = bars
		}
		snap[sym] = q
	}
	return snap
}

// Symbols returns the held symbols in order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, pos.Symbol)
	}
	return out
}

// StaticAttributes serves entity attributes from memory.
type StaticAttributes map[string]alignment.Attributes

var _ alignment.AttributeProvider = StaticAttributes(nil)

// Attributes returns a copy of an entity's attributes.
func (s StaticAttributes) Attributes(entityID string) (alignment.Attributes, bool) {
	a, ok := s[entityID]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// IDs returns the known entity IDs sorted.
func (s StaticAttributes) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadAttributes reads a YAML map of entity ID to attributes.
func LoadAttributes(path string) (StaticAttributes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = apperrors.ErrDataNotFound
		}
		return nil, apperrors.Wrapf(err, "failed to read attributes %s", path)
	}
	var out map[string]alignment.Attributes
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse attributes")
	}
	return StaticAttributes(out), nil
}

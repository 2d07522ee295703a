// Package alignment rates an entity along five independent conduct
// criteria and folds them into one weighted alignment score in [0, 1].
package alignment

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chaosalign/internal/analysis"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/logging"
)

// Criterion is one scoring axis.
type Criterion string

const (
	NonHarm      Criterion = "non_harm"
	Truthfulness Criterion = "truthfulness"
	FairExchange Criterion = "fair_exchange"
	Restraint    Criterion = "restraint"
	Sharing      Criterion = "sharing"
)

// AllCriteria lists the criteria in reporting order.
var AllCriteria = []Criterion{NonHarm, Truthfulness, FairExchange, Restraint, Sharing}

func isCriterion(c Criterion) bool {
	for _, known := range AllCriteria {
		if c == known {
			return true
		}
	}
	return false
}

// Level is the label attached to an overall score.
type Level string

const (
	LevelTranscendent Level = "Transcendent"
	LevelHighly       Level = "Highly Aligned"
	LevelWell         Level = "Well Aligned"
	LevelModerately   Level = "Moderately Aligned"
	LevelPoorly       Level = "Poorly Aligned"
	LevelMisaligned   Level = "Misaligned"
)

// LevelFor maps an overall score onto its label.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.9:
		return LevelTranscendent
	case score >= 0.8:
		return LevelHighly
	case score >= 0.7:
		return LevelWell
	case score >= 0.6:
		return LevelModerately
	case score >= 0.4:
		return LevelPoorly
	default:
		return LevelMisaligned
	}
}

// Sources reported on scores.
const (
	SourceRules    = "heuristic alignment rules"
	SourceFallback = "fallback"
)

// Score is the alignment assessment of one entity.
type Score struct {
	EntityID  string                `json:"entity_id" msgpack:"entity_id"`
	Name      string                `json:"name" msgpack:"name"`
	Criteria  map[Criterion]float64 `json:"criteria" msgpack:"criteria"`
	Overall   float64               `json:"overall" msgpack:"overall"`
	Level     Level                 `json:"level" msgpack:"level"`
	Fallback  bool                  `json:"fallback" msgpack:"fallback"`
	Error     string                `json:"error,omitempty" msgpack:"error,omitempty"`
	Sources   []string              `json:"sources" msgpack:"sources"`
	Timestamp time.Time             `json:"timestamp" msgpack:"timestamp"`
}

// Config holds scorer configuration.
type Config struct {
	Weights                   map[Criterion]float64         `mapstructure:"weights"`
	Baseline                  float64                       `mapstructure:"baseline"`
	Rules                     []Rule                        `mapstructure:"rules"`
	IndustryAverages          map[string]map[string]float64 `mapstructure:"industry_averages"`
	DefaultIndustryAverage    float64                       `mapstructure:"default_industry_average"`
	HarmfulIndustries         []string                      `mapstructure:"harmful_industries"`
	HarmfulIndustryPenalty    float64                       `mapstructure:"harmful_industry_penalty"`
	PenalizeHarmfulIndustries bool                          `mapstructure:"penalize_harmful_industries"`
	CacheSize                 int                           `mapstructure:"cache_size"`
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		Weights: map[Criterion]float64{
			NonHarm:      0.25,
			Truthfulness: 0.25,
			FairExchange: 0.20,
			Restraint:    0.15,
			Sharing:      0.15,
		},
		Baseline:                  0.5,
		Rules:                     DefaultRules(),
		IndustryAverages:          DefaultIndustryAverages(),
		DefaultIndustryAverage:    100,
		HarmfulIndustries:         DefaultHarmfulIndustries(),
		HarmfulIndustryPenalty:    0.2,
		PenalizeHarmfulIndustries: true,
		CacheSize:                 1000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var total float64
	for _, crit := range AllCriteria {
		w, ok := c.Weights[crit]
		if !ok || w < 0 || !analysis.IsFinite(w) {
			return apperrors.NewValidationError("alignment.weights."+string(crit), w, "must be present and non-negative", apperrors.ErrConfigInvalid)
		}
		total += w
	}
	if math.Abs(total-1) > 1e-9 {
		return apperrors.NewValidationError("alignment.weights", total, "must sum to 1", apperrors.ErrConfigInvalid)
	}
	if c.Baseline < 0 || c.Baseline > 1 {
		return apperrors.NewValidationError("alignment.baseline", c.Baseline, "must be within [0,1]", apperrors.ErrConfigInvalid)
	}
	for _, r := range c.Rules {
		if err := r.validate(); err != nil {
			return err
		}
	}
	if c.CacheSize < 1 {
		return apperrors.NewValidationError("alignment.cache_size", c.CacheSize, "must be positive", apperrors.ErrConfigInvalid)
	}
	return nil
}

// AttributeProvider looks up the attributes of an entity.
type AttributeProvider interface {
	Attributes(entityID string) (Attributes, bool)
}

// Scorer rates entities. It is safe for concurrent use.
type Scorer struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	attrs  map[string]Attributes
	scores map[string]Score
	order  []string
}

var _ AttributeProvider = (*Scorer)(nil)

// NewScorer creates a scorer.
func NewScorer(cfg Config, logger zerolog.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "alignment"),
		now:    time.Now,
		attrs:  make(map[string]Attributes),
		scores: make(map[string]Score),
	}, nil
}

// Score rates one entity. It never fails: malformed attributes produce a
// neutral fallback score carrying the error text, and an entity with no
// recognised attribute gets a neutral fallback score.
func (s *Scorer) Score(entityID string, attrs Attributes) Score {
	score, err := s.evaluate(entityID, attrs)
	if err != nil {
		logging.LogFallback(s.logger, entityID, err)
		score = s.neutral(entityID, attrs)
		score.Error = err.Error()
	}
	s.remember(entityID, attrs, score)
	return score
}

// ScoreBatch rates several entities, keyed by entity ID.
func (s *Scorer) ScoreBatch(entities map[string]Attributes) map[string]Score {
	out := make(map[string]Score, len(entities))
	for id, attrs := range entities {
		out[id] = s.Score(id, attrs)
	}
	return out
}

// Update re-scores an entity with newAttrs layered over the attributes last
// seen for it.
func (s *Scorer) Update(entityID string, newAttrs Attributes) Score {
	s.mu.RLock()
	existing := s.attrs[entityID]
	s.mu.RUnlock()
	return s.Score(entityID, existing.Merge(newAttrs))
}

// Attributes returns the attributes last scored for an entity.
func (s *Scorer) Attributes(entityID string) (Attributes, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attrs[entityID]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Latest returns the last score computed for an entity.
func (s *Scorer) Latest(entityID string) (Score, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scores[entityID]
	return sc, ok
}

func (s *Scorer) remember(entityID string, attrs Attributes, score Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.attrs[entityID]; !seen {
		if len(s.order) >= s.cfg.CacheSize {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.attrs, oldest)
			delete(s.scores, oldest)
		}
		s.order = append(s.order, entityID)
	}
	s.attrs[entityID] = attrs.Clone()
	s.scores[entityID] = score
}

func (s *Scorer) industryAverage(industry string) func(metric string) float64 {
	return func(metric string) float64 {
		if avg, ok := s.cfg.IndustryAverages[metric][industry]; ok && avg != 0 {
			return avg
		}
		return s.cfg.DefaultIndustryAverage
	}
}

func (s *Scorer) evaluate(entityID string, attrs Attributes) (Score, error) {
	industry, _, err := attrs.Text(AttrIndustry)
	if err != nil {
		return Score{}, apperrors.NewScoringError(entityID, AttrIndustry, err)
	}
	name, _, err := attrs.Text(AttrName)
	if err != nil {
		return Score{}, apperrors.NewScoringError(entityID, AttrName, err)
	}
	industry = strings.ToLower(industry)
	avg := s.industryAverage(industry)

	criteria := make(map[Criterion]float64, len(AllCriteria))
	for _, c := range AllCriteria {
		criteria[c] = s.cfg.Baseline
	}

	var recognised bool
	for _, rule := range s.cfg.Rules {
		bonus, present, err := rule.apply(attrs, avg)
		if err != nil {
			return Score{}, apperrors.NewScoringError(entityID, rule.Attribute, err)
		}
		recognised = recognised || present
		criteria[rule.Criterion] += bonus
	}
	if !recognised {
		return Score{}, apperrors.NewScoringError(entityID, "*",
			fmt.Errorf("no recognised attribute: %w", apperrors.ErrDataNotFound))
	}

	if s.cfg.PenalizeHarmfulIndustries && isHarmful(industry, s.cfg.HarmfulIndustries) {
		criteria[NonHarm] -= s.cfg.HarmfulIndustryPenalty
	}

	var overall float64
	for _, c := range AllCriteria {
		criteria[c] = analysis.Clamp01(criteria[c])
		overall += criteria[c] * s.cfg.Weights[c]
	}
	overall = analysis.Clamp01(overall)

	sources := attrs.Strings(AttrSources)
	if len(sources) == 0 {
		sources = []string{SourceRules}
	}
	if name == "" {
		name = entityID
	}

	return Score{
		EntityID:  entityID,
		Name:      name,
		Criteria:  criteria,
		Overall:   overall,
		Level:     LevelFor(overall),
		Sources:   sources,
		Timestamp: s.now(),
	}, nil
}

// neutral builds the fallback score: every criterion and the overall at the
// baseline.
func (s *Scorer) neutral(entityID string, attrs Attributes) Score {
	criteria := make(map[Criterion]float64, len(AllCriteria))
	for _, c := range AllCriteria {
		criteria[c] = s.cfg.Baseline
	}
	name, ok, err := attrs.Text(AttrName)
	if err != nil || !ok || name == "" {
		name = entityID
	}
	return Score{
		EntityID:  entityID,
		Name:      name,
		Criteria:  criteria,
		Overall:   s.cfg.Baseline,
		Level:     LevelFor(s.cfg.Baseline),
		Fallback:  true,
		Sources:   []string{SourceFallback},
		Timestamp: s.now(),
	}
}

package marketdata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaosalign/internal/alignment"
	apperrors "chaosalign/internal/errors"
)

func TestReadBars_SortsAndParses(t *testing.T) {
	csv := `date,open,high,low,close,volume
2024-01-03,101,103,100,102,1200
2024-01-02,100,102,99,101,1000
`
	bars, err := ReadBars(strings.NewReader(csv), "X")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 102.0, bars[1].Close)
	assert.Equal(t, 1200.0, bars[1].Volume)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

func TestReadBars_BadDate(t *testing.T) {
	csv := "date,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"
	_, err := ReadBars(strings.NewReader(csv), "X")
	var dataErr *apperrors.DataError
	assert.True(t, apperrors.As(err, &dataErr))
}

func TestWriteBars_RoundTrip(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Bars = 5
	bars := Synthetic(cfg)

	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, bars))
	back, err := ReadBars(&buf, "X")
	require.NoError(t, err)
	require.Len(t, back, 5)
	assert.InDelta(t, bars[4].Close, back[4].Close, 1e-9)
	assert.True(t, bars[4].Timestamp.Equal(back[4].Timestamp))
}

func TestLoadBars_Missing(t *testing.T) {
	_, err := LoadBars(filepath.Join(t.TempDir(), "nope.csv"), "X")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestSynthetic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	a := Synthetic(cfg)
	b := Synthetic(cfg)
	require.Len(t, a, 252)
	assert.Equal(t, a, b)
	for _, bar := range a {
		assert.Greater(t, bar.Close, 0.0)
		assert.GreaterOrEqual(t, bar.High, bar.Low)
		assert.Greater(t, bar.Volume, 0.0)
	}

	cfg.Bars = 0
	assert.Nil(t, Synthetic(cfg))
}

func TestLoadPortfolio(t *testing.T) {
	doc := `
portfolio: growth
positions:
  - {symbol: AAPL, weight: 0.6, quantity: 10, avg_price: 150}
  - {symbol: MSFT, weight: 0.4, value: 4000, avg_price: 400}
quotes:
  AAPL: {last_price: 165, volatility: 0.02}
  SPY: {return: 0.05}
entities:
  AAPL:
    industry: technology
    labor_violations: 0
    safety_ratings: "A+"
    sources: [filing]
`
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := LoadPortfolio(path)
	require.NoError(t, err)
	assert.Equal(t, "growth", p.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Symbols())
	assert.Equal(t, 150.0, p.Positions[0].AvgPrice)
	assert.Equal(t, 4000.0, p.Positions[1].Value)

	snap := p.Snapshot(nil)
	assert.Equal(t, "AAPL", snap["AAPL"].Symbol)
	assert.Equal(t, 0.05, snap["SPY"].Return)

	attrs := StaticAttributes(p.Entities)
	a, ok := attrs.Attributes("AAPL")
	require.True(t, ok)
	v, ok, err := a.Number("labor_violations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, []string{"filing"}, a.Strings(alignment.AttrSources))
}

func TestLoadAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("B: {industry: energy}\nA: {ceo_pay_ratio: 90}\n"), 0o600))

	attrs, err := LoadAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, attrs.IDs())

	_, ok := attrs.Attributes("C")
	assert.False(t, ok)

	_, err = LoadAttributes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

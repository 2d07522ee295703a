package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaosalign/internal/alignment"
	"chaosalign/internal/attractor"
	"chaosalign/internal/config"
	"chaosalign/internal/ensemble"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/fusion"
	"chaosalign/internal/impact"
	"chaosalign/internal/models"
)

// writeConfig creates a config directory with a short warmup and quiet logs.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	doc := `
[ensemble]
warmup_steps = 20

[logging]
console = false
` + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(doc), 0o600))
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(config.Default(), zerolog.Nop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, writeConfig(t, ""), "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestSignalCommand(t *testing.T) {
	out, err := run(t, writeConfig(t, ""), "signal", "--json", "-n", "3", "--adapt")
	require.NoError(t, err)

	var res struct {
		Signals []ensemble.Signal `json:"signals"`
		Weights ensemble.Weights  `json:"weights"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Signals, 3)
	for _, s := range res.Signals {
		assert.Contains(t, models.AllDecisions, s.Decision)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
	var total float64
	for _, w := range res.Weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestSignalCommand_Text(t *testing.T) {
	out, err := run(t, writeConfig(t, ""), "signal")
	require.NoError(t, err)
	assert.Contains(t, out, "confidence")
	assert.Contains(t, out, "lorenz")
}

func TestSignalCommand_Volatility(t *testing.T) {
	dir := writeConfig(t, "")
	out, err := run(t, dir, "signal", "--json", "-n", "4", "--volatility", "high")
	require.NoError(t, err)

	var res struct {
		Signals []ensemble.Signal `json:"signals"`
		Summary ensemble.Summary  `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Signals, 4)
	assert.Equal(t, 4, res.Summary.TotalSignals)
	var n int
	for _, c := range res.Summary.DecisionDistribution {
		n += c
	}
	assert.Equal(t, 4, n)

	text, err := run(t, dir, "signal", "-n", "2", "--volatility", "low")
	require.NoError(t, err)
	assert.Contains(t, text, "Summary")

	_, err = run(t, dir, "signal", "--volatility", "extreme")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestBifurcationCommand(t *testing.T) {
	dir := writeConfig(t, "")
	out, err := run(t, dir, "bifurcation", "rossler", "--json", "--steps", "4")
	require.NoError(t, err)

	var res struct {
		Attractor string                       `json:"attractor"`
		Parameter string                       `json:"parameter"`
		Points    []attractor.BifurcationPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "rossler", res.Attractor)
	assert.Equal(t, "c", res.Parameter)
	require.Len(t, res.Points, 5)
	assert.InDelta(t, 2.0, res.Points[0].Parameter, 1e-12)
	assert.InDelta(t, 7.0, res.Points[4].Parameter, 1e-12)

	text, err := run(t, dir, "bifurcation", "lorenz", "--param", "rho", "--min", "20", "--max", "30", "--steps", "2")
	require.NoError(t, err)
	assert.Contains(t, text, "lorenz rho")

	_, err = run(t, dir, "bifurcation", "rossler", "--min", "7", "--max", "2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

const attributesDoc = `
CLEAN:
  name: Clean Co
  industry: technology
  labor_violations: 0
  ceo_pay_ratio: 40
  sources: [filing]
DIRTY:
  industry: tobacco
  labor_violations: 12
  misleading_claims: 5
`

func TestScoreCommand(t *testing.T) {
	dir := writeConfig(t, "")
	attrPath := filepath.Join(t.TempDir(), "attrs.yaml")
	require.NoError(t, os.WriteFile(attrPath, []byte(attributesDoc), 0o600))

	out, err := run(t, dir, "score", "--json", "-a", attrPath)
	require.NoError(t, err)
	var scores []alignment.Score
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	require.Len(t, scores, 2)
	assert.Equal(t, "CLEAN", scores[0].EntityID)
	assert.Equal(t, "DIRTY", scores[1].EntityID)
	assert.Greater(t, scores[0].Overall, scores[1].Overall)

	_, err = run(t, dir, "score", "-a", attrPath, "MISSING")
	assert.Error(t, err)
}

const portfolioDoc = `
portfolio: growth
positions:
  - {symbol: AAPL, weight: 0.6, quantity: 10, avg_price: 100}
  - {symbol: MSFT, weight: 0.4, quantity: 5, avg_price: 100}
quotes:
  SPY: {}
entities:
  AAPL: {industry: technology, labor_violations: 0}
`

func TestTrackCommand(t *testing.T) {
	dir := writeConfig(t, "")
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(portfolioDoc), 0o600))

	out, err := run(t, dir, "track", path, "--json", "--synthetic", "--ticks", "4")
	require.NoError(t, err)

	var report fusion.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "growth", report.PortfolioID)
	assert.Equal(t, 4, report.Summary.Snapshots)
	assert.Equal(t, 2, report.Current.Financial.PositionCount)
	assert.Contains(t, report.Current.Benchmarks, "SPY")
	assert.Greater(t, report.Current.Financial.TotalValue, 0.0)

	text, err := run(t, dir, "track", path, "--synthetic")
	require.NoError(t, err)
	assert.Contains(t, text, "Portfolio growth")
	assert.Contains(t, text, "Fused Score")
}

func TestImpactCommand(t *testing.T) {
	dir := writeConfig(t, "")
	out, err := run(t, dir, "impact", "XYZ", "--json", "--synthetic", "--base", "10000", "--target", "1000000")
	require.NoError(t, err)

	var m impact.ImpactModel
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "XYZ", m.EntityID)
	assert.Equal(t, 100.0, m.ScaleRatio)
	assert.Greater(t, m.Scaled.Total, 0.0)
	assert.False(t, m.UsedDefaults)

	out, err = run(t, dir, "impact", "XYZ", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.True(t, m.UsedDefaults)

	_, err = run(t, dir, "impact", "XYZ", "--base", "0")
	assert.Error(t, err)
}

func TestJournalCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	dir := writeConfig(t, fmt.Sprintf("\n[journal]\nenabled = true\npath = %q\n", dbPath))

	_, err := run(t, dir, "signal", "-n", "2")
	require.NoError(t, err)

	out, err := run(t, dir, "journal", "list", "--json", "--kind", "signal")
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "market", rows[0]["subject"])

	id, _ := rows[0]["id"].(string)
	out, err = run(t, dir, "journal", "show", id, "--json")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	payload, ok := doc["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload, "decision")

	out, err = run(t, dir, "journal", "prune", "--json", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": 0`)
}

func TestJournalDisabled(t *testing.T) {
	_, err := run(t, writeConfig(t, ""), "journal", "list")
	assert.ErrorIs(t, err, errJournalDisabled)
}

func TestMetricsTextfile(t *testing.T) {
	prom := filepath.Join(t.TempDir(), "chaosalign.prom")
	dir := writeConfig(t, fmt.Sprintf("\n[metrics]\ntextfile_path = %q\n", prom))

	_, err := run(t, dir, "signal")
	require.NoError(t, err)
	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chaosalign_signals_total")
}

func TestConfigCommands(t *testing.T) {
	dir := writeConfig(t, "")
	out, err := run(t, dir, "config", "validate", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	out, err = run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))

	out, err = run(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "non_harm")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	o := newOutput(&buf, false, true)
	table := NewTable(o, "Kind", "Subject")
	table.AddRow(o.Green("signal"), "market")
	table.AddRow("impact", "AAPL")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, visibleLen(lines[2]), visibleLen(lines[3]))
}

func TestProperty_VisibleLenIgnoresColour(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	o := newOutput(&bytes.Buffer{}, false, true)

	properties.Property("coloured text has the width of the raw text", prop.ForAll(
		func(s string) bool {
			return visibleLen(o.Red(s)) == visibleLen(s) && visibleLen(o.Green(s)) == len([]rune(s))
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"chaosalign/internal/engine"
	"chaosalign/internal/fusion"
	"chaosalign/internal/journal"
	"chaosalign/internal/marketdata"
	"chaosalign/internal/models"
	"chaosalign/pkg/utils"
)

func newTrackCmd(app *App) *cobra.Command {
	var (
		ticks     int
		synthetic bool
		attrPath  string
	)

	cmd := &cobra.Command{
		Use:   "track <portfolio.yaml>",
		Short: "Track a portfolio's fused financial and alignment performance",
		Long: `Replay the last --ticks bars of every symbol's history through the
engine, producing one performance snapshot per bar, then print the latest
snapshot and a report with trends and recommendations.

Bar history comes from the CSV files listed under 'bars' in the portfolio.
With --synthetic, symbols without a file get a generated series.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := marketdata.LoadPortfolio(args[0])
			if err != nil {
				return err
			}

			attrs := marketdata.StaticAttributes(p.Entities)
			if attrPath != "" {
				extra, err := marketdata.LoadAttributes(attrPath)
				if err != nil {
					return err
				}
				attrs = mergeAttributes(attrs, extra)
			}

			history, err := loadHistory(p, filepath.Dir(args[0]), synthetic)
			if err != nil {
				return err
			}

			eng, err := app.newEngine(attrs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for i := 0; i < ticks; i++ {
				snap := replaySnapshot(p, history, ticks-1-i)
				res, err := eng.Tick(ctx, engine.TickInput{
					PortfolioID: p.ID,
					Positions:   p.Positions,
					Snapshot:    snap,
				})
				if err != nil {
					return err
				}
				app.record(ctx, journal.KindSnapshot, p.ID, res.Performance)
			}

			report, err := eng.Tracker().Report(p.ID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printReport(output, report)
			return nil
		},
	}

	cmd.Flags().IntVarP(&ticks, "ticks", "t", 1, "number of bars to replay")
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "generate bars for symbols without a bar file")
	cmd.Flags().StringVarP(&attrPath, "attributes", "a", "", "additional entity attributes YAML file")
	return cmd
}

// loadHistory reads the portfolio's bar files, resolving relative paths
// against dir.
func loadHistory(p *marketdata.Portfolio, dir string, synthetic bool) (map[string][]models.Bar, error) {
	history := make(map[string][]models.Bar)
	for sym, path := range p.BarFiles {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		bars, err := marketdata.LoadBars(path, sym)
		if err != nil {
			return nil, err
		}
		history[sym] = bars
	}
	if !synthetic {
		return history, nil
	}

	symbols := p.Symbols()
	for sym := range p.Quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for i, sym := range symbols {
		if _, ok := history[sym]; ok {
			continue
		}
		cfg := marketdata.DefaultSyntheticConfig()
		cfg.Seed = int64(i + 1)
		history[sym] = marketdata.Synthetic(cfg)
	}
	return history, nil
}

// replaySnapshot builds the snapshot as of skip bars before the end of each
// history, pricing every symbol at its last visible close.
func replaySnapshot(p *marketdata.Portfolio, history map[string][]models.Bar, skip int) models.MarketSnapshot {
	visible := make(map[string][]models.Bar, len(history))
	for sym, bars := range history {
		n := len(bars) - skip
		if n < 1 {
			n = 1
		}
		if n > len(bars) {
			n = len(bars)
		}
		visible[sym] = bars[:n]
	}

	snap := p.Snapshot(visible)
	for sym, bars := range visible {
		q := snap[sym]
		q.Symbol = sym
		q.History = bars
		if len(bars) > 0 {
			q.LastPrice = bars[len(bars)-1].Close
		}
		snap[sym] = q
	}
	return snap
}

func mergeAttributes(base, extra marketdata.StaticAttributes) marketdata.StaticAttributes {
	out := make(marketdata.StaticAttributes, len(base)+len(extra))
	for id, a := range base {
		out[id] = a.Clone()
	}
	for id, a := range extra {
		if cur, ok := out[id]; ok {
			out[id] = cur.Merge(a)
		} else {
			out[id] = a.Clone()
		}
	}
	return out
}

func printReport(output *Output, r fusion.Report) {
	cur := r.Current
	fin := cur.Financial

	output.Bold("Portfolio %s", r.PortfolioID)
	output.Printf("  Value:        %s  (cost %s, P&L %s)\n",
		utils.FormatCompact(fin.TotalValue), utils.FormatCompact(fin.TotalCost), utils.FormatPnL(fin.TotalPnL))
	output.Printf("  Return:       %s\n", output.Signed("%+.2f%%", fin.TotalReturn*100))
	output.Printf("  Volatility:   %s  Sharpe %.2f  Max DD %s\n",
		utils.FormatPercent(fin.Volatility), fin.SharpeRatio, utils.FormatPercent(-fin.MaxDrawdown))
	output.Printf("  Alignment:    %.3f  %s\n", cur.Alignment.Score, cur.Alignment.Level)
	output.Printf("  Fused Score:  %.3f  %s\n", cur.Fused.Normalized, cur.Fused.Interpretation)
	output.Printf("  Risk:         %s  concentration %.2f\n", riskLabel(output, cur.Risk.Level), cur.Risk.Concentration)
	output.Printf("  Regime:       %s\n", cur.MarketRegime)
	output.Println()

	if len(fin.Positions) > 0 {
		output.Bold("Positions")
		for _, pos := range fin.Positions {
			output.Printf("  %-8s %12s  %s\n", pos.Symbol, utils.FormatCurrency(pos.Value), output.Signed("%+.2f%%", pos.Return*100))
		}
		output.Println()
	}

	if len(cur.Benchmarks) > 0 {
		output.Bold("Benchmarks")
		syms := make([]string, 0, len(cur.Benchmarks))
		for s := range cur.Benchmarks {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		for _, s := range syms {
			b := cur.Benchmarks[s]
			output.Printf("  %-8s %s  outperformance %s\n", s,
				output.Signed("%+.2f%%", b.Return*100), output.Signed("%+.2f%%", b.Outperformance*100))
		}
		output.Println()
	}

	output.Bold("Trends (%d snapshots)", r.Summary.Snapshots)
	output.Printf("  Returns:      %s  consistency %.2f\n", r.Trends.ReturnTrend, r.Trends.ConsistencyScore)
	output.Printf("  Fused:        %s  peak %.3f  average %.3f\n", r.FusedTrend.Trend, r.FusedTrend.Peak, r.FusedTrend.Average)
	output.Printf("  Cumulative:   %.3f\n", r.Cumulative)

	if len(r.Recommendations) > 0 {
		output.Println()
		output.Bold("Recommendations")
		for _, rec := range r.Recommendations {
			line := fmt.Sprintf("  [%s] %s", rec.Priority, rec.Message)
			if rec.Priority == fusion.PriorityHigh {
				output.Warning("%s", line)
			} else {
				output.Println(line)
			}
		}
	}
}

func riskLabel(output *Output, level fusion.RiskLevel) string {
	switch level {
	case fusion.RiskHigh:
		return output.Red(string(level))
	case fusion.RiskModerate:
		return output.Yellow(string(level))
	}
	return output.Green(string(level))
}

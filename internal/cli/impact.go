package cli

import (
	"github.com/spf13/cobra"

	"chaosalign/internal/impact"
	"chaosalign/internal/journal"
	"chaosalign/internal/marketdata"
	"chaosalign/internal/models"
	"chaosalign/pkg/utils"
)

func newImpactCmd(app *App) *cobra.Command {
	var (
		baseSize   float64
		targetSize float64
		barsPath   string
		synthetic  bool
		price      float64
	)

	cmd := &cobra.Command{
		Use:   "impact <symbol>",
		Short: "Estimate market impact when scaling a position",
		Long: `Estimate the market impact of a trade at --base size from the symbol's
bar history, then extrapolate it to --target size using the history's fractal
dimension. Without history the configured defaults are used and the estimate
is marked accordingly.`,
		Example: `  chaosalign impact AAPL --base 10000 --target 1000000 --bars aapl.csv
  chaosalign impact XYZ --base 5000 --target 500000 --synthetic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			var history []models.Bar
			switch {
			case barsPath != "":
				bars, err := marketdata.LoadBars(barsPath, symbol)
				if err != nil {
					return err
				}
				history = bars
			case synthetic:
				history = marketdata.Synthetic(marketdata.DefaultSyntheticConfig())
			}

			var quote *models.Quote
			if price > 0 {
				quote = &models.Quote{Symbol: symbol, LastPrice: price}
			}

			eng, err := app.newEngine(nil)
			if err != nil {
				return err
			}
			m, err := eng.Estimator().Model(symbol, baseSize, targetSize, history, quote)
			if err != nil {
				return err
			}
			eng.Recorder().ObserveImpact(symbol, m.Scaled.Total)
			app.record(cmd.Context(), journal.KindImpact, symbol, m)

			if output.IsJSON() {
				return output.JSON(m)
			}
			printImpact(output, m)
			return nil
		},
	}

	cmd.Flags().Float64Var(&baseSize, "base", 10_000, "base trade size in dollars")
	cmd.Flags().Float64Var(&targetSize, "target", 1_000_000, "target trade size in dollars")
	cmd.Flags().StringVar(&barsPath, "bars", "", "daily bar CSV for the symbol")
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "use a generated bar series")
	cmd.Flags().Float64Var(&price, "price", 0, "current price (default: last close)")
	return cmd
}

func printImpact(output *Output, m impact.ImpactModel) {
	output.Bold("%s  %s → %s  (×%.1f)", m.EntityID, utils.FormatCompact(m.BaseSize), utils.FormatCompact(m.TargetSize), m.ScaleRatio)
	if m.UsedDefaults {
		output.Warning("  estimated from defaults")
	}

	b := m.Base
	output.Printf("  Price:          %s  avg volume %.0f\n", utils.FormatCurrency(b.Price), b.AvgVolume)
	output.Printf("  Volatility:     %s  volume CV %.2f  regime %s\n", utils.FormatPercent(b.Volatility), b.VolumeCV, m.MarketRegime)
	output.Println()

	output.Bold("Base Impact")
	output.Printf("  Participation:  %s\n", utils.FormatPercent(b.ParticipationRate))
	output.Printf("  Permanent:      %s\n", utils.FormatBps(b.PermanentImpact))
	output.Printf("  Temporary:      %s\n", utils.FormatBps(b.TemporaryImpact))
	output.Printf("  Spread:         %.1f bps\n", b.SpreadCost)
	output.Println()

	s := m.Scaled
	output.Bold("Scaled Impact")
	output.Printf("  Dimension:      %.3f  exponent %.3f\n", m.FractalDimension, s.Exponent)
	output.Printf("  Participation:  %s\n", utils.FormatPercent(s.ParticipationRate))
	output.Printf("  Permanent:      %s\n", utils.FormatBps(s.PermanentImpact))
	output.Printf("  Temporary:      %s\n", utils.FormatBps(s.TemporaryImpact))
	output.Printf("  Nonlinear:      %s\n", utils.FormatBps(s.NonlinearEffects))
	output.Printf("  Total:          %s  efficiency %.2f\n", output.Yellow(utils.FormatBps(s.Total)), s.Efficiency)
	output.Println()

	output.Bold("Scenarios")
	for _, sc := range m.Scenarios {
		output.Printf("  %-14s p=%.2f  %s\n", sc.Name, sc.Probability, utils.FormatBps(sc.Impact))
	}
	output.Dim("Confidence %.2f", m.Confidence)
}

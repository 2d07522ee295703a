package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"chaosalign/internal/attractor"
	"chaosalign/internal/ensemble"
	"chaosalign/internal/journal"
	"chaosalign/internal/models"
)

func newSignalCmd(app *App) *cobra.Command {
	var (
		count      int
		adapt      bool
		warmup     int
		volatility string
	)

	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Generate ensemble trading signals",
		Long: `Advance every attractor in the ensemble one step and combine their
decisions into a weighted signal. With --count the ensemble keeps stepping and
each signal is reported; with --adapt the weights are adapted afterwards.
--volatility retunes every attractor to the high, normal or low parameter
regime before the first signal.`,
		Example: `  chaosalign signal
  chaosalign signal --count 20 --adapt
  chaosalign signal --volatility high --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if cmd.Flags().Changed("warmup") {
				app.Config.Ensemble.WarmupSteps = warmup
			}
			eng, err := app.newEngine(nil)
			if err != nil {
				return err
			}

			if volatility != "" {
				if err := eng.Tune(ensemble.VolatilityProfile(volatility)); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			signals := make([]ensemble.Signal, 0, count)
			for i := 0; i < count; i++ {
				s := eng.Signal(ctx)
				signals = append(signals, s)
				app.record(ctx, journal.KindSignal, "market", s)
			}

			var adapted ensemble.Weights
			if adapt {
				adapted = eng.AdaptWeights()
			}

			summary, _ := eng.Ensemble().PerformanceSummary()
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"signals": signals,
					"weights": eng.Ensemble().Weights(),
					"summary": summary,
				})
			}

			for i, s := range signals {
				if count > 1 {
					output.Dim("Signal %d/%d", i+1, count)
				}
				printSignal(output, s)
			}
			if count > 1 {
				printSummary(output, summary)
			}
			if adapted != nil {
				output.Bold("Adapted Weights")
				for _, kind := range sortedKinds(adapted) {
					output.Printf("  %-10s %.3f\n", kind, adapted[kind])
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of signals to generate")
	cmd.Flags().BoolVar(&adapt, "adapt", false, "adapt weights after generating")
	cmd.Flags().IntVar(&warmup, "warmup", 0, "override warmup steps")
	cmd.Flags().StringVar(&volatility, "volatility", "", "tune attractors for high, normal or low volatility")
	return cmd
}

func printSignal(output *Output, s ensemble.Signal) {
	actionable := output.DimText("not actionable")
	if s.Actionable {
		actionable = output.Green("actionable")
	}
	output.Printf("%s  confidence %.2f  %s\n", output.Decision(s.Decision), s.Confidence, actionable)
	output.Printf("  ensemble value %s  regime %s\n", output.Signed("%+.3f", s.EnsembleValue), s.MarketRegime)

	for _, kind := range sortedKinds(s.WeightsUsed) {
		sig, ok := s.Signals[kind]
		if !ok {
			continue
		}
		chaotic := ""
		if sig.IsChaotic {
			chaotic = output.Yellow(" chaotic")
		}
		output.Printf("  %-8s w=%.2f  %-12s strength %.2f  D=%.2f%s\n",
			kind, s.WeightsUsed[kind], output.Decision(sig.Decision), sig.ChaosStrength, sig.FractalDimension, chaotic)
	}
	output.Println()
}

func printSummary(output *Output, s ensemble.Summary) {
	output.Bold("Summary")
	output.Printf("  signals %d  average confidence %.2f\n", s.TotalSignals, s.AverageConfidence)
	for _, d := range models.AllDecisions {
		if n := s.DecisionDistribution[d]; n > 0 {
			output.Printf("  %-12s %d\n", output.Decision(d), n)
		}
	}
	output.Println()
}

func sortedKinds(w ensemble.Weights) []attractor.Kind {
	kinds := make([]attractor.Kind, 0, len(w))
	for k := range w {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

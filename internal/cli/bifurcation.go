package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaosalign/internal/attractor"
	"chaosalign/pkg/utils"
)

func newBifurcationCmd(app *App) *cobra.Command {
	var (
		param string
		min   float64
		max   float64
		steps int
	)

	cmd := &cobra.Command{
		Use:   "bifurcation [lorenz|chen|rossler]",
		Short: "Sweep an attractor parameter and find periodic windows",
		Long: `Sweep one parameter of an attractor across a range. At each point the
attractor is settled from its default preset, then sampled. The largest
Lyapunov exponent marks chaotic points, and points whose samples settle onto
a few values are reported as periodic windows.`,
		Example: `  chaosalign bifurcation
  chaosalign bifurcation lorenz --param rho --min 20 --max 30 --steps 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			kind := attractor.KindRossler
			if len(args) == 1 {
				kind = attractor.Kind(args[0])
			}

			points, err := attractor.BifurcationScan(kind, param, min, max, steps)
			if err != nil {
				return err
			}
			windows := attractor.PeriodicWindows(points)
			app.Logger.Debug().
				Str("attractor", string(kind)).
				Str("param", param).
				Int("points", len(points)).
				Int("windows", len(windows)).
				Msg("Bifurcation scan complete")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"attractor": kind,
					"parameter": param,
					"points":    points,
					"windows":   windows,
				})
			}

			chaotic := 0
			for _, p := range points {
				if p.Chaotic {
					chaotic++
				}
			}
			output.Bold("%s %s in [%g, %g]", kind, param, min, max)
			output.Printf("  points %d  chaotic %s\n", len(points),
				utils.FormatPercent(float64(chaotic)/float64(len(points))))
			output.Println()

			if len(windows) == 0 {
				output.Info("No periodic windows found.")
				return nil
			}
			table := NewTable(output, "Parameter", "Period", "Lyapunov")
			for _, w := range windows {
				table.AddRow(fmt.Sprintf("%.4f", w.Parameter), fmt.Sprintf("%d", w.Period), output.Signed("%+.4f", w.Lyapunov))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&param, "param", "p", "c", "parameter to sweep")
	cmd.Flags().Float64Var(&min, "min", 2, "start of the range")
	cmd.Flags().Float64Var(&max, "max", 7, "end of the range")
	cmd.Flags().IntVar(&steps, "steps", 100, "number of intervals")
	return cmd
}

// Package cli provides the command-line interface for chaosalign.
package cli

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chaosalign/internal/alignment"
	"chaosalign/internal/config"
	"chaosalign/internal/engine"
	"chaosalign/internal/journal"
	"chaosalign/internal/logging"
	"chaosalign/internal/metrics"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Recorder *metrics.Recorder

	journal *journal.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Recorder: metrics.NewRecorder(),
	}

	rootCmd := &cobra.Command{
		Use:   "chaosalign",
		Short: "Chaos-attractor trading signals fused with ethical alignment",
		Long: `chaosalign drives a weighted ensemble of chaotic attractors to produce
trading signals, scores entities against five ethical criteria, fuses portfolio
returns with alignment, and estimates fractal market impact at scale.

Use 'chaosalign <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.Logger = logging.NewLoggerWithConfig(loaded.Logging)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.finish()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/chaosalign)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newSignalCmd(app))
	rootCmd.AddCommand(newScoreCmd(app))
	rootCmd.AddCommand(newTrackCmd(app))
	rootCmd.AddCommand(newImpactCmd(app))
	rootCmd.AddCommand(newBifurcationCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

// newEngine builds an engine sharing the app's metrics recorder.
func (a *App) newEngine(attrs alignment.AttributeProvider) (*engine.Engine, error) {
	return engine.New(a.Config.Config, attrs, a.Recorder, a.Logger)
}

// Journal opens the configured journal. It returns nil when journalling is
// disabled.
func (a *App) Journal() (*journal.Journal, error) {
	if a.journal != nil || !a.Config.Journal.Enabled {
		return a.journal, nil
	}
	j, err := journal.Open(a.Config.Journal.Path)
	if err != nil {
		return nil, err
	}
	a.journal = j
	return j, nil
}

// record journals v when journalling is enabled. Failures are logged, never
// returned.
func (a *App) record(ctx context.Context, kind journal.Kind, subject string, v any) {
	j, err := a.Journal()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Journal unavailable")
		return
	}
	if j == nil {
		return
	}
	if _, err := j.Record(ctx, kind, subject, v); err != nil {
		a.Logger.Warn().Err(err).Str("kind", string(kind)).Str("subject", subject).Msg("Failed to journal result")
	}
}

// finish exports metrics and closes the journal.
func (a *App) finish() error {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close journal")
		}
		a.journal = nil
	}
	if path := a.Config.Metrics.TextfilePath; path != "" {
		if err := a.Recorder.WriteTextfile(path); err != nil {
			return err
		}
		a.Logger.Debug().Str("path", path).Msg("Metrics written")
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("chaosalign v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			path := filepath.Join(dir, "config.toml")
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Ensemble")
	for _, kind := range sortedKinds(cfg.Ensemble.Weights) {
		output.Printf("  %-16s %.2f\n", kind, cfg.Ensemble.Weights[kind])
	}
	output.Printf("  Adaptation Rate: %.2f\n", cfg.Ensemble.AdaptationRate)
	output.Printf("  Weight Bounds:   [%.2f, %.2f]\n", cfg.Ensemble.MinWeight, cfg.Ensemble.MaxWeight)
	output.Printf("  Warmup Steps:    %d\n", cfg.Ensemble.WarmupSteps)
	output.Println()

	output.Bold("Alignment")
	for _, c := range alignment.AllCriteria {
		output.Printf("  %-16s %.2f\n", c, cfg.Alignment.Weights[c])
	}
	output.Printf("  Rules:           %d\n", len(cfg.Alignment.Rules))
	output.Println()

	output.Bold("Fusion")
	output.Printf("  Synergy:         %.2f above %.2f\n", cfg.Fusion.SynergyFactor, cfg.Fusion.SynergyThreshold)
	output.Printf("  Risk-Free Rate:  %.2f%%\n", cfg.Fusion.RiskFreeRate*100)
	output.Printf("  Benchmarks:      %v\n", cfg.Fusion.Benchmarks)
	output.Println()

	output.Bold("Impact")
	output.Printf("  Coefficients:    permanent %.2f, temporary %.2f\n", cfg.Impact.PermanentCoefficient, cfg.Impact.TemporaryCoefficient)
	output.Printf("  Scenarios:       %d\n", len(cfg.Impact.Scenarios))
	output.Println()

	output.Bold("Journal")
	output.Printf("  Enabled:         %v\n", cfg.Journal.Enabled)
	output.Printf("  Path:            %s\n", cfg.Journal.Path)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaosalign/internal/alignment"
	"chaosalign/internal/journal"
	"chaosalign/internal/marketdata"
)

func newScoreCmd(app *App) *cobra.Command {
	var attrPath string

	cmd := &cobra.Command{
		Use:   "score [entity...]",
		Short: "Score entities against the alignment criteria",
		Long: `Score entities from an attributes file against the five alignment
criteria. With no entities every entity in the file is scored.`,
		Example: `  chaosalign score --attributes entities.yaml
  chaosalign score --attributes entities.yaml AAPL XOM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			attrs, err := marketdata.LoadAttributes(attrPath)
			if err != nil {
				return err
			}
			eng, err := app.newEngine(attrs)
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				ids = attrs.IDs()
			}

			ctx := cmd.Context()
			scores, err := eng.ScoreAll(ctx, ids, attrs)
			if err != nil {
				return err
			}
			for _, s := range scores {
				app.record(ctx, journal.KindScore, s.EntityID, s)
			}

			if output.IsJSON() {
				return output.JSON(scores)
			}
			for _, s := range scores {
				printScore(output, s)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&attrPath, "attributes", "a", "", "entity attributes YAML file")
	_ = cmd.MarkFlagRequired("attributes")
	return cmd
}

func printScore(output *Output, s alignment.Score) {
	name := s.EntityID
	if s.Name != "" && s.Name != s.EntityID {
		name = fmt.Sprintf("%s (%s)", s.Name, s.EntityID)
	}
	output.Bold("%s", name)

	level := string(s.Level)
	switch {
	case s.Overall >= 0.7:
		level = output.Green(level)
	case s.Overall < 0.4:
		level = output.Red(level)
	default:
		level = output.Yellow(level)
	}
	output.Printf("  overall %.3f  %s\n", s.Overall, level)
	if s.Fallback {
		output.Warning("  fallback score: %s", s.Error)
	}
	for _, c := range alignment.AllCriteria {
		output.Printf("  %-14s %.3f\n", c, s.Criteria[c])
	}
	if len(s.Sources) > 0 {
		output.Dim("  sources: %v", s.Sources)
	}
	output.Println()
}

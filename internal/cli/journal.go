package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chaosalign/internal/journal"
)

var errJournalDisabled = errors.New("journal is disabled; set [journal] enabled = true or CHAOSALIGN_JOURNAL_PATH")

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect journalled results",
		Long:  "List, show and prune results recorded by signal, score, track and impact.",
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalPruneCmd(app))
	return cmd
}

func openJournal(app *App) (*journal.Journal, error) {
	j, err := app.Journal()
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, errJournalDisabled
	}
	return j, nil
}

func newJournalListCmd(app *App) *cobra.Command {
	var (
		kind    string
		subject string
		since   time.Duration
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			j, err := openJournal(app)
			if err != nil {
				return err
			}

			filter := journal.Filter{Kind: journal.Kind(kind), Subject: subject, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := j.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				rows := make([]map[string]interface{}, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, map[string]interface{}{
						"id":        e.ID,
						"kind":      e.Kind,
						"subject":   e.Subject,
						"timestamp": e.Timestamp,
						"size":      len(e.Payload),
					})
				}
				return output.JSON(rows)
			}

			if len(entries) == 0 {
				output.Info("No journal entries.")
				return nil
			}
			table := NewTable(output, "Time", "Kind", "Subject", "ID")
			for _, e := range entries {
				table.AddRow(e.Timestamp.Format("2006-01-02 15:04:05"), string(e.Kind), e.Subject, e.ID)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (signal, score, snapshot, impact)")
	cmd.Flags().StringVar(&subject, "subject", "", "filter by subject")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum entries")
	return cmd
}

func newJournalShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			j, err := openJournal(app)
			if err != nil {
				return err
			}
			e, err := j.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var payload interface{}
			if err := e.Decode(&payload); err != nil {
				return err
			}

			doc := map[string]interface{}{
				"id":        e.ID,
				"kind":      e.Kind,
				"subject":   e.Subject,
				"timestamp": e.Timestamp,
				"payload":   payload,
			}
			if !output.IsJSON() {
				output.Bold("%s %s", e.Kind, e.Subject)
				output.Dim("%s  %s", e.ID, e.Timestamp.Format(time.RFC3339))
			}
			return output.JSON(doc)
		},
	}
}

func newJournalPruneCmd(app *App) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			j, err := openJournal(app)
			if err != nil {
				return err
			}
			removed, err := j.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"removed": removed})
			}
			output.Success("✓ Removed %d entries", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of entries to remove")
	return cmd
}

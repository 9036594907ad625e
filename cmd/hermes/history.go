package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hermes/internal/errors"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit      int
		exportSpec string
		deleteID   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, export, or delete completed run reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}

			switch {
			case exportSpec != "":
				runID, dest, found := strings.Cut(exportSpec, ":")
				if !found || runID == "" || dest == "" {
					return errors.NewInputError("--export expects ID:PATH, got %q", exportSpec)
				}
				if err := a.histories.ExportReport(runID, dest); err != nil {
					return err
				}
				fmt.Printf("%s report %s exported to %s\n", green("✓"), runID, dest)
				return nil

			case deleteID != "":
				if err := a.histories.Delete(deleteID); err != nil {
					return err
				}
				fmt.Printf("%s history %s deleted\n", green("✓"), deleteID)
				return nil
			}

			metas, err := a.histories.ListAll(limit)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Println(gray("no history"))
				return nil
			}
			for _, meta := range metas {
				line := fmt.Sprintf("%s  %s  %s  loops=%d sources=%d  %s",
					bold(meta.ID),
					statusColor(meta.Status),
					meta.FinishedAt.Format("2006-01-02 15:04"),
					meta.ValidationLoops,
					meta.SourceCount,
					truncatePrompt(meta.Prompt, 50))
				if meta.ErrorMessage != "" {
					firstLine, _, _ := strings.Cut(meta.ErrorMessage, "\n")
					line += "  " + red(firstLine)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show at most N entries")
	cmd.Flags().StringVar(&exportSpec, "export", "", "export a report, format ID:PATH")
	cmd.Flags().StringVar(&deleteID, "delete", "", "history ID to delete")
	return cmd
}

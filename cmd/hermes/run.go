package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hermes/internal/config"
	"hermes/internal/errors"
	"hermes/internal/persistence"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		prompt        string
		model         string
		language      string
		minValidation int
		maxValidation int
		queryCount    int
		minSearch     int
		maxSearch     int
		exportPath    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single research prompt end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return errors.NewInputError("--prompt is required")
			}
			if err := a.setup(); err != nil {
				return err
			}

			overrides := config.Overrides{}
			if cmd.Flags().Changed("model") {
				overrides.Model = &model
			}
			if cmd.Flags().Changed("language") {
				overrides.Language = &language
			}
			if cmd.Flags().Changed("min-validation") {
				overrides.MinValidation = &minValidation
			}
			if cmd.Flags().Changed("max-validation") {
				overrides.MaxValidation = &maxValidation
			}
			if cmd.Flags().Changed("query") {
				overrides.QueryCount = &queryCount
			}
			if cmd.Flags().Changed("min-search") {
				overrides.MinSources = &minSearch
			}
			if cmd.Flags().Changed("max-search") {
				overrides.MaxSources = &maxSearch
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			meta, err := a.runService().Run(ctx, prompt, overrides)
			printRunSummary(meta, time.Since(start))
			if err != nil {
				return err
			}

			if exportPath != "" {
				if err := a.histories.ExportReport(meta.ID, exportPath); err != nil {
					return err
				}
				fmt.Printf("  exported to %s\n", exportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "research prompt")
	cmd.Flags().StringVar(&model, "model", "", "override the Ollama model")
	cmd.Flags().StringVar(&language, "language", "", "report language (ja or en)")
	cmd.Flags().IntVar(&minValidation, "min-validation", 0, "minimum validation loops")
	cmd.Flags().IntVar(&maxValidation, "max-validation", 0, "maximum validation loops")
	cmd.Flags().IntVar(&queryCount, "query", 0, "number of search queries to generate")
	cmd.Flags().IntVar(&minSearch, "min-search", 0, "per-query source floor")
	cmd.Flags().IntVar(&maxSearch, "max-search", 0, "per-query source ceiling")
	cmd.Flags().StringVar(&exportPath, "export", "", "also copy the report to this path")
	return cmd
}

func printRunSummary(meta persistence.HistoryMeta, elapsed time.Duration) {
	fmt.Printf("\n%s\n", bold("run "+meta.ID))
	fmt.Printf("  status:   %s\n", statusColor(meta.Status))
	fmt.Printf("  duration: %s\n", elapsed.Round(time.Second))
	fmt.Printf("  sources:  %d\n", meta.SourceCount)
	fmt.Printf("  loops:    %d\n", meta.ValidationLoops)
	if meta.Status == persistence.HistorySuccess {
		fmt.Printf("  report:   %s\n", meta.ReportFile)
	} else if meta.ErrorMessage != "" {
		firstLine, _, _ := strings.Cut(meta.ErrorMessage, "\n")
		fmt.Printf("  error:    %s\n", red(firstLine))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hermes/internal/errors"
	"hermes/internal/logging"
	"hermes/internal/service"
)

func newQueueCommand(a *app) *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Drain scheduled tasks sequentially",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("limit") && all {
				return errors.NewInputError("--limit and --all are mutually exclusive")
			}
			if err := a.setup(); err != nil {
				return err
			}

			queue := service.NewQueueService(a.tasks, a.runService(),
				logging.NewComponentLogger(a.logs, "queue", logging.LevelDebug))

			scheduled, err := queue.ListScheduled()
			if err != nil {
				return err
			}
			if len(scheduled) == 0 {
				fmt.Println(gray("queue is empty"))
				return nil
			}

			effective := limit
			if all {
				effective = 0
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := queue.ProcessQueue(ctx, effective)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					fmt.Printf("%s %s  %s\n", red("✗"), bold(result.TaskID), result.Err)
					continue
				}
				fmt.Printf("%s %s  %s  sources=%d loops=%d\n",
					green("✓"), bold(result.TaskID),
					result.Meta.FinishedAt.Sub(result.Meta.CreatedAt).Round(time.Second),
					result.Meta.SourceCount, result.Meta.ValidationLoops)
			}
			fmt.Printf("\n%d processed, %d failed\n", len(results), failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N tasks")
	cmd.Flags().BoolVar(&all, "all", false, "process every scheduled task")
	return cmd
}

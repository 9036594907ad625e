package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newLogCommand(a *app) *cobra.Command {
	var (
		taskID string
		lines  int
		follow bool
		debug  bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show or follow the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}

			matches := func(line string) bool {
				return taskID == "" || strings.Contains(line, taskID)
			}

			tail := a.logs.Tail
			stream := a.logs.Stream
			if debug {
				tail = a.logs.TailDebug
				stream = a.logs.StreamDebug
			}

			recent, err := tail(lines)
			if err != nil {
				return err
			}
			for _, line := range recent {
				if matches(line) {
					fmt.Println(line)
				}
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for line := range stream(ctx) {
				if matches(line) {
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "only show lines mentioning this run ID")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep following new lines")
	cmd.Flags().BoolVar(&debug, "debug", false, "read the unfiltered debug log instead")
	return cmd
}

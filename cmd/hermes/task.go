package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hermes/internal/errors"
	"hermes/internal/persistence"
)

func newTaskCommand(a *app) *cobra.Command {
	var (
		prompt   string
		list     bool
		deleteID string
	)

	cmd := &cobra.Command{
		Use:   "task",
		Short: "Enqueue, list, or delete research tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}

			switch {
			case prompt != "":
				task, err := a.tasks.Create(prompt, nil)
				if err != nil {
					return err
				}
				fmt.Printf("%s task %s scheduled\n", green("✓"), bold(task.ID))
				return nil

			case list:
				tasks, err := a.tasks.ListAll()
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Println(gray("no tasks"))
					return nil
				}
				for _, task := range tasks {
					fmt.Printf("%s  %s  %s  %s\n",
						bold(task.ID),
						statusColor(task.Status),
						task.CreatedAt.Format("2006-01-02 15:04"),
						truncatePrompt(task.Prompt, 60))
				}
				return nil

			case deleteID != "":
				if err := a.tasks.Delete(deleteID); err != nil {
					return err
				}
				fmt.Printf("%s task %s deleted\n", green("✓"), deleteID)
				return nil
			}

			return errors.NewInputError("one of --prompt, --list, or --delete is required")
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "research prompt to enqueue")
	cmd.Flags().BoolVar(&list, "list", false, "list all tasks")
	cmd.Flags().StringVar(&deleteID, "delete", "", "task ID to delete")
	return cmd
}

func statusColor(status string) string {
	switch status {
	case persistence.TaskDone, persistence.HistorySuccess:
		return green(status)
	case persistence.TaskFailed:
		return red(status)
	case persistence.TaskRunning:
		return cyan(status)
	default:
		return yellow(status)
	}
}

func truncatePrompt(prompt string, limit int) string {
	runes := []rune(prompt)
	if len(runes) <= limit {
		return prompt
	}
	return string(runes[:limit]) + "…"
}

package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hermes/internal/config"
	"hermes/internal/logging"
	"hermes/internal/persistence"
	"hermes/internal/service"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// app holds the wiring shared by every subcommand, resolved lazily so
// `init` can run before any directory exists.
type app struct {
	workDir string

	cfg       config.Config
	paths     persistence.Paths
	tasks     *persistence.TaskRepository
	histories *persistence.HistoryRepository
	logs      *persistence.LogRepository
}

func (a *app) setup() error {
	cfg, err := config.Load(a.workDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.paths = persistence.NewPaths(cfg.WorkDir)
	if err := a.paths.EnsureTree(); err != nil {
		return err
	}
	a.tasks = persistence.NewTaskRepository(a.paths)
	a.histories = persistence.NewHistoryRepository(a.paths)
	a.logs = persistence.NewLogRepository(a.paths, logging.ParseLevel(cfg.Logging.Level))
	return nil
}

func (a *app) runService() *service.RunService {
	return service.NewRunService(a.cfg, a.tasks, a.histories, a.logs, nil)
}

// NewRootCommand builds the hermes CLI.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "hermes",
		Short: "Local LLM research agent producing cited Markdown reports",
		Long: "Hermes researches a prompt with a local Ollama model and a SearxNG\n" +
			"instance: it generates search queries, collects and cleans sources,\n" +
			"drafts a report, and loops through validation until the report meets\n" +
			"a quality threshold. Everything is stored as flat files under the\n" +
			"work directory (default ~/.hermes).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.workDir, "work-dir", "", "work directory (default ~/.hermes)")

	rootCmd.AddCommand(
		newInitCommand(a),
		newTaskCommand(a),
		newRunCommand(a),
		newQueueCommand(a),
		newHistoryCommand(a),
		newLogCommand(a),
	)
	return rootCmd
}

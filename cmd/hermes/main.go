// Command hermes is a local research agent: it plans search queries with
// a local LLM, collects and normalizes web sources, and iterates on a
// cited Markdown report until it passes a quality bar.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"hermes/internal/errors"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(errors.ExitCode(err))
	}
}

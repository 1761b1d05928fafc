// Command livetree-tui renders the todo demo in a terminal and shows the
// mutation batch produced by every key press.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	seed := flag.Uint64("seed", 1, "seed for generated todo items")
	logFile := flag.String("log", "", "write logs to this file")
	verbosity := flag.Int("v", 1, "log verbosity")
	flag.Parse()

	// the terminal belongs to the UI, logs go to a file or nowhere
	if *logFile != "" {
		commonlog.Configure(*verbosity, logFile)
	} else {
		commonlog.Configure(-4, nil)
	}

	m, err := newModel(*seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer m.rt.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package commands

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/journal"
	"go.uber.org/multierr"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Sessions lists the sessions recorded in a journal.
func Sessions(args []string) (err error) {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.load(); err != nil {
		return err
	}
	if err := c.requireJournal("sessions"); err != nil {
		return err
	}

	j, err := journal.Open(c.journal)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, j.Close()) }()

	sessions, err := j.Sessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "BATCHES", "EDITS", "FIRST", "LAST").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range sessions {
		t.Row(s.ID, strconv.Itoa(s.Batches), strconv.Itoa(s.Edits),
			s.First.Format("2006-01-02 15:04:05"), s.Last.Format("2006-01-02 15:04:05"))
	}
	fmt.Println(t)
	return nil
}

// Replay rebuilds a recorded session and prints the resulting HTML.
func Replay(args []string) (err error) {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.load(); err != nil {
		return err
	}
	if err := c.requireJournal("replay"); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("session id required: livetree replay --journal file <session>")
	}

	j, err := journal.Open(c.journal)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, j.Close()) }()

	doc := dom.New()
	n, err := j.Replay(context.Background(), fs.Arg(0), doc)
	if err != nil {
		return err
	}
	if err := doc.Err(); err != nil {
		return fmt.Errorf("apply batches: %w", err)
	}
	out, err := doc.Minified()
	if err != nil {
		return fmt.Errorf("minify: %w", err)
	}
	log.Infof("replayed %d batches of %s", n, fs.Arg(0))
	fmt.Println(out)
	return nil
}

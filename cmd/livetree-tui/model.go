package main

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/livefir/livetree"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/internal/demo"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type keyMap struct {
	Add, Toggle, Remove, Reverse, Sort, Clear, Quit key.Binding
}

var keys = keyMap{
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Toggle:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle first")),
	Remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete first")),
	Reverse: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse")),
	Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear done")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) help() string {
	var parts []string
	for _, b := range []key.Binding{k.Add, k.Toggle, k.Remove, k.Reverse, k.Sort, k.Clear, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// model drives a todo runtime from key presses. Every key changes the list
// state, renders one pass and shows the resulting document and batch.
type model struct {
	rt    *livetree.Runtime
	state *livetree.State[demo.TodoState]
	doc   *dom.Document
	faker *gofakeit.Faker

	batch    *livetree.Mutations
	document viewport.Model
	edits    viewport.Model
	err      error
	ready    bool
}

func newModel(seed uint64) (*model, error) {
	m := &model{doc: dom.New(), faker: gofakeit.New(seed), batch: &livetree.Mutations{}}
	rt, err := livetree.New("todos", demo.Todos, demo.TodosProps{
		Items: []string{"inspect the tree", "watch the batch"},
		State: func(s *livetree.State[demo.TodoState]) { m.state = s },
	})
	if err != nil {
		return nil, err
	}
	m.rt = rt
	if err := rt.Rebuild(livetree.MultiSink{m.doc, m.batch}); err != nil {
		rt.Close()
		return nil, err
	}
	return m, nil
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width/2 - 4
		height := msg.Height - 6
		if !m.ready {
			m.document = viewport.New(width, height)
			m.edits = viewport.New(width, height)
			m.ready = true
		} else {
			m.document.Width, m.document.Height = width, height
			m.edits.Width, m.edits.Height = width, height
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Add):
			text := m.faker.Verb() + " " + m.faker.Noun()
			m.apply(func(s *demo.TodoState) { s.Draft = text; s.Add() })
		case key.Matches(msg, keys.Toggle):
			m.apply(func(s *demo.TodoState) {
				if len(s.Items) > 0 {
					s.Toggle(s.Items[0].ID)
				}
			})
		case key.Matches(msg, keys.Remove):
			m.apply(func(s *demo.TodoState) {
				if len(s.Items) > 0 {
					s.Remove(s.Items[0].ID)
				}
			})
		case key.Matches(msg, keys.Reverse):
			m.apply((*demo.TodoState).Reverse)
		case key.Matches(msg, keys.Sort):
			m.apply((*demo.TodoState).SortByText)
		case key.Matches(msg, keys.Clear):
			m.apply((*demo.TodoState).ClearDone)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.edits, cmd = m.edits.Update(msg)
	return m, cmd
}

// apply changes the state and renders one pass.
func (m *model) apply(fn func(*demo.TodoState)) {
	m.state.Modify(fn)
	m.batch = &livetree.Mutations{}
	m.err = m.rt.RenderImmediate(livetree.MultiSink{m.doc, m.batch})
	if m.err == nil {
		m.err = m.doc.Err()
	}
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.document.SetContent(indent(m.doc.HTML()))
	m.edits.SetContent(m.batch.String())
}

func (m *model) View() string {
	if !m.ready {
		return "starting..."
	}
	left := paneStyle.Render(titleStyle.Render("document") + "\n" + m.document.View())
	right := paneStyle.Render(titleStyle.Render(fmt.Sprintf("last batch (%d edits)", m.batch.Len())) + "\n" + m.edits.View())

	snap := m.rt.Metrics()
	status := statusStyle.Render(fmt.Sprintf("passes %d • renders %d • memo skips %d • elements %d • scopes %d",
		snap.Passes, snap.Renders, snap.MemoizedSkips, m.rt.ElementCount(), m.rt.ScopeCount()))
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		status,
		statusStyle.Render(keys.help()),
	)
}

// indent breaks rendered HTML at tag boundaries so it fits a narrow pane.
func indent(html string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(html); {
		j := strings.IndexByte(html[i+1:], '<')
		end := len(html)
		if j >= 0 {
			end = i + 1 + j
		}
		chunk := html[i:end]
		if strings.HasPrefix(chunk, "</") && depth > 0 {
			depth--
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(chunk)
		b.WriteByte('\n')
		if strings.HasPrefix(chunk, "<") && !strings.HasPrefix(chunk, "</") && !strings.HasPrefix(chunk, "<!--") && !strings.HasPrefix(chunk, "<input") {
			depth++
		}
		i = end
	}
	return b.String()
}

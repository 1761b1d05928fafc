// Package demo holds the example apps served by the livetree binaries: a
// counter, a keyed todo list and a page combining both.
package demo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/livefir/livetree"
)

var (
	counterTemplate = livetree.NewTemplate("counter",
		livetree.El("div",
			livetree.El("button", livetree.Txt("-")).WithAttrs(livetree.StaticAttr("id", "dec"), livetree.DynAttr(0)),
			livetree.El("span", livetree.DynText(0)).WithAttrs(livetree.StaticAttr("class", "count")),
			livetree.El("button", livetree.Txt("+")).WithAttrs(livetree.StaticAttr("id", "inc"), livetree.DynAttr(1)),
		).WithAttrs(livetree.StaticAttr("class", "counter")),
	)

	todosTemplate = livetree.NewTemplate("todos",
		livetree.El("section",
			livetree.El("h1", livetree.Txt("todos")),
			livetree.El("form",
				livetree.El("input").WithAttrs(
					livetree.StaticAttr("id", "new"),
					livetree.StaticAttr("placeholder", "What needs doing?"),
					livetree.DynAttr(0),
					livetree.DynAttr(1),
				),
				livetree.El("button", livetree.Txt("Add")).WithAttrs(livetree.StaticAttr("id", "add"), livetree.DynAttr(2)),
			),
			livetree.El("ul", livetree.Dyn(0)).WithAttrs(livetree.StaticAttr("class", "todo-list")),
			livetree.El("footer",
				livetree.Dyn(1),
				livetree.El("button", livetree.Txt("Clear done")).WithAttrs(livetree.StaticAttr("id", "clear"), livetree.DynAttr(3)),
			),
		).WithAttrs(livetree.StaticAttr("class", "todoapp")),
	)

	itemTemplate = livetree.NewTemplate("todo-item",
		livetree.El("li",
			livetree.El("input").WithAttrs(livetree.StaticAttr("type", "checkbox"), livetree.DynAttr(2), livetree.DynAttr(3)),
			livetree.El("span", livetree.DynText(0)),
			livetree.El("button", livetree.Txt("x")).WithAttrs(livetree.StaticAttr("class", "destroy"), livetree.DynAttr(4)),
		).WithAttrs(livetree.DynAttr(0), livetree.DynAttr(1)),
	)

	statsTemplate = livetree.NewTemplate("todo-stats",
		livetree.El("span", livetree.DynText(0), livetree.Txt(" left, "), livetree.DynText(1), livetree.Txt(" done")),
	)

	pageTemplate = livetree.NewTemplate("page",
		livetree.El("main", livetree.Dyn(0), livetree.Dyn(1)),
	)
)

// Templates returns every template the demo apps use.
func Templates() []*livetree.Template {
	return []*livetree.Template{counterTemplate, todosTemplate, itemTemplate, statsTemplate, pageTemplate}
}

// CounterProps configures Counter.
type CounterProps struct {
	Start int
	// Tick increments the counter periodically from a background task when
	// positive.
	Tick time.Duration
}

// Counter renders a value with increment and decrement buttons.
func Counter(cx *livetree.Scope, props CounterProps) *livetree.VNode {
	count := livetree.UseState(cx, func() int { return props.Start })
	livetree.UseHook(cx, func() livetree.TaskID {
		if props.Tick <= 0 {
			return 0
		}
		return cx.Spawn(func(ctx context.Context) {
			ticker := time.NewTicker(props.Tick)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					count.Modify(func(v *int) { *v++ })
				}
			}
		})
	})

	return livetree.NewVNode(counterTemplate,
		[]livetree.DynamicNode{livetree.Textf("%d", count.Get())},
		[]livetree.Attribute{
			livetree.OnEvent("click", func(*livetree.Event) { count.Modify(func(v *int) { *v-- }) }),
			livetree.OnEvent("click", func(*livetree.Event) { count.Modify(func(v *int) { *v++ }) }),
		},
	)
}

// Todo is one entry of the todo list.
type Todo struct {
	ID   int
	Text string
	Done bool
}

// TodoState is the state of the todo list.
type TodoState struct {
	Items []Todo
	Draft string
	Next  int
}

// Add appends the draft as a new item.
func (s *TodoState) Add() {
	text := strings.TrimSpace(s.Draft)
	if text == "" {
		return
	}
	s.Next++
	s.Items = append(s.Items, Todo{ID: s.Next, Text: text})
	s.Draft = ""
}

// Toggle flips the done flag of the item with the given id.
func (s *TodoState) Toggle(id int) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items[i].Done = !s.Items[i].Done
		}
	}
}

// Remove deletes the item with the given id.
func (s *TodoState) Remove(id int) {
	s.Items = filter(s.Items, func(t Todo) bool { return t.ID != id })
}

// ClearDone deletes every finished item.
func (s *TodoState) ClearDone() {
	s.Items = filter(s.Items, func(t Todo) bool { return !t.Done })
}

// Reverse reverses the list order.
func (s *TodoState) Reverse() {
	for i, j := 0, len(s.Items)-1; i < j; i, j = i+1, j-1 {
		s.Items[i], s.Items[j] = s.Items[j], s.Items[i]
	}
}

// SortByText orders items alphabetically, keeping ties in id order.
func (s *TodoState) SortByText() {
	sort.SliceStable(s.Items, func(i, j int) bool { return s.Items[i].Text < s.Items[j].Text })
}

func filter(items []Todo, keep func(Todo) bool) []Todo {
	out := make([]Todo, 0, len(items))
	for _, t := range items {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// TodosProps seeds the todo list.
type TodosProps struct {
	Items []string
	// State receives the list's state handle on first render, for drivers
	// that manipulate the list without events.
	State func(*livetree.State[TodoState])
}

// Todos renders a keyed todo list. Items are keyed by id, so reordering moves
// nodes instead of rewriting them.
func Todos(cx *livetree.Scope, props TodosProps) *livetree.VNode {
	state := livetree.UseState(cx, func() TodoState {
		var s TodoState
		for _, text := range props.Items {
			s.Draft = text
			s.Add()
		}
		return s
	})
	livetree.UseHook(cx, func() bool {
		if props.State != nil {
			props.State(state)
		}
		return true
	})
	s := state.Get()

	rows := make([]*livetree.VNode, len(s.Items))
	left := 0
	for i, t := range s.Items {
		if !t.Done {
			left++
		}
		rows[i] = todoItem(state, t)
	}

	return livetree.NewVNode(todosTemplate,
		[]livetree.DynamicNode{
			livetree.Fragment(rows...),
			livetree.Component("todo-stats", Stats, StatsProps{Left: left, Done: len(s.Items) - left}),
		},
		[]livetree.Attribute{
			livetree.VolatileAttr("value", livetree.Str(s.Draft)),
			livetree.OnEvent("input", func(ev *livetree.Event) {
				text, _ := ev.Data.(string)
				state.Modify(func(s *TodoState) { s.Draft = text })
			}),
			livetree.OnEvent("click", func(*livetree.Event) { state.Modify((*TodoState).Add) }),
			livetree.OnEvent("click", func(*livetree.Event) { state.Modify((*TodoState).ClearDone) }),
		},
	)
}

func todoItem(state *livetree.State[TodoState], t Todo) *livetree.VNode {
	class := livetree.None()
	if t.Done {
		class = livetree.Str("done")
	}
	id := t.ID
	return livetree.NewVNode(itemTemplate,
		[]livetree.DynamicNode{livetree.Text(t.Text)},
		[]livetree.Attribute{
			livetree.Attr("class", class),
			livetree.Attr("data-id", livetree.Int(int64(id))),
			livetree.VolatileAttr("checked", boolAttr(t.Done)),
			livetree.OnEvent("click", func(*livetree.Event) {
				state.Modify(func(s *TodoState) { s.Toggle(id) })
			}),
			livetree.OnEvent("click", func(*livetree.Event) {
				state.Modify(func(s *TodoState) { s.Remove(id) })
			}),
		},
	).WithKey(fmt.Sprint(id))
}

func boolAttr(b bool) livetree.AttributeValue {
	if b {
		return livetree.Bool(true)
	}
	return livetree.None()
}

// StatsProps is the summary shown in the todo footer.
type StatsProps struct {
	Left int
	Done int
}

// Stats renders the footer summary. It only re-renders when the counts change.
func Stats(cx *livetree.Scope, props StatsProps) *livetree.VNode {
	return livetree.NewVNode(statsTemplate,
		[]livetree.DynamicNode{livetree.Textf("%d", props.Left), livetree.Textf("%d", props.Done)},
		nil,
	)
}

// Page combines the counter and the todo list.
func Page(cx *livetree.Scope) *livetree.VNode {
	return livetree.NewVNode(pageTemplate,
		[]livetree.DynamicNode{
			livetree.Component("counter", Counter, CounterProps{}),
			livetree.Component("todos", Todos, TodosProps{Items: []string{"write docs", "ship it"}}),
		},
		nil,
	)
}

// Names lists the apps New understands.
func Names() []string {
	return []string{"counter", "page", "todos"}
}

// New creates a runtime for the named app.
func New(name string, options ...livetree.Option) (*livetree.Runtime, error) {
	switch name {
	case "counter":
		return livetree.New("counter", Counter, CounterProps{}, options...)
	case "todos":
		return livetree.New("todos", Todos, TodosProps{}, options...)
	case "page", "":
		return livetree.NewApp("page", Page, options...)
	default:
		return nil, fmt.Errorf("unknown app %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

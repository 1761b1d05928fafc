package livetree_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/livefir/livetree"
)

func fragmentChildren(t *testing.T, h *harness) []*livetree.VNode {
	t.Helper()
	s, ok := h.rt.Scope(h.rt.RootScope())
	if !ok {
		t.Fatal("root scope is not live")
	}
	f, ok := s.Root().DynamicNodes[0].(*livetree.VFragment)
	if !ok {
		t.Fatalf("root slot holds %T, want *VFragment", s.Root().DynamicNodes[0])
	}
	return f.Children
}

func idsByKey(t *testing.T, h *harness) map[string]livetree.ElementID {
	t.Helper()
	out := map[string]livetree.ElementID{}
	for _, c := range fragmentChildren(t, h) {
		out[c.Key] = c.RootIDs()[0]
	}
	return out
}

func TestRebuildMutations(t *testing.T) {
	ms := &livetree.Mutations{}
	rt, err := livetree.NewApp("app", func(cx *livetree.Scope) *livetree.VNode {
		return livetree.NewVNode(textDiv, []livetree.DynamicNode{livetree.Text("a")}, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if err := rt.Rebuild(ms); err != nil {
		t.Fatal(err)
	}
	assertOps(t, ms,
		livetree.OpRegisterTemplate,
		livetree.OpLoadTemplate,
		livetree.OpHydrateText,
		livetree.OpAppendChildren,
	)
	if got := ms.Edits[3]; got.ID != livetree.RootID || got.M != 1 {
		t.Errorf("AppendChildren = %s, want root and 1 node", got)
	}
	if err := rt.Rebuild(ms); err != livetree.ErrAlreadyBuilt {
		t.Errorf("second Rebuild = %v, want ErrAlreadyBuilt", err)
	}
}

func TestScenarioTextUpdate(t *testing.T) {
	value := "a"
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return livetree.NewVNode(textDiv, []livetree.DynamicNode{livetree.Text(value)}, nil)
	})
	root, _ := h.rt.Scope(h.rt.RootScope())
	before := root.Root().RootIDs()

	value = "b"
	ms := h.update()

	assertOps(t, ms, livetree.OpSetText)
	if got := ms.Edits[0].Value; got != "b" {
		t.Errorf("SetText value = %q, want %q", got, "b")
	}
	if after := root.Root().RootIDs(); after[0] != before[0] {
		t.Errorf("div identity changed from %d to %d", before[0], after[0])
	}
	if got, want := h.html(), "<div>b</div>"; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
}

func TestScenarioUnkeyedTruncate(t *testing.T) {
	values := []string{"x", "x", "x"}
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return items(false, values...)
	})

	values = values[:2]
	ms := h.update()

	assertOps(t, ms, livetree.OpRemove)
	if got, want := h.html(), "<ul><li>x</li><li>x</li></ul>"; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
}

func TestScenarioKeyedSwap(t *testing.T) {
	keys := []string{"A", "B", "C"}
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return items(true, keys...)
	})
	before := idsByKey(t, h)

	keys = []string{"B", "A", "C"}
	ms := h.update()

	if got := countOps(ms, livetree.OpPushRoot); got != 1 {
		t.Errorf("%d nodes moved, want 1:\n%s", got, ms)
	}
	if got := countOps(ms, livetree.OpInsertBefore) + countOps(ms, livetree.OpInsertAfter); got != 1 {
		t.Errorf("%d insert batches, want 1:\n%s", got, ms)
	}
	if ms.Len() != 2 {
		t.Errorf("batch has %d mutations, want 2:\n%s", ms.Len(), ms)
	}
	after := idsByKey(t, h)
	for _, k := range []string{"A", "B", "C"} {
		if before[k] != after[k] {
			t.Errorf("identity of %s changed from %d to %d", k, before[k], after[k])
		}
	}
	if got, want := h.html(), "<ul><li>B</li><li>A</li><li>C</li></ul>"; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
}

func TestKeyedDiff(t *testing.T) {
	tests := []struct {
		name   string
		from   []string
		to     []string
		moves  int
		create int
		remove int
	}{
		{name: "append", from: []string{"a", "b"}, to: []string{"a", "b", "c"}, create: 1},
		{name: "prepend", from: []string{"b", "c"}, to: []string{"a", "b", "c"}, create: 1},
		{name: "insert middle", from: []string{"a", "c"}, to: []string{"a", "b", "c"}, create: 1},
		{name: "remove middle", from: []string{"a", "b", "c"}, to: []string{"a", "c"}, remove: 1},
		{name: "remove all but one", from: []string{"a", "b", "c", "d"}, to: []string{"c"}, remove: 3},
		{name: "reverse", from: []string{"a", "b", "c", "d", "e", "f"}, to: []string{"f", "e", "d", "c", "b", "a"}, moves: 5},
		{name: "rotate", from: []string{"a", "b", "c", "d"}, to: []string{"b", "c", "d", "a"}, moves: 1},
		{name: "swap ends", from: []string{"a", "b", "c", "d", "e"}, to: []string{"e", "b", "c", "d", "a"}, moves: 2},
		{name: "replace all", from: []string{"a", "b"}, to: []string{"c", "d", "e"}, create: 3, remove: 2},
		{name: "move and create", from: []string{"a", "b", "c"}, to: []string{"c", "x", "a"}, moves: 1, create: 1, remove: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := tt.from
			h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
				return items(true, keys...)
			})
			before := idsByKey(t, h)

			keys = tt.to
			ms := h.update()

			if got := countOps(ms, livetree.OpPushRoot); got != tt.moves {
				t.Errorf("moves = %d, want %d:\n%s", got, tt.moves, ms)
			}
			if got := countOps(ms, livetree.OpLoadTemplate); got != tt.create {
				t.Errorf("creates = %d, want %d:\n%s", got, tt.create, ms)
			}
			if got := countOps(ms, livetree.OpRemove) + countOps(ms, livetree.OpReplaceWith); got != tt.remove {
				t.Errorf("removes = %d, want %d:\n%s", got, tt.remove, ms)
			}
			after := idsByKey(t, h)
			for k, id := range after {
				if old, ok := before[k]; ok && old != id {
					t.Errorf("surviving key %s changed identity %d -> %d", k, old, id)
				}
			}

			want := freshHTML(t, func(cx *livetree.Scope) *livetree.VNode { return items(true, tt.to...) })
			if got := h.html(); got != want {
				t.Errorf("html = %q, want %q", got, want)
			}
		})
	}
}

func randomKeys(f *gofakeit.Faker, pool []string) []string {
	var keys []string
	for _, k := range pool {
		if f.Bool() {
			keys = append(keys, k)
		}
	}
	f.ShuffleAnySlice(keys)
	return keys
}

func TestRandomListsMatchFreshRender(t *testing.T) {
	pool := make([]string, 12)
	for i := range pool {
		pool[i] = fmt.Sprintf("k%02d", i)
	}

	for _, keyed := range []bool{true, false} {
		t.Run(fmt.Sprintf("keyed=%v", keyed), func(t *testing.T) {
			f := gofakeit.New(42)
			var values []string
			h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
				return items(keyed, values...)
			})

			for step := 0; step < 60; step++ {
				keys := randomKeys(f, pool)
				next := make([]string, len(keys))
				for i, k := range keys {
					next[i] = k
					if !keyed && f.Bool() {
						next[i] = k + "-" + f.Word()
					}
				}
				values = next
				h.update()

				want := freshHTML(t, func(cx *livetree.Scope) *livetree.VNode { return items(keyed, next...) })
				if got := h.html(); got != want {
					t.Fatalf("step %d (%v): html = %q, want %q", step, next, got, want)
				}
			}
		})
	}
}

type labelProps struct {
	Label string
}

func TestIdempotentRerender(t *testing.T) {
	card := livetree.NewTemplate("card",
		livetree.El("section",
			livetree.El("h2", livetree.DynText(0)),
			livetree.Dyn(1),
			livetree.Dyn(2),
		).WithAttrs(livetree.StaticAttr("class", "card"), livetree.DynAttr(0), livetree.DynAttr(1)),
	)
	child := func(cx *livetree.Scope, p labelProps) *livetree.VNode {
		return livetree.NewVNode(textDiv, []livetree.DynamicNode{livetree.Text(p.Label)}, nil)
	}
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return livetree.NewVNode(card,
			[]livetree.DynamicNode{
				livetree.Text("title"),
				items(true, "a", "b").DynamicNodes[0],
				livetree.Component("child", child, labelProps{Label: "x"}),
			},
			[]livetree.Attribute{
				livetree.Attr("data-n", livetree.Int(3)),
				livetree.OnEvent("click", func(*livetree.Event) {}),
			},
		)
	})

	if ms := h.update(); ms.Len() != 0 {
		t.Errorf("re-rendering an identical tree emitted:\n%s", ms)
	}
}

func TestIdentityStableAcrossRenders(t *testing.T) {
	label := "one"
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return items(true, "a", "b", label)
	})
	before := idsByKey(t, h)

	label = "c"
	h.update()
	after := idsByKey(t, h)
	for _, k := range []string{"a", "b"} {
		if before[k] != after[k] {
			t.Errorf("identity of %s changed from %d to %d", k, before[k], after[k])
		}
	}
}

func TestElementCountReturnsToBaseline(t *testing.T) {
	show := true
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		if !show {
			return livetree.NewVNode(slot, []livetree.DynamicNode{livetree.Placeholder()}, nil)
		}
		return livetree.NewVNode(slot, []livetree.DynamicNode{items(true, "a", "b", "c").DynamicNodes[0]}, nil)
	})

	baseline := h.rt.ElementCount()
	for i := 0; i < 5; i++ {
		show = !show
		h.update()
		show = !show
		h.update()
	}
	if got := h.rt.ElementCount(); got != baseline {
		t.Errorf("ElementCount = %d after toggling, want %d", got, baseline)
	}
}

func TestReplaceTemplateOfDifferentShape(t *testing.T) {
	para := livetree.NewTemplate("para", livetree.El("p", livetree.Txt("static")), livetree.El("p", livetree.DynText(0)))
	usePara := false
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		if usePara {
			return livetree.NewVNode(para, []livetree.DynamicNode{livetree.Text("dyn")}, nil)
		}
		return livetree.NewVNode(textDiv, []livetree.DynamicNode{livetree.Text("a")}, nil)
	})

	usePara = true
	ms := h.update()
	if got := countOps(ms, livetree.OpReplaceWith); got != 1 {
		t.Errorf("ReplaceWith count = %d, want 1:\n%s", got, ms)
	}
	if got, want := h.html(), "<p>static</p><p>dyn</p>"; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}

	usePara = false
	ms = h.update()
	if got := countOps(ms, livetree.OpRemove); got != 1 {
		t.Errorf("second root not removed:\n%s", ms)
	}
	if got, want := h.html(), "<div>a</div>"; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
}

func TestDynamicKindChanges(t *testing.T) {
	child := func(cx *livetree.Scope, p labelProps) *livetree.VNode {
		return livetree.NewVNode(textDiv, []livetree.DynamicNode{livetree.Text(p.Label)}, nil)
	}
	kinds := []func() livetree.DynamicNode{
		func() livetree.DynamicNode { return livetree.Text("text") },
		func() livetree.DynamicNode { return livetree.Placeholder() },
		func() livetree.DynamicNode { return items(false, "a", "b").DynamicNodes[0] },
		func() livetree.DynamicNode { return livetree.Component("child", child, labelProps{Label: "c"}) },
	}
	wrapper := livetree.NewTemplate("wrapper", livetree.El("main", livetree.Dyn(0)))

	for i := range kinds {
		for j := range kinds {
			if i == j {
				continue
			}
			t.Run(fmt.Sprintf("%d->%d", i, j), func(t *testing.T) {
				current := kinds[i]
				h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
					return livetree.NewVNode(wrapper, []livetree.DynamicNode{current()}, nil)
				})
				current = kinds[j]
				h.update()

				want := freshHTML(t, func(cx *livetree.Scope) *livetree.VNode {
					return livetree.NewVNode(wrapper, []livetree.DynamicNode{kinds[j]()}, nil)
				})
				if got := h.html(); got != want {
					t.Errorf("html = %q, want %q", got, want)
				}
			})
		}
	}
}

func TestAttributeDiff(t *testing.T) {
	button := livetree.NewTemplate("button",
		livetree.El("button", livetree.Txt("go")).WithAttrs(livetree.StaticAttr("id", "btn"), livetree.DynAttr(0), livetree.DynAttr(1)),
	)
	attrs := []livetree.Attribute{
		livetree.Attr("class", livetree.Str("a")),
		livetree.Attr("tabindex", livetree.Int(1)),
	}
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		return livetree.NewVNode(button, nil, append([]livetree.Attribute(nil), attrs...))
	})

	steps := []struct {
		name  string
		attrs []livetree.Attribute
		want  []livetree.Op
		html  string
	}{
		{
			name:  "unchanged",
			attrs: attrs,
			html:  `<button id="btn" class="a" tabindex="1">go</button>`,
		},
		{
			name:  "value change",
			attrs: []livetree.Attribute{livetree.Attr("class", livetree.Str("b")), attrs[1]},
			want:  []livetree.Op{livetree.OpSetAttribute},
			html:  `<button id="btn" class="b" tabindex="1">go</button>`,
		},
		{
			name:  "removal",
			attrs: []livetree.Attribute{livetree.Attr("class", livetree.Str("b")), livetree.Attr("tabindex", livetree.None())},
			want:  []livetree.Op{livetree.OpSetAttribute},
			html:  `<button id="btn" class="b">go</button>`,
		},
		{
			name:  "volatile rewritten when equal",
			attrs: []livetree.Attribute{livetree.VolatileAttr("class", livetree.Str("b")), livetree.Attr("tabindex", livetree.None())},
			want:  []livetree.Op{livetree.OpSetAttribute},
			html:  `<button id="btn" class="b">go</button>`,
		},
		{
			name:  "value to listener",
			attrs: []livetree.Attribute{livetree.OnEvent("click", func(*livetree.Event) {}), livetree.Attr("tabindex", livetree.None())},
			want:  []livetree.Op{livetree.OpSetAttribute, livetree.OpNewEventListener},
			html:  `<button id="btn">go</button>`,
		},
		{
			name:  "listener swap",
			attrs: []livetree.Attribute{livetree.OnEvent("click", func(*livetree.Event) {}), livetree.Attr("tabindex", livetree.None())},
			html:  `<button id="btn">go</button>`,
		},
		{
			name:  "listener to value",
			attrs: []livetree.Attribute{livetree.Attr("class", livetree.Str("c")), livetree.Attr("tabindex", livetree.None())},
			want:  []livetree.Op{livetree.OpRemoveEventListener, livetree.OpSetAttribute},
			html:  `<button id="btn" class="c">go</button>`,
		},
	}

	for _, step := range steps {
		attrs = step.attrs
		ms := h.update()
		t.Run(step.name, func(t *testing.T) {
			if len(step.want) == 0 {
				if ms.Len() != 0 {
					t.Errorf("expected no mutations, got:\n%s", ms)
				}
			} else {
				assertOps(t, ms, step.want...)
			}
			if got := h.html(); got != step.html {
				t.Errorf("html = %q, want %q", got, step.html)
			}
		})
	}
}

func TestVolatileAttr(t *testing.T) {
	field := livetree.NewTemplate("field",
		livetree.El("input").WithAttrs(livetree.StaticAttr("id", "field"), livetree.DynAttr(0)),
	)
	volatile := true
	h := newHarness(t, func(cx *livetree.Scope) *livetree.VNode {
		a := livetree.Attr("value", livetree.Str("a"))
		a.Volatile = volatile
		return livetree.NewVNode(field, nil, []livetree.Attribute{a})
	})

	if ms := h.update(); ms.Len() != 0 {
		t.Errorf("identical re-render emitted:\n%s", ms)
	}

	volatile = false
	assertOps(t, h.update(), livetree.OpSetAttribute)
	if got, want := h.html(), `<input id="field" value="a"/>`; got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
	if ms := h.update(); ms.Len() != 0 {
		t.Errorf("re-render after the flip emitted:\n%s", ms)
	}
}

func TestTemplateMismatchPanics(t *testing.T) {
	cv := expectViolation(t, func() {
		rt, err := livetree.NewApp("bad", func(cx *livetree.Scope) *livetree.VNode {
			return livetree.NewVNode(textDiv, nil, nil)
		})
		if err != nil {
			t.Fatal(err)
		}
		_ = rt.Rebuild(livetree.NoopSink{})
	})
	if cv.Rule != "template" {
		t.Errorf("rule = %q, want template", cv.Rule)
	}
	if !strings.Contains(cv.Detail, "text-div") {
		t.Errorf("detail %q does not name the template", cv.Detail)
	}
}

func TestKeyViolations(t *testing.T) {
	tests := []struct {
		name     string
		children func() []*livetree.VNode
	}{
		{
			name: "duplicate key",
			children: func() []*livetree.VNode {
				return items(true, "a", "a").DynamicNodes[0].(*livetree.VFragment).Children
			},
		},
		{
			name: "mixed keyed and unkeyed",
			children: func() []*livetree.VNode {
				c := items(true, "a", "b").DynamicNodes[0].(*livetree.VFragment).Children
				c[1].Key = ""
				return c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := expectViolation(t, func() {
				rt, err := livetree.NewApp("keys", func(cx *livetree.Scope) *livetree.VNode {
					return livetree.NewVNode(list, []livetree.DynamicNode{livetree.Fragment(tt.children()...)}, nil)
				})
				if err != nil {
					t.Fatal(err)
				}
				_ = rt.Rebuild(livetree.NoopSink{})
			})
			if cv.Rule != "keys" {
				t.Errorf("rule = %q, want keys", cv.Rule)
			}
		})
	}
}

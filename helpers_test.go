package livetree_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/livefir/livetree"
	"github.com/livefir/livetree/dom"
)

// harness mounts an app into a dom.Document with structural assertions
// enabled, so every pass also checks the runtime's bookkeeping.
type harness struct {
	t   *testing.T
	rt  *livetree.Runtime
	doc *dom.Document
}

func debugConfig() *livetree.Config {
	config := livetree.DefaultConfig()
	config.Debug = true
	return config
}

func newHarness(t *testing.T, render func(cx *livetree.Scope) *livetree.VNode, options ...livetree.Option) *harness {
	t.Helper()

	options = append([]livetree.Option{livetree.WithConfig(debugConfig())}, options...)
	rt, err := livetree.NewApp("app", render, options...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	h := &harness{t: t, rt: rt, doc: dom.New()}
	if err := rt.Rebuild(h.doc); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	h.check()
	return h
}

// update re-renders the root scope and returns the mutations it produced.
func (h *harness) update() *livetree.Mutations {
	h.t.Helper()
	if err := h.rt.MarkDirty(h.rt.RootScope(), livetree.LaneHigh); err != nil {
		h.t.Fatalf("MarkDirty: %v", err)
	}
	return h.flush()
}

// flush runs the scheduler until idle.
func (h *harness) flush() *livetree.Mutations {
	h.t.Helper()
	ms := &livetree.Mutations{}
	if err := h.rt.RenderImmediate(livetree.MultiSink{ms, h.doc}); err != nil {
		h.t.Fatalf("RenderImmediate: %v", err)
	}
	h.check()
	return ms
}

func (h *harness) check() {
	h.t.Helper()
	if err := h.doc.Err(); err != nil {
		h.t.Fatalf("backend rejected mutations: %v", err)
	}
	if d := h.doc.StackDepth(); d != 0 {
		h.t.Fatalf("%d nodes left on the staging stack", d)
	}
	if err := h.rt.CheckInvariants(); err != nil {
		h.t.Fatalf("CheckInvariants: %v", err)
	}
}

func (h *harness) html() string {
	return h.doc.HTML()
}

// freshHTML renders an app from scratch and returns its HTML.
func freshHTML(t *testing.T, render func(cx *livetree.Scope) *livetree.VNode) string {
	t.Helper()
	return newHarness(t, render).html()
}

func ops(ms *livetree.Mutations) []livetree.Op {
	out := make([]livetree.Op, len(ms.Edits))
	for i, m := range ms.Edits {
		out[i] = m.Op
	}
	return out
}

func countOps(ms *livetree.Mutations, op livetree.Op) int {
	n := 0
	for _, m := range ms.Edits {
		if m.Op == op {
			n++
		}
	}
	return n
}

func assertOps(t *testing.T, ms *livetree.Mutations, want ...livetree.Op) {
	t.Helper()
	if diff := cmp.Diff(want, ops(ms)); diff != "" {
		t.Errorf("mutation ops mismatch (-want +got):\n%s\nfull batch:\n%s", diff, ms)
	}
}

// expectViolation runs fn and returns the contract violation it raised.
func expectViolation(t *testing.T, fn func()) (cv *livetree.ContractViolation) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a contract violation, got none")
		}
		var ok bool
		if cv, ok = r.(*livetree.ContractViolation); !ok {
			t.Fatalf("expected *ContractViolation, got %T: %v", r, r)
		}
	}()
	fn()
	return nil
}

var (
	textDiv  = livetree.NewTemplate("text-div", livetree.El("div", livetree.DynText(0)))
	listItem = livetree.NewTemplate("list-item", livetree.El("li", livetree.DynText(0)))
	list     = livetree.NewTemplate("list", livetree.El("ul", livetree.Dyn(0)))
	slot     = livetree.NewTemplate("slot", livetree.Dyn(0))
)

func items(keyed bool, values ...string) *livetree.VNode {
	children := make([]*livetree.VNode, len(values))
	for i, v := range values {
		children[i] = livetree.NewVNode(listItem, []livetree.DynamicNode{livetree.Text(v)}, nil)
		if keyed {
			children[i].WithKey(v)
		}
	}
	return livetree.NewVNode(list, []livetree.DynamicNode{livetree.Fragment(children...)}, nil)
}

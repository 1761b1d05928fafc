package wire_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/livefir/livetree"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/wire"
)

var card = livetree.NewTemplate("card",
	livetree.El("section",
		livetree.El("h2", livetree.DynText(0)).WithAttrs(livetree.StaticAttr("class", "title")),
		livetree.El("button", livetree.Txt("go")).WithAttrs(livetree.DynAttr(1)),
		livetree.Dyn(1),
	).WithAttrs(livetree.DynAttr(0)),
)

var row = livetree.NewTemplate("row", livetree.El("p", livetree.DynText(0)))

func batch(t *testing.T) *livetree.Mutations {
	t.Helper()
	rt, err := livetree.NewApp("card", func(cx *livetree.Scope) *livetree.VNode {
		rows := []*livetree.VNode{
			livetree.NewVNode(row, []livetree.DynamicNode{livetree.Text("one")}, nil).WithKey("1"),
			livetree.NewVNode(row, []livetree.DynamicNode{livetree.Text("two")}, nil).WithKey("2"),
		}
		return livetree.NewVNode(card,
			[]livetree.DynamicNode{livetree.Text("Title"), livetree.Fragment(rows...)},
			[]livetree.Attribute{
				livetree.Attr("data-n", livetree.Int(2)),
				livetree.OnEvent("click", func(*livetree.Event) {}),
			})
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	ms := &livetree.Mutations{}
	if err := rt.Rebuild(ms); err != nil {
		t.Fatal(err)
	}
	return ms
}

func render(t *testing.T, ms *livetree.Mutations) string {
	t.Helper()
	doc := dom.New()
	if err := doc.Apply(ms); err != nil {
		t.Fatal(err)
	}
	return doc.HTML()
}

var batchOpts = cmp.Options{
	cmpopts.IgnoreUnexported(livetree.Template{}),
	cmpopts.EquateEmpty(),
}

func TestCodecsRoundTripBatch(t *testing.T) {
	ms := batch(t)
	want := render(t, ms)

	for _, codec := range []wire.Codec{wire.CBOR{}, wire.JSON{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(&wire.Envelope{Kind: wire.KindBatch, Seq: 7, Batch: ms})
			if err != nil {
				t.Fatal(err)
			}
			env, err := codec.Unmarshal(data)
			if err != nil {
				t.Fatal(err)
			}
			if env.Seq != 7 {
				t.Errorf("seq = %d, want 7", env.Seq)
			}
			if diff := cmp.Diff(ms.Edits, env.Batch.Edits, batchOpts); diff != "" {
				t.Errorf("edits mismatch (-want +got):\n%s", diff)
			}
			if got := render(t, env.Batch); got != want {
				t.Errorf("decoded batch renders %q, want %q", got, want)
			}
		})
	}
}

func TestListenersStayLocal(t *testing.T) {
	ms := batch(t)
	for _, m := range ms.Edits {
		if m.Attr != nil && m.Attr.Kind == livetree.ValueListener {
			t.Errorf("listener value in %s", m)
		}
	}
	data, err := wire.JSON{}.Marshal(&wire.Envelope{Kind: wire.KindBatch, Batch: ms})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"op":"NewEventListener"`) {
		t.Errorf("listener registration missing from %s", data)
	}
}

func TestCanonicalBatches(t *testing.T) {
	a, err := wire.EncodeBatch(batch(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := wire.EncodeBatch(batch(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical batches encoded differently")
	}

	decoded, err := wire.DecodeBatch(a)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Len() != batch(t).Len() {
		t.Errorf("decoded %d edits", decoded.Len())
	}
	if _, err := wire.DecodeBatch([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage decoded without error")
	}
}

func TestClientEvent(t *testing.T) {
	for _, codec := range []wire.Codec{wire.CBOR{}, wire.JSON{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := &wire.Envelope{Kind: wire.KindEvent, Event: &wire.ClientEvent{Name: "input", Element: 4, Value: "abc"}}
			data, err := codec.Marshal(in)
			if err != nil {
				t.Fatal(err)
			}
			env, err := codec.Unmarshal(data)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(in, env); diff != "" {
				t.Errorf("envelope mismatch (-want +got):\n%s", diff)
			}

			ev := env.Event.ToEvent()
			if ev.Name != "input" || ev.Element != 4 || ev.Data != "abc" {
				t.Errorf("event = %+v", ev)
			}
			if ev.Lane != livetree.LaneImmediate {
				t.Errorf("input lane = %s, want immediate", ev.Lane)
			}
			if lane := (wire.ClientEvent{Name: "onclick", Element: 4}).ToEvent().Lane; lane != livetree.LaneHigh {
				t.Errorf("click lane = %s, want high", lane)
			}
		})
	}
}

func TestEnvelopeValidation(t *testing.T) {
	tests := []struct {
		name string
		env  wire.Envelope
	}{
		{"unknown kind", wire.Envelope{Kind: "ping"}},
		{"batch without batch", wire.Envelope{Kind: wire.KindBatch}},
		{"event without name", wire.Envelope{Kind: wire.KindEvent, Event: &wire.ClientEvent{}}},
		{"error without message", wire.Envelope{Kind: wire.KindError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := wire.JSON{}.Marshal(&tt.env)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := (wire.JSON{}).Unmarshal(data); err == nil {
				t.Error("invalid envelope accepted")
			}
		})
	}
}

func TestCodecFor(t *testing.T) {
	for name, want := range map[string]string{"": "cbor", "cbor": "cbor", "json": "json"} {
		codec, err := wire.CodecFor(name)
		if err != nil || codec.Name() != want {
			t.Errorf("CodecFor(%q) = %v, %v", name, codec, err)
		}
	}
	if _, err := wire.CodecFor("xml"); err == nil {
		t.Error("CodecFor accepted xml")
	}
}

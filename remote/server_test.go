package remote_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livefir/livetree"
	"github.com/livefir/livetree/remote"
	"github.com/livefir/livetree/wire"
)

var counter = livetree.NewTemplate("counter",
	livetree.El("div",
		livetree.El("button", livetree.Txt("+")).WithAttrs(livetree.StaticAttr("id", "inc"), livetree.DynAttr(0)),
		livetree.El("span", livetree.DynText(0)),
	),
)

func counterApp(cx *livetree.Scope) *livetree.VNode {
	count := livetree.UseState(cx, func() int { return 0 })
	return livetree.NewVNode(counter,
		[]livetree.DynamicNode{livetree.Textf("%d", count.Get())},
		[]livetree.Attribute{livetree.OnEvent("click", func(*livetree.Event) {
			count.Modify(func(v *int) { *v++ })
		})},
	)
}

func factory(r *http.Request) (*livetree.Runtime, error) {
	return livetree.NewApp("counter", counterApp)
}

type recorder struct {
	mu   sync.Mutex
	seqs map[string][]uint64
}

func (r *recorder) Record(ctx context.Context, session string, seq uint64, ms *livetree.Mutations) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seqs == nil {
		r.seqs = make(map[string][]uint64)
	}
	r.seqs[session] = append(r.seqs[session], seq)
	return nil
}

func (r *recorder) get(session string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.seqs[session]...)
}

func serve(t *testing.T, opts ...remote.ServerOption) (*remote.Server, string) {
	t.Helper()
	s := remote.NewServer(factory, opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, codec wire.Codec) *remote.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := remote.Dial(ctx, url, codec)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c *remote.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Next(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSession(t *testing.T) {
	for _, codec := range []wire.Codec{wire.CBOR{}, wire.JSON{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			rec := &recorder{}
			_, url := serve(t, remote.WithCodec(codec), remote.WithRecorder(rec))
			c := dial(t, url, codec)

			next(t, c)
			doc := c.Document()
			if got, want := doc.HTML(), `<div><button id="inc">+</button><span>0</span></div>`; got != want {
				t.Fatalf("initial html = %q, want %q", got, want)
			}

			id, ok := doc.Find("id", "inc")
			if !ok {
				t.Fatal("button not found")
			}
			for i := 1; i <= 2; i++ {
				if err := c.Send(wire.ClientEvent{Name: "click", Element: id}); err != nil {
					t.Fatal(err)
				}
				next(t, c)
			}
			if got := doc.Text(); got != "+2" {
				t.Errorf("text = %q after two clicks", got)
			}
			if c.Seq() != 3 {
				t.Errorf("seq = %d, want 3", c.Seq())
			}
			if c.Session() == "" {
				t.Fatal("no session id")
			}
			if got := rec.get(c.Session()); len(got) != 3 || got[2] != 3 {
				t.Errorf("recorded seqs = %v", got)
			}
		})
	}
}

func TestMalformedEnvelope(t *testing.T) {
	_, url := serve(t, remote.WithCodec(wire.JSON{}))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"event"}`)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	env, err := wire.JSON{}.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if env.Kind != wire.KindError || !strings.Contains(env.Error, "event") {
		t.Errorf("reply = %+v, want an error envelope", env)
	}
}

func TestSnapshot(t *testing.T) {
	s := remote.NewServer(factory)
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get(remote.CodecHeader) != "cbor" {
		t.Errorf("codec header = %q", resp.Header.Get(remote.CodecHeader))
	}
	if !strings.Contains(string(body), "<span>0</span>") {
		t.Errorf("snapshot = %q", body)
	}

	resp, err = http.Post(srv.URL, "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", resp.StatusCode)
	}
}

func TestCodecMismatch(t *testing.T) {
	_, url := serve(t)
	if _, err := remote.Dial(context.Background(), url, wire.JSON{}); err == nil {
		t.Error("dial succeeded with mismatched codec")
	}
}

func TestBroadcastAndCleanup(t *testing.T) {
	s, url := serve(t)
	c := dial(t, url, wire.CBOR{})
	next(t, c)
	if s.Sessions() != 1 {
		t.Fatalf("sessions = %d, want 1", s.Sessions())
	}

	v2 := livetree.NewTemplate("counter",
		livetree.El("p",
			livetree.El("button", livetree.Txt("add")).WithAttrs(livetree.StaticAttr("id", "inc"), livetree.DynAttr(0)),
			livetree.DynText(0),
		),
	)
	if err := s.Broadcast(v2); err != nil {
		t.Fatal(err)
	}
	next(t, c)
	if got, want := c.Document().HTML(), `<p><button id="inc">add</button>0</p>`; got != want {
		t.Errorf("html after broadcast = %q, want %q", got, want)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.Sessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not released after client close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReapIdleSessions(t *testing.T) {
	s, url := serve(t, remote.WithIdleTimeout(time.Millisecond))
	c := dial(t, url, wire.CBOR{})
	next(t, c)
	if ids := s.SessionIDs(); len(ids) != 1 || ids[0] != c.Session() {
		t.Fatalf("SessionIDs = %v, want [%s]", ids, c.Session())
	}

	time.Sleep(10 * time.Millisecond)
	if n := s.Reap(); n != 1 {
		t.Errorf("reaped %d sessions, want 1", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Next(ctx); err == nil {
		t.Error("reaped session still delivers batches")
	}
}

func TestDuplicateSessionRejected(t *testing.T) {
	_, url := serve(t)
	c := dial(t, url, wire.CBOR{})
	next(t, c)

	header := http.Header{remote.SessionHeader: []string{c.Session()}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("second connection with the same session id accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("response = %v, want 409", resp)
	}
}

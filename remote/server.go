// Package remote serves livetree runtimes over websockets. Each connection
// owns one runtime: the server streams its mutation batches to the client and
// feeds client events back into it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livefir/livetree"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/internal/session"
	"github.com/livefir/livetree/wire"
	"github.com/tliron/commonlog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("livetree.remote")

const (
	// CodecHeader names the codec a server speaks.
	CodecHeader = "X-Livetree-Codec"
	// SessionHeader carries the session id of a connection.
	SessionHeader = "X-Livetree-Session"
)

var errClientGone = errors.New("client disconnected")

// Factory creates the runtime serving one request.
type Factory func(r *http.Request) (*livetree.Runtime, error)

// Recorder receives every batch sent to a client, for example a journal.
type Recorder interface {
	Record(ctx context.Context, sessionID string, seq uint64, ms *livetree.Mutations) error
}

// Server is an http.Handler. Websocket upgrades get a live session; plain
// GET requests get a server-side rendered snapshot of the initial tree.
type Server struct {
	factory  Factory
	codec    wire.Codec
	upgrader *websocket.Upgrader
	recorder Recorder
	idle     time.Duration
	sessions *session.Manager
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCodec selects the envelope codec. CBOR is the default.
func WithCodec(codec wire.Codec) ServerOption {
	return func(s *Server) { s.codec = codec }
}

// WithUpgrader replaces the websocket upgrader.
func WithUpgrader(u *websocket.Upgrader) ServerOption {
	return func(s *Server) { s.upgrader = u }
}

// WithRecorder records every batch sent.
func WithRecorder(r Recorder) ServerOption {
	return func(s *Server) { s.recorder = r }
}

// WithIdleTimeout lets Reap close sessions that sent no event for d.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idle = d }
}

// NewServer creates a server that builds one runtime per connection.
func NewServer(factory Factory, opts ...ServerOption) *Server {
	s := &Server{
		factory: factory,
		codec:   wire.CBOR{},
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = session.NewManager(s.idle)
	return s
}

// Sessions returns the number of live connections.
func (s *Server) Sessions() int {
	return s.sessions.Len()
}

// SessionIDs returns the ids of the live connections, oldest first.
func (s *Server) SessionIDs() []string {
	var ids []string
	for _, sess := range s.sessions.List() {
		ids = append(ids, sess.ID)
	}
	return ids
}

// Broadcast replaces a template in every live session.
func (s *Server) Broadcast(t *livetree.Template) error {
	var err error
	for _, sess := range s.sessions.List() {
		if e := sess.Runtime.ReplaceTemplate(t); e != nil && !errors.Is(e, livetree.ErrRuntimeClosed) {
			err = multierr.Append(err, fmt.Errorf("session %s: %w", sess.ID, e))
		}
	}
	return err
}

// Reap closes the sessions idle for longer than the idle timeout and
// returns how many were closed.
func (s *Server) Reap() int {
	expired := s.sessions.Expired(time.Now())
	for _, sess := range expired {
		log.Infof("session %s idle, closing", sess.ID)
		sess.Close()
	}
	return len(expired)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(CodecHeader, s.codec.Name())
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	s.handleSnapshot(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt, err := s.factory(r)
	if err != nil {
		log.Errorf("create runtime: %v", err)
		http.Error(w, "failed to create runtime", http.StatusInternalServerError)
		return
	}
	defer rt.Close()

	doc := dom.New()
	if err := rt.Rebuild(doc); err != nil {
		log.Errorf("snapshot: %v", err)
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	body, err := doc.Minified()
	if err != nil {
		log.Errorf("minify snapshot: %v", err)
		body = doc.HTML()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprint(w, body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rt, err := s.factory(r)
	if err != nil {
		log.Errorf("create runtime: %v", err)
		http.Error(w, "failed to create runtime", http.StatusInternalServerError)
		return
	}
	defer rt.Close()

	id := r.Header.Get(SessionHeader)
	if id == "" {
		if id, err = session.NewID(); err != nil {
			log.Errorf("session id: %v", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if err := s.sessions.Add(&session.Session{ID: id, Runtime: rt, Close: cancel}); err != nil {
		http.Error(w, fmt.Sprintf("session %s: %v", id, err), http.StatusConflict)
		return
	}
	defer s.sessions.Remove(id)

	header := http.Header{SessionHeader: {id}, CodecHeader: {s.codec.Name()}}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Infof("session %s connected from %s", id, conn.RemoteAddr())
	lc := &liveConn{id: id, conn: conn, rt: rt, codec: s.codec, recorder: s.recorder, touch: s.sessions.Touch}
	if err := lc.serve(ctx); err != nil {
		log.Errorf("session %s: %v", id, err)
		return
	}
	log.Infof("session %s disconnected", id)
}

// liveConn pumps one connection. Reads and the render loop run in separate
// goroutines; writes are serialized by mu.
type liveConn struct {
	id       string
	conn     *websocket.Conn
	rt       *livetree.Runtime
	codec    wire.Codec
	recorder Recorder
	touch    func(id string)

	mu  sync.Mutex
	seq uint64
}

func (s *liveConn) serve(ctx context.Context) error {
	initial := &livetree.Mutations{}
	if err := s.rt.Rebuild(initial); err != nil {
		return fmt.Errorf("initial render: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.sendBatch(ctx, initial); err != nil {
			return err
		}
		return s.rt.Run(ctx, func(ms *livetree.Mutations) error {
			return s.sendBatch(ctx, ms)
		})
	})
	g.Go(func() error {
		return s.readLoop()
	})
	g.Go(func() error {
		<-ctx.Done()
		// unblocks the reader
		_ = s.conn.Close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errClientGone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *liveConn) readLoop() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("session %s read: %v", s.id, err)
			}
			return errClientGone
		}

		env, err := s.codec.Unmarshal(data)
		if err != nil {
			log.Errorf("session %s: %v", s.id, err)
			if err := s.write(&wire.Envelope{Kind: wire.KindError, Error: err.Error()}); err != nil {
				return err
			}
			continue
		}
		s.touch(s.id)
		if env.Kind != wire.KindEvent {
			log.Debugf("session %s: ignoring %s envelope", s.id, env.Kind)
			continue
		}
		if err := s.rt.Send(env.Event.ToEvent()); err != nil {
			return err
		}
	}
}

func (s *liveConn) sendBatch(ctx context.Context, ms *livetree.Mutations) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, s.id, seq, ms); err != nil {
			log.Errorf("session %s: record batch %d: %v", s.id, seq, err)
		}
	}
	return s.write(&wire.Envelope{Kind: wire.KindBatch, Seq: seq, Batch: ms})
}

func (s *liveConn) write(env *wire.Envelope) error {
	data, err := s.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Kind, err)
	}
	kind := websocket.TextMessage
	if s.codec.Binary() {
		kind = websocket.BinaryMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("write %s envelope: %w", env.Kind, err)
	}
	return nil
}

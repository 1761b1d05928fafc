package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/wire"
)

// Client is the remote end of a session: it applies received batches to a
// dom.Document and reports events back to the server.
type Client struct {
	conn    *websocket.Conn
	codec   wire.Codec
	doc     *dom.Document
	session string

	mu  sync.Mutex
	seq uint64
}

// Dial connects to a Server. The codec must match the server's.
func Dial(ctx context.Context, url string, codec wire.Codec) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{conn: conn, codec: codec, doc: dom.New()}
	if resp != nil {
		c.session = resp.Header.Get(SessionHeader)
		if name := resp.Header.Get(CodecHeader); name != "" && name != codec.Name() {
			conn.Close()
			return nil, fmt.Errorf("server speaks %s, client %s", name, codec.Name())
		}
	}
	return c, nil
}

// Session returns the id the server assigned.
func (c *Client) Session() string {
	return c.session
}

// Document returns the tree built from the received batches.
func (c *Client) Document() *dom.Document {
	return c.doc
}

// Seq returns the sequence number of the last applied batch.
func (c *Client) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Next reads envelopes until a batch arrives and applies it. Error envelopes
// from the server are returned as errors.
func (c *Client) Next(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}
	env, err := c.codec.Unmarshal(data)
	if err != nil {
		return err
	}

	switch env.Kind {
	case wire.KindError:
		return fmt.Errorf("server: %s", env.Error)
	case wire.KindBatch:
		c.mu.Lock()
		defer c.mu.Unlock()
		if env.Seq != c.seq+1 {
			return fmt.Errorf("batch %d out of order, expected %d", env.Seq, c.seq+1)
		}
		c.seq = env.Seq
		return c.doc.Apply(env.Batch)
	default:
		return fmt.Errorf("unexpected %s envelope", env.Kind)
	}
}

// Send reports an event to the server.
func (c *Client) Send(ev wire.ClientEvent) error {
	data, err := c.codec.Marshal(&wire.Envelope{Kind: wire.KindEvent, Event: &ev})
	if err != nil {
		return err
	}
	kind := websocket.TextMessage
	if c.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(kind, data)
}

// Close ends the session.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	return c.conn.Close()
}

// Package wire encodes mutation batches and client events for transport.
//
// Two codecs are provided. CBOR uses canonical encoding so identical batches
// produce identical bytes, which keeps journal blobs comparable. JSON exists
// for browsers and debugging.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/livefir/livetree"
)

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
}

// Kind tags an Envelope.
type Kind string

const (
	KindBatch Kind = "batch"
	KindEvent Kind = "event"
	KindError Kind = "error"
)

// ClientEvent is an event reported by a client against an element id it
// received in an earlier batch.
type ClientEvent struct {
	Name    string             `json:"name" cbor:"1,keyasint"`
	Element livetree.ElementID `json:"element" cbor:"2,keyasint"`
	Value   string             `json:"value,omitempty" cbor:"3,keyasint,omitempty"`
}

// ToEvent converts the client event into a runtime event. Bubbling and lane
// follow the event name.
func (e ClientEvent) ToEvent() *livetree.Event {
	ev := livetree.NewEvent(e.Name, e.Element, e.Value)
	ev.Lane = livetree.EventLane(e.Name)
	return ev
}

// Envelope is the unit exchanged over a connection.
type Envelope struct {
	Kind  Kind                `json:"kind" cbor:"1,keyasint"`
	Seq   uint64              `json:"seq,omitempty" cbor:"2,keyasint,omitempty"`
	Batch *livetree.Mutations `json:"batch,omitempty" cbor:"3,keyasint,omitempty"`
	Event *ClientEvent        `json:"event,omitempty" cbor:"4,keyasint,omitempty"`
	Error string              `json:"error,omitempty" cbor:"5,keyasint,omitempty"`
}

// Validate reports whether the envelope carries the payload its kind needs.
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindBatch:
		if e.Batch == nil {
			return fmt.Errorf("wire: batch envelope %d has no batch", e.Seq)
		}
	case KindEvent:
		if e.Event == nil || e.Event.Name == "" {
			return fmt.Errorf("wire: event envelope without event name")
		}
	case KindError:
		if e.Error == "" {
			return fmt.Errorf("wire: error envelope without message")
		}
	default:
		return fmt.Errorf("wire: unknown envelope kind %q", e.Kind)
	}
	return nil
}

// Codec converts envelopes to and from bytes.
type Codec interface {
	Name() string
	Binary() bool
	Marshal(env *Envelope) ([]byte, error)
	Unmarshal(data []byte) (*Envelope, error)
}

// CBOR is the canonical CBOR codec.
type CBOR struct{}

func (CBOR) Name() string { return "cbor" }
func (CBOR) Binary() bool { return true }

func (CBOR) Marshal(env *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(env)
}

func (CBOR) Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// JSON is the text codec.
type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Marshal(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSON) Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// CodecFor returns the codec with the given name.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", "cbor":
		return CBOR{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown codec %q", name)
	}
}

// EncodeBatch encodes a batch as canonical CBOR.
func EncodeBatch(ms *livetree.Mutations) ([]byte, error) {
	return cborEncMode.Marshal(ms)
}

// DecodeBatch decodes a batch written by EncodeBatch.
func DecodeBatch(data []byte) (*livetree.Mutations, error) {
	var ms livetree.Mutations
	if err := cbor.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("wire: unmarshal batch: %w", err)
	}
	return &ms, nil
}

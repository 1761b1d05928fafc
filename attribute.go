package livetree

import (
	"strconv"
	"strings"
)

// ValueKind discriminates AttributeValue.
type ValueKind uint8

const (
	// ValueNone removes the attribute.
	ValueNone ValueKind = iota
	ValueText
	ValueFloat
	ValueInt
	ValueBool
	// ValueListener attaches an event handler instead of setting an attribute.
	ValueListener
)

func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueText:
		return "text"
	case ValueFloat:
		return "float"
	case ValueInt:
		return "int"
	case ValueBool:
		return "bool"
	case ValueListener:
		return "listener"
	default:
		return "unknown"
	}
}

// AttributeValue is the value of a dynamic attribute. Listener values carry a
// handler that never leaves the runtime; everything else is plain data.
type AttributeValue struct {
	Kind  ValueKind `json:"kind" cbor:"1,keyasint"`
	Text  string    `json:"text,omitempty" cbor:"2,keyasint,omitempty"`
	Float float64   `json:"float,omitempty" cbor:"3,keyasint,omitempty"`
	Int   int64     `json:"int,omitempty" cbor:"4,keyasint,omitempty"`
	Bool  bool      `json:"bool,omitempty" cbor:"5,keyasint,omitempty"`

	handler func(*Event)
}

// Str is a text attribute value.
func Str(s string) AttributeValue { return AttributeValue{Kind: ValueText, Text: s} }

// Int is an integer attribute value.
func Int(i int64) AttributeValue { return AttributeValue{Kind: ValueInt, Int: i} }

// Float is a floating point attribute value.
func Float(f float64) AttributeValue { return AttributeValue{Kind: ValueFloat, Float: f} }

// Bool is a boolean attribute value.
func Bool(b bool) AttributeValue { return AttributeValue{Kind: ValueBool, Bool: b} }

// None removes the attribute.
func None() AttributeValue { return AttributeValue{Kind: ValueNone} }

// Listener wraps an event handler.
func Listener(fn func(*Event)) AttributeValue {
	return AttributeValue{Kind: ValueListener, handler: fn}
}

// Equal compares two values. Listeners always compare equal: swapping the
// handler of a mounted listener needs no mutation.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueText:
		return v.Text == o.Text
	case ValueFloat:
		return v.Float == o.Float
	case ValueInt:
		return v.Int == o.Int
	case ValueBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// String renders the value the way an HTML backend writes it.
func (v AttributeValue) String() string {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Attribute is one filled dynamic attribute of a VNode.
type Attribute struct {
	Name      string
	Namespace string
	Value     AttributeValue
	// Volatile marks values the backend may change behind the runtime's
	// back (input value, checked). A change of volatility rewrites the
	// attribute even when the value is equal.
	Volatile bool
}

// Attr builds a dynamic attribute.
func Attr(name string, value AttributeValue) Attribute {
	return Attribute{Name: name, Value: value}
}

// VolatileAttr builds a dynamic attribute whose value the backend may
// change on its own.
func VolatileAttr(name string, value AttributeValue) Attribute {
	return Attribute{Name: name, Value: value, Volatile: true}
}

// OnEvent builds a listener attribute for the named event ("click" gives
// "onclick").
func OnEvent(event string, fn func(*Event)) Attribute {
	return Attribute{Name: "on" + event, Value: Listener(fn)}
}

func (a Attribute) isListener() bool {
	return a.Value.Kind == ValueListener
}

// eventName strips the "on" prefix of a listener attribute.
func (a Attribute) eventName() string {
	return strings.TrimPrefix(a.Name, "on")
}

package livetree

import (
	"fmt"
	"reflect"
)

// ElementID names a mounted node in the backend's real tree. IDs are
// recycled after the node is unmounted. RootID is the backend's mount point
// and is never released.
type ElementID uint32

// RootID is the id of the backend container the root tree is appended to.
const RootID ElementID = 0

// mountID names a mounted VNode; 0 means not mounted.
type mountID uint32

// ElementRef is a weak reference to a position inside a mounted VNode. It
// never keeps the VNode alive; it is resolved through the runtime's mount
// table and may dangle once the VNode is unmounted.
type ElementRef struct {
	mount mountID
	path  Path
}

func (r ElementRef) valid() bool { return r.mount != 0 }

// VNode is one render's instance of a Template: the values filling its
// dynamic slots and an optional key used by keyed list diffing.
type VNode struct {
	Key          string
	Template     *Template
	DynamicNodes []DynamicNode
	DynamicAttrs []Attribute

	// mount state, owned by the runtime
	tmpl    *Template
	mount   mountID
	parent  ElementRef
	rootIDs []ElementID
	attrIDs []ElementID
}

// NewVNode pairs a template with the values of its dynamic slots.
func NewVNode(t *Template, nodes []DynamicNode, attrs []Attribute) *VNode {
	return &VNode{Template: t, DynamicNodes: nodes, DynamicAttrs: attrs}
}

// WithKey sets the list key and returns n.
func (n *VNode) WithKey(key string) *VNode {
	n.Key = key
	return n
}

// Mounted reports whether the node is currently part of a live tree.
func (n *VNode) Mounted() bool {
	return n.mount != 0
}

// RootIDs returns the element ids of the node's static roots; dynamic roots
// report 0.
func (n *VNode) RootIDs() []ElementID {
	return append([]ElementID(nil), n.rootIDs...)
}

// Clone returns an unmounted structural copy of n. Components in the copy
// share props with the original and carry no scope.
func (n *VNode) Clone() *VNode {
	c := &VNode{
		Key:          n.Key,
		Template:     n.Template,
		DynamicNodes: make([]DynamicNode, len(n.DynamicNodes)),
		DynamicAttrs: append([]Attribute(nil), n.DynamicAttrs...),
	}
	for i, d := range n.DynamicNodes {
		c.DynamicNodes[i] = cloneDynamic(d)
	}
	return c
}

func cloneDynamic(d DynamicNode) DynamicNode {
	switch d := d.(type) {
	case *VText:
		return Text(d.Value)
	case *VPlaceholder:
		return Placeholder()
	case *VFragment:
		children := make([]*VNode, len(d.Children))
		for i, ch := range d.Children {
			children[i] = ch.Clone()
		}
		return &VFragment{Children: children}
	case *VComponent:
		return &VComponent{Name: d.Name, props: d.props, renderID: d.renderID, noMemo: d.noMemo}
	default:
		return d
	}
}

// normalize rewrites empty fragments and nil slots to placeholders and
// checks that n fills exactly the slots of t.
func (n *VNode) normalize(t *Template) {
	if len(n.DynamicNodes) != len(t.NodePaths) {
		violate("template", "%s has %d dynamic nodes, instance provides %d", t.Name, len(t.NodePaths), len(n.DynamicNodes))
	}
	if len(n.DynamicAttrs) != len(t.AttrPaths) {
		violate("template", "%s has %d dynamic attributes, instance provides %d", t.Name, len(t.AttrPaths), len(n.DynamicAttrs))
	}
	for i, d := range n.DynamicNodes {
		if t.slotKinds[i] == DynamicTextSlot {
			if _, ok := d.(*VText); !ok {
				violate("template", "%s: dynamic text slot %d holds %T, want *VText", t.Name, i, d)
			}
			continue
		}
		switch d := d.(type) {
		case nil:
			n.DynamicNodes[i] = Placeholder()
		case *VFragment:
			if len(d.Children) == 0 {
				n.DynamicNodes[i] = Placeholder()
			}
		}
	}
}

// DynamicNode is the closed set of values a dynamic slot can hold: *VText,
// *VPlaceholder, *VFragment or *VComponent.
type DynamicNode interface {
	dynamicNode()
}

// VText is a dynamic text node.
type VText struct {
	Value string
	id    ElementID
}

// VPlaceholder is an empty anchor occupying a slot with nothing to show.
type VPlaceholder struct {
	id ElementID
}

// VFragment is an ordered list of instance trees filling one slot.
type VFragment struct {
	Children []*VNode
}

// VComponent describes a child component: its render function, boxed props
// and, once mounted, its scope.
type VComponent struct {
	Name     string
	props    anyProps
	renderID uintptr
	noMemo   bool
	scope    ScopeID
}

func (*VText) dynamicNode()        {}
func (*VPlaceholder) dynamicNode() {}
func (*VFragment) dynamicNode()    {}
func (*VComponent) dynamicNode()   {}

// Text builds a dynamic text node.
func Text(value string) *VText {
	return &VText{Value: value}
}

// Textf builds a dynamic text node from a format string.
func Textf(format string, args ...any) *VText {
	return &VText{Value: fmt.Sprintf(format, args...)}
}

// Placeholder builds an empty anchor.
func Placeholder() *VPlaceholder {
	return &VPlaceholder{}
}

// Fragment builds a list of children. An empty list becomes a placeholder so
// that every slot always owns at least one real node.
func Fragment(children ...*VNode) DynamicNode {
	if len(children) == 0 {
		return Placeholder()
	}
	return &VFragment{Children: children}
}

// RenderFunc renders a component from its props. The scope is passed
// explicitly and is the handle for every hook call.
type RenderFunc[P any] func(cx *Scope, props P) *VNode

// Memoizer lets a props type decide whether a re-render can be skipped.
type Memoizer[P any] interface {
	Memoize(previous P) bool
}

// Component describes a child component. Re-rendering the parent with props
// equal to the previous ones (Memoize when P implements Memoizer, otherwise
// reflect.DeepEqual) skips the child's render entirely. Two components are
// the same component iff their render functions share code.
func Component[P any](name string, render RenderFunc[P], props P) *VComponent {
	if render == nil {
		violate("component", "component %s has a nil render function", name)
	}
	return &VComponent{
		Name:     name,
		props:    &propsBox[P]{fn: render, props: props},
		renderID: reflect.ValueOf(render).Pointer(),
	}
}

// NoMemo disables the props equality short-circuit for c.
func (c *VComponent) NoMemo() *VComponent {
	c.noMemo = true
	return c
}

// Scope returns the id of the mounted scope, or 0 and false before mounting.
func (c *VComponent) Scope() (ScopeID, bool) {
	return c.scope, c.scope != 0
}

// Props returns the boxed props value.
func (c *VComponent) Props() any {
	if c.props == nil {
		return nil
	}
	return c.props.value()
}

// anyProps erases the props type of a component so scopes of different
// component types share one representation.
type anyProps interface {
	render(cx *Scope) *VNode
	memoize(previous anyProps) bool
	value() any
}

type propsBox[P any] struct {
	fn    RenderFunc[P]
	props P
}

func (b *propsBox[P]) render(cx *Scope) *VNode {
	return b.fn(cx, b.props)
}

func (b *propsBox[P]) memoize(previous anyProps) bool {
	prev, ok := previous.(*propsBox[P])
	if !ok {
		return false
	}
	if m, ok := any(b.props).(Memoizer[P]); ok {
		return m.Memoize(prev.props)
	}
	return reflect.DeepEqual(prev.props, b.props)
}

func (b *propsBox[P]) value() any {
	return b.props
}

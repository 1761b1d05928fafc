// Package dom is the reference backend: it applies livetree mutations to a
// golang.org/x/net/html node tree and renders the result as HTML.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/livefir/livetree"
	"github.com/tliron/commonlog"
	"go.uber.org/multierr"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var log = commonlog.GetLogger("livetree.dom")

// PlaceholderData is the text of the comment node standing in for an empty
// dynamic slot.
const PlaceholderData = "placeholder"

// Document is a real tree driven by a mutation stream. It implements
// livetree.Sink. A mutation that cannot be applied is recorded and the rest
// of the stream is still processed; Err reports what went wrong.
type Document struct {
	root      *html.Node
	templates map[string]*livetree.Template
	nodes     map[livetree.ElementID]*html.Node
	listeners map[livetree.ElementID]map[string]struct{}
	stack     []*html.Node
	applied   int
	err       error
}

// New creates an empty document whose container has id RootID.
func New() *Document {
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return &Document{
		root:      root,
		templates: make(map[string]*livetree.Template),
		nodes:     map[livetree.ElementID]*html.Node{livetree.RootID: root},
		listeners: make(map[livetree.ElementID]map[string]struct{}),
	}
}

// Register makes a template known without a RegisterTemplate mutation.
func (d *Document) Register(t *livetree.Template) {
	d.templates[t.Name] = t
}

// Err returns every failure seen so far.
func (d *Document) Err() error {
	return d.err
}

// Applied returns how many mutations were applied successfully.
func (d *Document) Applied() int {
	return d.applied
}

// StackDepth returns the number of staged nodes. It is zero between batches
// of a well-formed stream.
func (d *Document) StackDepth() int {
	return len(d.stack)
}

// Apply pushes every mutation of ms and returns the errors they caused.
func (d *Document) Apply(ms *livetree.Mutations) error {
	before := d.err
	for _, m := range ms.Edits {
		d.Push(m)
	}
	if d.err == before {
		return nil
	}
	return d.err
}

// Push applies one mutation.
func (d *Document) Push(m livetree.Mutation) {
	if err := d.apply(m); err != nil {
		log.Debugf("mutation %s: %v", m, err)
		d.err = multierr.Append(d.err, fmt.Errorf("%s: %w", m, err))
		return
	}
	d.applied++
}

func (d *Document) apply(m livetree.Mutation) error {
	switch m.Op {
	case livetree.OpRegisterTemplate:
		if m.Template == nil {
			return fmt.Errorf("template body missing")
		}
		d.templates[m.Template.Name] = m.Template
		return nil

	case livetree.OpLoadTemplate:
		t, ok := d.templates[m.Name]
		if !ok {
			return fmt.Errorf("unknown template %q", m.Name)
		}
		if m.Index < 0 || m.Index >= len(t.Roots) {
			return fmt.Errorf("template %q has no root %d", m.Name, m.Index)
		}
		n := instantiate(t.Roots[m.Index])
		d.nodes[m.ID] = n
		d.push(n)
		return nil

	case livetree.OpCreateText:
		n := &html.Node{Type: html.TextNode, Data: m.Value}
		d.nodes[m.ID] = n
		d.push(n)
		return nil

	case livetree.OpCreatePlaceholder:
		n := &html.Node{Type: html.CommentNode, Data: PlaceholderData}
		d.nodes[m.ID] = n
		d.push(n)
		return nil

	case livetree.OpAssignID:
		n, err := d.walk(m.Path)
		if err != nil {
			return err
		}
		d.nodes[m.ID] = n
		return nil

	case livetree.OpHydrateText:
		n, err := d.walk(m.Path)
		if err != nil {
			return err
		}
		if n.Type != html.TextNode {
			return fmt.Errorf("path %v is not a text node", []uint8(m.Path))
		}
		n.Data = m.Value
		d.nodes[m.ID] = n
		return nil

	case livetree.OpSetAttribute:
		n, err := d.node(m.ID)
		if err != nil {
			return err
		}
		if m.Attr == nil || m.Attr.Kind == livetree.ValueNone {
			removeAttr(n, m.Namespace, m.Name)
			return nil
		}
		setAttr(n, m.Namespace, m.Name, m.Attr.String())
		return nil

	case livetree.OpSetText:
		n, err := d.node(m.ID)
		if err != nil {
			return err
		}
		n.Data = m.Value
		return nil

	case livetree.OpAppendChildren:
		parent, err := d.node(m.ID)
		if err != nil {
			return err
		}
		nodes, err := d.pop(m.M)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			detach(n)
			parent.AppendChild(n)
		}
		return nil

	case livetree.OpInsertBefore, livetree.OpInsertAfter:
		anchor, err := d.node(m.ID)
		if err != nil {
			return err
		}
		if anchor.Parent == nil {
			return fmt.Errorf("element %d is detached", m.ID)
		}
		nodes, err := d.pop(m.M)
		if err != nil {
			return err
		}
		parent := anchor.Parent
		next := anchor
		if m.Op == livetree.OpInsertAfter {
			next = anchor.NextSibling
		}
		for _, n := range nodes {
			if n == next {
				next = n.NextSibling
			}
			detach(n)
			parent.InsertBefore(n, next)
		}
		return nil

	case livetree.OpReplaceWith:
		old, err := d.node(m.ID)
		if err != nil {
			return err
		}
		nodes, err := d.pop(m.M)
		if err != nil {
			return err
		}
		if err := replace(old, nodes); err != nil {
			return err
		}
		delete(d.nodes, m.ID)
		return nil

	case livetree.OpReplacePlaceholder:
		nodes, err := d.pop(m.M)
		if err != nil {
			return err
		}
		old, err := d.walk(m.Path)
		if err != nil {
			return err
		}
		return replace(old, nodes)

	case livetree.OpRemove:
		n, err := d.node(m.ID)
		if err != nil {
			return err
		}
		detach(n)
		delete(d.nodes, m.ID)
		delete(d.listeners, m.ID)
		return nil

	case livetree.OpNewEventListener:
		if _, err := d.node(m.ID); err != nil {
			return err
		}
		set := d.listeners[m.ID]
		if set == nil {
			set = make(map[string]struct{})
			d.listeners[m.ID] = set
		}
		set[m.Name] = struct{}{}
		return nil

	case livetree.OpRemoveEventListener:
		delete(d.listeners[m.ID], m.Name)
		return nil

	case livetree.OpPushRoot:
		n, err := d.node(m.ID)
		if err != nil {
			return err
		}
		d.push(n)
		return nil

	default:
		return fmt.Errorf("unknown op")
	}
}

func (d *Document) push(n *html.Node) {
	d.stack = append(d.stack, n)
}

// pop removes the top m staged nodes and returns them in staging order.
func (d *Document) pop(m int) ([]*html.Node, error) {
	if m < 0 || m > len(d.stack) {
		return nil, fmt.Errorf("stack holds %d nodes, %d requested", len(d.stack), m)
	}
	at := len(d.stack) - m
	nodes := append([]*html.Node(nil), d.stack[at:]...)
	d.stack = d.stack[:at]
	return nodes, nil
}

// walk follows a child-index path from the top of the stack.
func (d *Document) walk(path livetree.Path) (*html.Node, error) {
	if len(d.stack) == 0 {
		return nil, fmt.Errorf("stack is empty")
	}
	n := d.stack[len(d.stack)-1]
	for _, idx := range path {
		c := n.FirstChild
		for i := 0; c != nil && i < int(idx); i++ {
			c = c.NextSibling
		}
		if c == nil {
			return nil, fmt.Errorf("path %v leaves the tree", []uint8(path))
		}
		n = c
	}
	return n, nil
}

func (d *Document) node(id livetree.ElementID) (*html.Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("element %d is unknown", id)
	}
	return n, nil
}

// Node returns the node bound to an element id.
func (d *Document) Node(id livetree.ElementID) (*html.Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Listeners returns the events registered on an element.
func (d *Document) Listeners(id livetree.ElementID) []string {
	var names []string
	for name := range d.listeners[id] {
		names = append(names, name)
	}
	return names
}

// Find returns the element id of the attached element whose attribute key
// has value val.
func (d *Document) Find(key, val string) (livetree.ElementID, bool) {
	for id, n := range d.nodes {
		if id == livetree.RootID || !attached(d.root, n) {
			continue
		}
		if v, ok := getAttr(n, key); ok && v == val {
			return id, true
		}
	}
	return 0, false
}

// HTML renders the children of the container.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			log.Errorf("render: %v", err)
		}
	}
	return buf.String()
}

// Text returns the concatenated text content of the container.
func (d *Document) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return b.String()
}

// instantiate builds the real nodes of one template root. Dynamic slots
// become placeholders, dynamic text slots empty text nodes.
func instantiate(tn livetree.TemplateNode) *html.Node {
	switch tn.Kind {
	case livetree.StaticText:
		return &html.Node{Type: html.TextNode, Data: tn.Text}
	case livetree.DynamicTextSlot:
		return &html.Node{Type: html.TextNode}
	case livetree.DynamicSlot:
		return &html.Node{Type: html.CommentNode, Data: PlaceholderData}
	}

	n := &html.Node{
		Type:      html.ElementNode,
		Data:      tn.Tag,
		DataAtom:  atom.Lookup([]byte(tn.Tag)),
		Namespace: tn.Namespace,
	}
	for _, a := range tn.Attrs {
		if a.Dynamic {
			continue
		}
		n.Attr = append(n.Attr, html.Attribute{Namespace: a.Namespace, Key: a.Name, Val: a.Value})
	}
	for _, c := range tn.Children {
		n.AppendChild(instantiate(c))
	}
	return n
}

func replace(old *html.Node, nodes []*html.Node) error {
	parent := old.Parent
	if parent == nil {
		return fmt.Errorf("replaced node is detached")
	}
	for _, n := range nodes {
		detach(n)
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
	return nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, ns, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key && n.Attr[i].Namespace == ns {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Namespace: ns, Key: key, Val: val})
}

func removeAttr(n *html.Node, ns, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key && n.Attr[i].Namespace == ns {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

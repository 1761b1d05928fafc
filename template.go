package livetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// NodeKind discriminates the nodes of a Template's static tree.
type NodeKind uint8

const (
	// StaticElement is an element whose tag and static attributes never change.
	StaticElement NodeKind = iota
	// StaticText is a text node with fixed content.
	StaticText
	// DynamicSlot is filled per instance by a DynamicNode.
	DynamicSlot
	// DynamicTextSlot is a text node whose content is filled per instance.
	DynamicTextSlot
)

func (k NodeKind) String() string {
	switch k {
	case StaticElement:
		return "element"
	case StaticText:
		return "text"
	case DynamicSlot:
		return "dynamic"
	case DynamicTextSlot:
		return "dynamic-text"
	default:
		return "unknown"
	}
}

// Path locates a node inside a template: the first entry is the root index,
// each following entry a child index.
type Path []uint8

// MarshalJSON encodes the path as an array of numbers instead of base64.
func (p Path) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(p))
	for i, v := range p {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON accepts the array form written by MarshalJSON.
func (p *Path) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = nil
		return nil
	}
	ints := make([]uint8, len(raw))
	for i, v := range raw {
		if v < 0 || v > math.MaxUint8 {
			return fmt.Errorf("path element %d out of range: %d", i, v)
		}
		ints[i] = uint8(v)
	}
	*p = ints
	return nil
}

// Equal reports whether two paths address the same node.
func (p Path) Equal(q Path) bool {
	return bytes.Equal(p, q)
}

// TemplateAttribute is an attribute in a template's static tree. Static
// attributes carry their value; dynamic ones refer by ID to a per-instance
// Attribute.
type TemplateAttribute struct {
	Dynamic   bool   `json:"dynamic,omitempty" cbor:"1,keyasint,omitempty"`
	Name      string `json:"name,omitempty" cbor:"2,keyasint,omitempty"`
	Value     string `json:"value,omitempty" cbor:"3,keyasint,omitempty"`
	Namespace string `json:"namespace,omitempty" cbor:"4,keyasint,omitempty"`
	ID        int    `json:"id,omitempty" cbor:"5,keyasint,omitempty"`
}

// TemplateNode is one node of a template's static tree.
type TemplateNode struct {
	Kind      NodeKind            `json:"kind" cbor:"1,keyasint"`
	Tag       string              `json:"tag,omitempty" cbor:"2,keyasint,omitempty"`
	Namespace string              `json:"namespace,omitempty" cbor:"3,keyasint,omitempty"`
	Attrs     []TemplateAttribute `json:"attrs,omitempty" cbor:"4,keyasint,omitempty"`
	Children  []TemplateNode      `json:"children,omitempty" cbor:"5,keyasint,omitempty"`
	Text      string              `json:"text,omitempty" cbor:"6,keyasint,omitempty"`
	ID        int                 `json:"id,omitempty" cbor:"7,keyasint,omitempty"`
}

// Template is the immutable static shape shared by every instance rendered
// from one call site. Two templates are the same template iff their names
// are equal.
type Template struct {
	Name      string         `json:"name" cbor:"1,keyasint"`
	Roots     []TemplateNode `json:"roots" cbor:"2,keyasint"`
	NodePaths []Path         `json:"node_paths" cbor:"3,keyasint"`
	AttrPaths []Path         `json:"attr_paths" cbor:"4,keyasint"`

	rootPaths []Path
	slotKinds []NodeKind
	// dynamic node ids and dynamic attribute ids sorted by path
	nodeOrder []int
	attrOrder []int
}

// El builds a static element node.
func El(tag string, children ...TemplateNode) TemplateNode {
	return TemplateNode{Kind: StaticElement, Tag: tag, Children: children}
}

// Txt builds a static text node.
func Txt(text string) TemplateNode {
	return TemplateNode{Kind: StaticText, Text: text}
}

// Dyn builds a dynamic slot filled by DynamicNodes[id].
func Dyn(id int) TemplateNode {
	return TemplateNode{Kind: DynamicSlot, ID: id}
}

// DynText builds a dynamic text slot filled by the *VText at DynamicNodes[id].
func DynText(id int) TemplateNode {
	return TemplateNode{Kind: DynamicTextSlot, ID: id}
}

// StaticAttr builds a fixed attribute.
func StaticAttr(name, value string) TemplateAttribute {
	return TemplateAttribute{Name: name, Value: value}
}

// DynAttr builds a dynamic attribute filled by DynamicAttrs[id].
func DynAttr(id int) TemplateAttribute {
	return TemplateAttribute{Dynamic: true, ID: id}
}

// WithAttrs returns a copy of an element node carrying attrs.
func (n TemplateNode) WithAttrs(attrs ...TemplateAttribute) TemplateNode {
	n.Attrs = append(append([]TemplateAttribute(nil), n.Attrs...), attrs...)
	return n
}

// WithNamespace returns a copy of an element node in namespace ns.
func (n TemplateNode) WithNamespace(ns string) TemplateNode {
	n.Namespace = ns
	return n
}

// NewTemplate computes node and attribute paths for roots. It panics with a
// *ContractViolation when the template is malformed: no roots, an empty
// name, an element nested deeper or wider than 255, or dynamic ids that are
// not dense from zero.
func NewTemplate(name string, roots ...TemplateNode) *Template {
	if name == "" {
		violate("template", "template name must not be empty")
	}
	if len(roots) == 0 {
		violate("template", "template %s has no roots", name)
	}
	if len(roots) > 256 {
		violate("template", "template %s has %d roots, at most 256 allowed", name, len(roots))
	}

	t := &Template{Name: name, Roots: roots}
	nodes := map[int]Path{}
	kinds := map[int]NodeKind{}
	attrs := map[int]Path{}

	var walk func(n TemplateNode, path Path)
	walk = func(n TemplateNode, path Path) {
		if len(path) > 255 {
			violate("template", "template %s nests deeper than 255", name)
		}
		switch n.Kind {
		case DynamicSlot, DynamicTextSlot:
			if len(n.Children) > 0 || len(n.Attrs) > 0 {
				violate("template", "template %s: dynamic slot %d has static content", name, n.ID)
			}
			if _, dup := nodes[n.ID]; dup {
				violate("template", "template %s uses dynamic node id %d twice", name, n.ID)
			}
			nodes[n.ID] = path
			kinds[n.ID] = n.Kind
			return
		case StaticText:
			return
		case StaticElement:
		default:
			violate("template", "template %s: unknown node kind %d", name, n.Kind)
		}

		if n.Tag == "" {
			violate("template", "template %s: element at %v has no tag", name, []uint8(path))
		}
		for _, a := range n.Attrs {
			if !a.Dynamic {
				continue
			}
			if _, dup := attrs[a.ID]; dup {
				violate("template", "template %s uses dynamic attribute id %d twice", name, a.ID)
			}
			attrs[a.ID] = path
		}
		if len(n.Children) > 256 {
			violate("template", "template %s: element at %v has more than 256 children", name, []uint8(path))
		}
		for i, c := range n.Children {
			walk(c, append(path[:len(path):len(path)], uint8(i)))
		}
	}

	t.rootPaths = make([]Path, len(roots))
	for i, r := range roots {
		t.rootPaths[i] = Path{uint8(i)}
		walk(r, t.rootPaths[i])
	}

	t.NodePaths = densePaths(name, "node", nodes)
	t.AttrPaths = densePaths(name, "attribute", attrs)
	t.slotKinds = make([]NodeKind, len(t.NodePaths))
	for id, k := range kinds {
		t.slotKinds[id] = k
	}
	t.nodeOrder = sortedByPath(t.NodePaths)
	t.attrOrder = sortedByPath(t.AttrPaths)
	return t
}

func densePaths(template, what string, m map[int]Path) []Path {
	out := make([]Path, len(m))
	for id, p := range m {
		if id < 0 || id >= len(m) {
			violate("template", "template %s: %s ids must be dense from 0, found %d among %d", template, what, id, len(m))
		}
		out[id] = p
	}
	return out
}

func sortedByPath(paths []Path) []int {
	order := make([]int, len(paths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bytes.Compare(paths[order[a]], paths[order[b]]) < 0
	})
	return order
}

// IsRootDynamic reports whether root i is a dynamic slot.
func (t *Template) IsRootDynamic(i int) bool {
	k := t.Roots[i].Kind
	return k == DynamicSlot || k == DynamicTextSlot
}

// allRootsDynamic is the static-shape precondition of the light diff: the
// template is nothing but dynamic roots.
func (t *Template) allRootsDynamic() bool {
	for i := range t.Roots {
		if !t.IsRootDynamic(i) {
			return false
		}
	}
	return len(t.NodePaths) == len(t.Roots)
}

func (t *Template) indexed() bool {
	return t.rootPaths != nil
}

// placeholderTemplate stands in for a component that rendered nothing or
// failed before its first successful render.
var placeholderTemplate = NewTemplate("livetree::placeholder", Dyn(0))

func placeholderVNode() *VNode {
	return NewVNode(placeholderTemplate, []DynamicNode{Placeholder()}, nil)
}

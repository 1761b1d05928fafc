package livetree

import "fmt"

// createVNode mounts n under parent and returns how many real roots it left
// on the backend's staging stack.
func (rt *Runtime) createVNode(to Sink, n *VNode, parent ElementRef) int {
	if n.mount != 0 {
		violate("tree", "instance of %s is already mounted", n.Template.Name)
	}
	t := rt.resolve(n.Template)
	if !t.indexed() {
		violate("template", "%s was not built with NewTemplate", t.Name)
	}
	n.normalize(t)
	rt.register(to, t)

	n.tmpl = t
	n.parent = parent
	n.mount = mountID(rt.mounts.Insert(n))
	n.rootIDs = make([]ElementID, len(t.Roots))
	n.attrIDs = make([]ElementID, len(t.AttrPaths))

	count := 0
	for i := range t.Roots {
		if t.IsRootDynamic(i) {
			count += rt.createDynamic(to, n, t.Roots[i].ID)
			continue
		}
		id := rt.nextElement(ElementRef{mount: n.mount, path: t.rootPaths[i]})
		n.rootIDs[i] = id
		rt.emit(to, Mutation{Op: OpLoadTemplate, Name: t.Name, Index: i, ID: id})
		rt.writeAttrs(to, n, i)
		rt.loadPlaceholders(to, n, i)
		count++
	}
	return count
}

// createDynamic mounts the dynamic node in slot id of owner.
func (rt *Runtime) createDynamic(to Sink, owner *VNode, id int) int {
	ref := ElementRef{mount: owner.mount, path: owner.tmpl.NodePaths[id]}

	switch d := owner.DynamicNodes[id].(type) {
	case *VText:
		d.id = rt.nextElement(ref)
		rt.emit(to, Mutation{Op: OpCreateText, Value: d.Value, ID: d.id})
		return 1
	case *VPlaceholder:
		d.id = rt.nextElement(ref)
		rt.emit(to, Mutation{Op: OpCreatePlaceholder, ID: d.id})
		return 1
	case *VFragment:
		return rt.createChildren(to, d.Children, ref)
	case *VComponent:
		return rt.createComponent(to, d, ref)
	default:
		panic(fmt.Sprintf("livetree: unknown dynamic node %T", d))
	}
}

func (rt *Runtime) createChildren(to Sink, children []*VNode, parent ElementRef) int {
	checkKeys(children)
	m := 0
	for _, c := range children {
		m += rt.createVNode(to, c, parent)
	}
	return m
}

// writeAttrs assigns ids to the elements of root that carry dynamic
// attributes and writes their values.
func (rt *Runtime) writeAttrs(to Sink, n *VNode, root int) {
	t := n.tmpl
	var cur Path
	var curID ElementID

	for _, a := range t.attrOrder {
		p := t.AttrPaths[a]
		if int(p[0]) != root {
			continue
		}
		if cur == nil || !p.Equal(cur) {
			cur = p
			if len(p) == 1 {
				curID = n.rootIDs[root]
			} else {
				curID = rt.nextElement(ElementRef{mount: n.mount, path: p})
				rt.emit(to, Mutation{Op: OpAssignID, Path: p[1:], ID: curID})
			}
		}
		n.attrIDs[a] = curID
		rt.writeAttr(to, n.DynamicAttrs[a], curID)
	}
}

func (rt *Runtime) writeAttr(to Sink, a Attribute, id ElementID) {
	switch a.Value.Kind {
	case ValueListener:
		rt.emit(to, Mutation{Op: OpNewEventListener, Name: a.eventName(), ID: id})
	case ValueNone:
	default:
		v := a.Value
		rt.emit(to, Mutation{Op: OpSetAttribute, Name: a.Name, Namespace: a.Namespace, Attr: &v, ID: id})
	}
}

// loadPlaceholders fills the nested dynamic slots of root. Slot contents are
// created in document order, so sibling components get ascending scope ids,
// and written in reverse document order so replacing one slot never shifts
// the path of a slot still to be written.
func (rt *Runtime) loadPlaceholders(to Sink, n *VNode, root int) {
	t := n.tmpl
	created := make(map[int]*Mutations)
	counts := make(map[int]int)
	for _, id := range t.nodeOrder {
		p := t.NodePaths[id]
		if int(p[0]) != root || len(p) == 1 || !needsCreate(t, n.DynamicNodes[id], id) {
			continue
		}
		buf := &Mutations{}
		counts[id] = rt.createDynamic(buf, n, id)
		created[id] = buf
	}

	// registrations do not touch the stack, so they can run ahead of every
	// load that needs them
	for _, id := range t.nodeOrder {
		if buf, ok := created[id]; ok {
			for _, m := range buf.Edits {
				if m.Op == OpRegisterTemplate {
					to.Push(m)
				}
			}
		}
	}

	for j := len(t.nodeOrder) - 1; j >= 0; j-- {
		id := t.nodeOrder[j]
		p := t.NodePaths[id]
		if int(p[0]) != root || len(p) == 1 {
			continue
		}
		ref := ElementRef{mount: n.mount, path: p}

		if buf, ok := created[id]; ok {
			for _, m := range buf.Edits {
				if m.Op != OpRegisterTemplate {
					to.Push(m)
				}
			}
			rt.emit(to, Mutation{Op: OpReplacePlaceholder, Path: p[1:], M: counts[id]})
			continue
		}

		switch d := n.DynamicNodes[id].(type) {
		case *VText:
			d.id = rt.nextElement(ref)
			rt.emit(to, Mutation{Op: OpHydrateText, Path: p[1:], Value: d.Value, ID: d.id})
		case *VPlaceholder:
			d.id = rt.nextElement(ref)
			rt.emit(to, Mutation{Op: OpAssignID, Path: p[1:], ID: d.id})
		}
	}
}

// needsCreate reports whether a nested slot is filled by new nodes rather
// than by hydrating the template's own text or placeholder.
func needsCreate(t *Template, d DynamicNode, id int) bool {
	switch d.(type) {
	case *VText:
		return t.slotKinds[id] != DynamicTextSlot
	case *VPlaceholder:
		return false
	}
	return true
}

// createComponent creates a scope for c, renders it and mounts the result.
// A render that panics mounts a placeholder instead.
func (rt *Runtime) createComponent(to Sink, c *VComponent, slot ElementRef) int {
	s := rt.newScope(c, slot)
	node, ok := rt.runScope(s)
	if !ok {
		node = placeholderVNode()
	}
	s.last = node

	var m int
	rt.withScope(s, func() {
		m = rt.createVNode(to, node, slot)
	})
	return m
}

// checkKeys panics when siblings mix keyed and unkeyed nodes or repeat a key.
// It reports whether the group is keyed.
func checkKeys(children []*VNode) bool {
	if len(children) == 0 {
		return false
	}
	keyed := children[0].Key != ""
	var seen map[string]struct{}
	if keyed {
		seen = make(map[string]struct{}, len(children))
	}
	for i, c := range children {
		if (c.Key != "") != keyed {
			violate("keys", "child %d of a fragment breaks the keyed/unkeyed pattern of its siblings", i)
		}
		if !keyed {
			continue
		}
		if _, dup := seen[c.Key]; dup {
			violate("keys", "duplicate key %q among siblings", c.Key)
		}
		seen[c.Key] = struct{}{}
	}
	return keyed
}

package livetree

import "fmt"

// diffNode brings the mounted tree old in line with next, emitting the
// mutations needed. Afterwards next owns the mount and old is unmounted.
func (rt *Runtime) diffNode(to Sink, old, next *VNode) {
	if old == next {
		return
	}
	if old.mount == 0 {
		panic(fmt.Sprintf("livetree: diff against unmounted instance of %s", old.Template.Name))
	}
	if next.mount != 0 {
		violate("tree", "instance of %s is already mounted", next.Template.Name)
	}

	t := rt.resolve(next.Template)
	if !t.indexed() {
		violate("template", "%s was not built with NewTemplate", t.Name)
	}
	next.normalize(t)

	if old.Key != next.Key {
		rt.replace(to, old, next)
		return
	}

	same := old.tmpl == t || (old.tmpl.Name == t.Name && rt.overrides[t.Name] == nil)
	if !same {
		if old.tmpl.Name != t.Name && rt.lightDiff(to, old, next, t) {
			return
		}
		rt.replace(to, old, next)
		return
	}

	rt.adopt(old, next, old.tmpl)
	next.rootIDs = old.rootIDs
	next.attrIDs = old.attrIDs

	for i := range next.DynamicAttrs {
		rt.diffAttr(to, old.DynamicAttrs[i], next.DynamicAttrs[i], next.attrIDs[i])
	}
	for i := range next.DynamicNodes {
		rt.diffDynamic(to, old, next, i)
	}
}

// adopt moves the mount of old to next without touching element ids.
func (rt *Runtime) adopt(old, next *VNode, t *Template) {
	next.tmpl = t
	next.mount = old.mount
	next.parent = old.parent
	rt.mounts.Rebind(uint32(next.mount), next)
	old.mount = 0
}

// replace mounts next where old is and unmounts old.
func (rt *Runtime) replace(to Sink, old, next *VNode) {
	m := rt.createVNode(to, next, old.parent)
	rt.removeVNode(to, old, m, true)
}

// lightDiff handles two different templates that both consist only of
// component roots with pairwise identical render functions: the components
// are diffed in place so their state survives the template switch.
func (rt *Runtime) lightDiff(to Sink, old, next *VNode, t *Template) bool {
	ot := old.tmpl
	if len(ot.Roots) != len(t.Roots) || !ot.allRootsDynamic() || !t.allRootsDynamic() {
		return false
	}
	for i := range t.Roots {
		l, ok := old.DynamicNodes[ot.Roots[i].ID].(*VComponent)
		if !ok {
			return false
		}
		r, ok := next.DynamicNodes[t.Roots[i].ID].(*VComponent)
		if !ok || l.renderID != r.renderID {
			return false
		}
	}

	rt.register(to, t)
	rt.adopt(old, next, t)
	next.rootIDs = make([]ElementID, len(t.Roots))
	next.attrIDs = nil

	for i := range t.Roots {
		l := old.DynamicNodes[ot.Roots[i].ID].(*VComponent)
		r := next.DynamicNodes[t.Roots[i].ID].(*VComponent)
		rt.diffComponent(to, l, r, ElementRef{mount: next.mount, path: t.rootPaths[i]})
	}
	return true
}

func (rt *Runtime) diffAttr(to Sink, l, r Attribute, id ElementID) {
	switch {
	case l.Name != r.Name || l.Namespace != r.Namespace:
		rt.clearAttr(to, l, id)
		rt.writeAttr(to, r, id)
	case l.isListener() && r.isListener():
	case l.isListener():
		rt.emit(to, Mutation{Op: OpRemoveEventListener, Name: l.eventName(), ID: id})
		rt.writeAttr(to, r, id)
	case r.isListener():
		rt.clearAttr(to, l, id)
		rt.writeAttr(to, r, id)
	case !l.Value.Equal(r.Value) || l.Volatile != r.Volatile:
		v := r.Value
		rt.emit(to, Mutation{Op: OpSetAttribute, Name: r.Name, Namespace: r.Namespace, Attr: &v, ID: id})
	}
}

func (rt *Runtime) clearAttr(to Sink, a Attribute, id ElementID) {
	switch a.Value.Kind {
	case ValueListener:
		rt.emit(to, Mutation{Op: OpRemoveEventListener, Name: a.eventName(), ID: id})
	case ValueNone:
	default:
		v := None()
		rt.emit(to, Mutation{Op: OpSetAttribute, Name: a.Name, Namespace: a.Namespace, Attr: &v, ID: id})
	}
}

// diffDynamic pairs slot i of two instances of the same template.
func (rt *Runtime) diffDynamic(to Sink, old, next *VNode, i int) {
	ref := ElementRef{mount: next.mount, path: next.tmpl.NodePaths[i]}

	switch l := old.DynamicNodes[i].(type) {
	case *VText:
		if r, ok := next.DynamicNodes[i].(*VText); ok {
			r.id = l.id
			if l.Value != r.Value {
				rt.emit(to, Mutation{Op: OpSetText, Value: r.Value, ID: r.id})
			}
			return
		}
	case *VPlaceholder:
		switch r := next.DynamicNodes[i].(type) {
		case *VPlaceholder:
			r.id = l.id
			return
		case *VFragment:
			m := rt.createChildren(to, r.Children, ref)
			rt.emit(to, Mutation{Op: OpReplaceWith, ID: l.id, M: m})
			rt.releaseElement(l.id)
			return
		}
	case *VFragment:
		switch r := next.DynamicNodes[i].(type) {
		case *VFragment:
			rt.diffChildren(to, l.Children, r.Children, ref)
			return
		case *VPlaceholder:
			r.id = rt.nextElement(ref)
			rt.emit(to, Mutation{Op: OpCreatePlaceholder, ID: r.id})
			rt.removeChildren(to, l.Children, 1)
			return
		}
	case *VComponent:
		if r, ok := next.DynamicNodes[i].(*VComponent); ok {
			rt.diffComponent(to, l, r, ref)
			return
		}
	}

	// kinds differ: mount the new node, then put it where the old one was
	m := rt.createDynamic(to, next, i)
	rt.removeDynamic(to, old.DynamicNodes[i], m, true)
}

// diffComponent re-renders a child component when its props changed.
func (rt *Runtime) diffComponent(to Sink, l, r *VComponent, slot ElementRef) {
	if l == r {
		return
	}
	if l.renderID != r.renderID {
		m := rt.createComponent(to, r, slot)
		rt.removeComponent(to, l, m, true)
		return
	}

	s, ok := rt.Scope(l.scope)
	if !ok {
		panic(fmt.Sprintf("livetree: diff against torn-down scope %d of %s", l.scope, l.Name))
	}
	r.scope = l.scope
	s.slot = slot

	// a failed last render is retried even with equal props
	if !r.noMemo && !s.failed && r.props.memoize(s.props) {
		rt.metrics.IncrementMemoizedSkip()
		return
	}
	s.props = r.props
	s.name = r.Name
	rt.rerender(to, s)
}

// rerender runs a scope's component and diffs the result against its last
// tree. A failed render keeps the last tree.
func (rt *Runtime) rerender(to Sink, s *Scope) {
	node, ok := rt.runScope(s)
	if !ok {
		return
	}
	old := s.last
	rt.withScope(s, func() {
		rt.diffNode(to, old, node)
	})
	s.last = node
}

// firstElement returns the first real root of a mounted node.
func (rt *Runtime) firstElement(n *VNode) ElementID {
	t := n.tmpl
	if !t.IsRootDynamic(0) {
		return n.rootIDs[0]
	}
	return rt.edgeOfDynamic(n.DynamicNodes[t.Roots[0].ID], true)
}

// lastElement returns the last real root of a mounted node.
func (rt *Runtime) lastElement(n *VNode) ElementID {
	t := n.tmpl
	last := len(t.Roots) - 1
	if !t.IsRootDynamic(last) {
		return n.rootIDs[last]
	}
	return rt.edgeOfDynamic(n.DynamicNodes[t.Roots[last].ID], false)
}

func (rt *Runtime) edgeOfDynamic(d DynamicNode, first bool) ElementID {
	switch d := d.(type) {
	case *VText:
		return d.id
	case *VPlaceholder:
		return d.id
	case *VFragment:
		if first {
			return rt.firstElement(d.Children[0])
		}
		return rt.lastElement(d.Children[len(d.Children)-1])
	case *VComponent:
		s, ok := rt.Scope(d.scope)
		if !ok {
			panic(fmt.Sprintf("livetree: scope %d of %s is not live", d.scope, d.Name))
		}
		if first {
			return rt.firstElement(s.last)
		}
		return rt.lastElement(s.last)
	default:
		panic(fmt.Sprintf("livetree: unknown dynamic node %T", d))
	}
}

// pushRoots stages every real root of a mounted node, in order, so that a
// following insert moves them. It returns how many were staged.
func (rt *Runtime) pushRoots(to Sink, n *VNode) int {
	t := n.tmpl
	count := 0
	for i := range t.Roots {
		if !t.IsRootDynamic(i) {
			rt.emit(to, Mutation{Op: OpPushRoot, ID: n.rootIDs[i]})
			count++
			continue
		}
		switch d := n.DynamicNodes[t.Roots[i].ID].(type) {
		case *VText:
			rt.emit(to, Mutation{Op: OpPushRoot, ID: d.id})
			count++
		case *VPlaceholder:
			rt.emit(to, Mutation{Op: OpPushRoot, ID: d.id})
			count++
		case *VFragment:
			for _, c := range d.Children {
				count += rt.pushRoots(to, c)
			}
		case *VComponent:
			s, _ := rt.Scope(d.scope)
			count += rt.pushRoots(to, s.last)
		}
	}
	return count
}

package livetree

import "fmt"

// removeVNode unmounts n. Nested slots, nested element ids and component
// scopes are released before the node's own roots. If replaceWith is not
// negative the first real root is replaced by that many staged nodes; the
// other roots get a Remove when gen is set.
func (rt *Runtime) removeVNode(to Sink, n *VNode, replaceWith int, gen bool) {
	if n.mount == 0 {
		panic(fmt.Sprintf("livetree: removal of unmounted instance of %s", n.Template.Name))
	}
	t := n.tmpl

	for id, p := range t.NodePaths {
		if len(p) > 1 {
			rt.removeDynamic(to, n.DynamicNodes[id], -1, false)
		}
	}

	var last ElementID
	for _, a := range t.attrOrder {
		if len(t.AttrPaths[a]) == 1 {
			continue
		}
		if id := n.attrIDs[a]; id != 0 && id != last {
			rt.releaseElement(id)
			last = id
		}
	}

	for i := range t.Roots {
		rw := -1
		if i == 0 {
			rw = replaceWith
		}
		if t.IsRootDynamic(i) {
			rt.removeDynamic(to, n.DynamicNodes[t.Roots[i].ID], rw, gen)
			continue
		}
		rt.removeLeaf(to, n.rootIDs[i], rw, gen)
	}

	rt.mounts.Remove(uint32(n.mount))
	n.mount = 0
}

func (rt *Runtime) removeLeaf(to Sink, id ElementID, replaceWith int, gen bool) {
	switch {
	case replaceWith >= 0:
		rt.emit(to, Mutation{Op: OpReplaceWith, ID: id, M: replaceWith})
	case gen:
		rt.emit(to, Mutation{Op: OpRemove, ID: id})
	}
	rt.releaseElement(id)
}

func (rt *Runtime) removeDynamic(to Sink, d DynamicNode, replaceWith int, gen bool) {
	switch d := d.(type) {
	case *VText:
		rt.removeLeaf(to, d.id, replaceWith, gen)
	case *VPlaceholder:
		rt.removeLeaf(to, d.id, replaceWith, gen)
	case *VFragment:
		for i, c := range d.Children {
			rw := -1
			if i == 0 {
				rw = replaceWith
			}
			rt.removeVNode(to, c, rw, gen)
		}
	case *VComponent:
		rt.removeComponent(to, d, replaceWith, gen)
	}
}

// removeChildren removes a run of siblings, replacing the first one when
// replaceWith is not negative.
func (rt *Runtime) removeChildren(to Sink, children []*VNode, replaceWith int) {
	for i, c := range children {
		rw := -1
		if i == 0 {
			rw = replaceWith
		}
		rt.removeVNode(to, c, rw, true)
	}
}

// removeComponent drops a scope bottom-up: its tree and with it every
// descendant scope first, then its own hooks and tasks.
func (rt *Runtime) removeComponent(to Sink, c *VComponent, replaceWith int, gen bool) {
	s, ok := rt.Scope(c.scope)
	if !ok {
		panic(fmt.Sprintf("livetree: removal of torn-down scope %d of %s", c.scope, c.Name))
	}

	if s.last != nil && s.last.mount != 0 {
		rt.withScope(s, func() {
			rt.removeVNode(to, s.last, replaceWith, gen)
		})
	}
	rt.disposeHooks(s)
	rt.cancelScopeTasks(s)

	rt.dirty.Remove(uint32(s.id))
	rt.scopes.Remove(uint32(s.id))
	c.scope = 0
	rt.metrics.IncrementScopeDropped()
}

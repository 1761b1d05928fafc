package livetree

import (
	"fmt"

	"go.uber.org/multierr"
)

// CheckInvariants walks the mounted tree and verifies that every element id,
// mount and scope it references is live, and that nothing live is
// unreachable. Render goroutine only. It is run after every pass when
// Config.Debug is set.
func (rt *Runtime) CheckInvariants() error {
	if !rt.built || rt.closed.Load() {
		return nil
	}
	c := &checker{
		rt:       rt,
		elements: make(map[ElementID]struct{}),
		pending:  make(map[ElementID]struct{}, len(rt.pendingRelease)),
	}
	for _, id := range rt.pendingRelease {
		c.pending[id] = struct{}{}
	}

	root, ok := rt.Scope(rt.rootScope)
	if !ok {
		return fmt.Errorf("root scope %d is not live", rt.rootScope)
	}
	c.scope(root, 0)

	live := rt.elements.Len() - 1 - len(c.pending)
	if len(c.elements) != live {
		c.fail("%d element ids are live but %d are reachable", live, len(c.elements))
	}
	if n := rt.mounts.Len() - 1; c.mounts != n {
		c.fail("%d mounts are live but %d are reachable", n, c.mounts)
	}
	if n := rt.scopes.Len() - 1; c.scopes != n {
		c.fail("%d scopes are live but %d are reachable", n, c.scopes)
	}
	return c.err
}

type checker struct {
	rt       *Runtime
	elements map[ElementID]struct{}
	pending  map[ElementID]struct{}
	mounts   int
	scopes   int
	err      error
}

func (c *checker) fail(format string, args ...any) {
	c.err = multierr.Append(c.err, fmt.Errorf(format, args...))
}

func (c *checker) scope(s *Scope, parent ScopeID) {
	c.scopes++
	if s.parent != parent {
		c.fail("scope %d (%s) has parent %d, found under %d", s.id, s.name, s.parent, parent)
	}
	if s.last == nil {
		c.fail("scope %d (%s) has no rendered tree", s.id, s.name)
		return
	}
	c.node(s, s.last)
}

func (c *checker) node(owner *Scope, n *VNode) {
	if n.mount == 0 {
		c.fail("%s in scope %d is not mounted", n.Template.Name, owner.id)
		return
	}
	c.mounts++
	if got, ok := c.rt.mounts.Get(uint32(n.mount)); !ok || got != n {
		c.fail("mount %d of %s does not resolve to its instance", n.mount, n.Template.Name)
	}

	t := n.tmpl
	for i := range t.Roots {
		if !t.IsRootDynamic(i) {
			c.element(n.rootIDs[i], n)
		}
	}
	for _, id := range n.attrIDs {
		c.element(id, n)
	}

	for i, d := range n.DynamicNodes {
		switch d := d.(type) {
		case *VText:
			c.element(d.id, n)
		case *VPlaceholder:
			c.element(d.id, n)
		case *VFragment:
			for _, child := range d.Children {
				if child.parent.mount != n.mount || !child.parent.path.Equal(t.NodePaths[i]) {
					c.fail("fragment child of %s points at the wrong slot", t.Name)
				}
				c.node(owner, child)
			}
		case *VComponent:
			s, ok := c.rt.Scope(d.scope)
			if !ok {
				c.fail("component %s in %s references dead scope %d", d.Name, t.Name, d.scope)
				continue
			}
			c.scope(s, owner.id)
		}
	}
}

func (c *checker) element(id ElementID, owner *VNode) {
	if id == RootID {
		c.fail("%s holds an unassigned element id", owner.tmpl.Name)
		return
	}
	if _, released := c.pending[id]; released {
		c.fail("%s holds released element %d", owner.tmpl.Name, id)
		return
	}
	ref, ok := c.rt.elements.Get(uint32(id))
	if !ok {
		c.fail("%s holds dead element %d", owner.tmpl.Name, id)
		return
	}
	if ref.mount != owner.mount {
		c.fail("element %d of %s points at mount %d", id, owner.tmpl.Name, ref.mount)
	}
	c.elements[id] = struct{}{}
}

package livetree

import "fmt"

// ReplaceTemplate swaps the template registered under t.Name for t. Every
// scope whose last render instantiated that name is re-rendered in the
// immediate lane; its instances are replaced rather than diffed because the
// slot layout may have changed. Safe from any goroutine.
func (rt *Runtime) ReplaceTemplate(t *Template) error {
	if t == nil || !t.indexed() {
		return fmt.Errorf("replace template: template must be built with NewTemplate")
	}
	if !rt.queue.Push(message{kind: msgTemplate, template: t}) {
		return ErrRuntimeClosed
	}
	return nil
}

func (rt *Runtime) applyTemplate(t *Template) {
	rt.overrides[t.Name] = t
	rt.metrics.IncrementCustomCounter("hot_reload")

	marked := 0
	rt.scopes.Each(func(id uint32, s *Scope) bool {
		if s != nil && s.last != nil && usesTemplate(s.last, t.Name) {
			rt.markDirtyNow(ScopeID(id), LaneImmediate)
			marked++
		}
		return true
	})
	rt.log.Infof("template %s replaced, %d scopes scheduled", t.Name, marked)
}

// usesTemplate reports whether n or any fragment child below it, without
// crossing into child components, instantiates the named template.
func usesTemplate(n *VNode, name string) bool {
	if n.Template.Name == name || (n.tmpl != nil && n.tmpl.Name == name) {
		return true
	}
	for _, d := range n.DynamicNodes {
		f, ok := d.(*VFragment)
		if !ok {
			continue
		}
		for _, c := range f.Children {
			if usesTemplate(c, name) {
				return true
			}
		}
	}
	return false
}

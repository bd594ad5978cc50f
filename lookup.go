package taproot

// Lookup resolves a name from the position of a node: the node's own scope
// table first, then the lexical chain (function scopes chain upward past
// class scopes, which are visible only when the lookup starts directly in
// the class body), ending at the module scope and its builtins fallback.
// Bindings come back in registration order, the originating scope's first.
// There is no flow analysis; callers filter by position when they care.
//
// An empty result is a *NotFoundError. The returned scope is the one that
// bound the name, which is not necessarily the scope the search started in.
func Lookup(from Node, name string) (ScopedNode, []Node, error) {
	if from == nil {
		return nil, nil, &UnresolvableNameError{Name: name}
	}
	scope := from.Scope()
	if scope == nil {
		return nil, nil, &UnresolvableNameError{Name: name, Node: from}
	}
	found, stmts, err := scope.scopeLookup(from, name)
	if err != nil {
		return nil, nil, err
	}
	if len(stmts) == 0 {
		return nil, nil, &NotFoundError{Name: name}
	}
	return found, stmts, nil
}

// chainLookup checks s's own table, then walks enclosing scopes skipping
// class scopes, then falls back to the builtins module.
func chainLookup(s ScopedNode, from Node, name string) (ScopedNode, []Node, error) {
	if stmts := s.LocalBindings(name); len(stmts) > 0 {
		return s, stmts, nil
	}
	for p := parentScope(s); p != nil; p = parentScope(p) {
		if _, ok := p.(*ClassDef); ok {
			continue
		}
		return p.scopeLookup(from, name)
	}
	return builtinLookup(s, name)
}

// builtinLookup resolves name in the builtins module of the session that
// owns s's tree. Trees built without a session have no builtins.
func builtinLookup(s ScopedNode, name string) (ScopedNode, []Node, error) {
	root := s.Root()
	if root == nil || root.session == nil {
		return nil, nil, nil
	}
	b := root.session.Builtins()
	if b == nil || b == root {
		return b, nil, nil
	}
	if stmts := b.LocalBindings(name); len(stmts) > 0 {
		return b, stmts, nil
	}
	return b, nil, nil
}

func (m *Module) scopeLookup(from Node, name string) (ScopedNode, []Node, error) {
	// module attributes like __name__ resolve here unless shadowed
	if c, ok := m.specials[name]; ok && len(m.LocalBindings(name)) == 0 {
		return m, []Node{c}, nil
	}
	return chainLookup(m, from, name)
}

func (c *ClassDef) scopeLookup(from Node, name string) (ScopedNode, []Node, error) {
	// bases and decorators evaluate before the class name exists, in the
	// enclosing scope
	if containedInAny(from, c.Bases) || containedInAny(from, c.Decorators) {
		if p := parentScope(c); p != nil {
			return p.scopeLookup(from, name)
		}
	}
	return chainLookup(c, from, name)
}

func (f *FunctionDef) scopeLookup(from Node, name string) (ScopedNode, []Node, error) {
	if name == "__class__" {
		// implicit closure cell available to methods
		if cls, ok := f.Parent().(*ClassDef); ok {
			return f, []Node{cls}, nil
		}
	}
	if f.declaresGlobal(name) {
		if root := f.Root(); root != nil {
			return root.scopeLookup(from, name)
		}
	}
	if f.declaresNonlocal(name) {
		return nonlocalLookup(f, from, name)
	}
	if f.Args != nil && containedInAny(from, f.Args.defaultExprs()) ||
		containedInAny(from, f.Decorators) {
		if p := parentScope(f); p != nil {
			return p.scopeLookup(from, name)
		}
	}
	return chainLookup(f, from, name)
}

func (l *Lambda) scopeLookup(from Node, name string) (ScopedNode, []Node, error) {
	if l.Args != nil && containedInAny(from, l.Args.defaultExprs()) {
		if p := parentScope(l); p != nil {
			return p.scopeLookup(from, name)
		}
	}
	return chainLookup(l, from, name)
}

func (c *Comp) scopeLookup(from Node, name string) (ScopedNode, []Node, error) {
	return chainLookup(c, from, name)
}

// nonlocalLookup binds to the nearest enclosing function scope that binds
// name, never the module scope. A miss is the free-name error: the
// declaration names a binding that does not exist.
func nonlocalLookup(f *FunctionDef, from Node, name string) (ScopedNode, []Node, error) {
	for p := parentScope(f); p != nil; p = parentScope(p) {
		switch p.(type) {
		case *FunctionDef, *Lambda:
			if stmts := p.LocalBindings(name); len(stmts) > 0 {
				return p, stmts, nil
			}
		case *Module:
			return nil, nil, &UnresolvableNameError{Name: name, Node: from}
		}
	}
	return nil, nil, &UnresolvableNameError{Name: name, Node: from}
}

// defaultExprs collects the parameter default expressions, which evaluate in
// the scope enclosing the function.
func (a *Arguments) defaultExprs() []Node {
	var out []Node
	for _, p := range a.Params {
		if p.Default != nil {
			out = append(out, p.Default)
		}
	}
	return out
}

package taproot

// MRO returns the class's method resolution order, the class itself first,
// by C3 linearization over the inferred bases: merge of the class, each
// base's linearization, and the base list, taking at each step the first
// head that appears in no other sequence's tail. Base-less classes extend
// the builtin object implicitly. ctx may be nil.
func (c *ClassDef) MRO(ctx *Context) ([]*ClassDef, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	return c.computeMRO(ctx, map[*ClassDef]bool{})
}

// Ancestors is the method resolution order without the class itself.
func (c *ClassDef) Ancestors(ctx *Context) ([]*ClassDef, error) {
	mro, err := c.MRO(ctx)
	if err != nil {
		return nil, err
	}
	return mro[1:], nil
}

func (c *ClassDef) computeMRO(ctx *Context, seen map[*ClassDef]bool) ([]*ClassDef, error) {
	if seen[c] {
		return nil, &MroError{Class: c.QName(), Reason: "inheritance cycle"}
	}
	seen[c] = true
	defer delete(seen, c)

	bases := c.inferredBases(ctx)
	for i, b := range bases {
		for _, prev := range bases[:i] {
			if prev == b {
				return nil, &MroError{Class: c.QName(), Reason: "duplicate base " + b.Name}
			}
		}
	}

	merge := [][]*ClassDef{{c}}
	for _, b := range bases {
		if b == c {
			continue
		}
		m, err := b.computeMRO(ctx, seen)
		if err != nil {
			return nil, err
		}
		merge = append(merge, m)
	}
	merge = append(merge, bases)
	return c3Merge(merge, c)
}

// inferredBases resolves each base expression to its first class value, in
// declaration order. Unresolvable bases are skipped rather than failing the
// linearization.
func (c *ClassDef) inferredBases(ctx *Context) []*ClassDef {
	if len(c.Bases) == 0 {
		if c.QName() == "builtins.object" {
			return nil
		}
		if obj := builtinClass(c, "object"); obj != nil {
			return []*ClassDef{obj}
		}
		return nil
	}
	var out []*ClassDef
	for _, b := range c.Bases {
		vals, err := inferAll(b, ctx.fork())
		if err != nil {
			continue
		}
		for _, v := range vals {
			cls := classOf(v)
			if cls == nil {
				continue
			}
			out = append(out, cls)
			break
		}
	}
	return out
}

func c3Merge(seqs [][]*ClassDef, cls *ClassDef) ([]*ClassDef, error) {
	var out []*ClassDef
	for {
		var live [][]*ClassDef
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		if len(live) == 0 {
			return out, nil
		}
		var candidate *ClassDef
		for _, s := range live {
			if head := s[0]; !inAnyTail(head, live) {
				candidate = head
				break
			}
		}
		if candidate == nil {
			return nil, &MroError{Class: cls.QName(), Reason: "no consistent linearization"}
		}
		out = append(out, candidate)
		for i, s := range live {
			if s[0] == candidate {
				live[i] = s[1:]
			}
		}
		seqs = live
	}
}

func inAnyTail(c *ClassDef, seqs [][]*ClassDef) bool {
	for _, s := range seqs {
		for _, x := range s[1:] {
			if x == c {
				return true
			}
		}
	}
	return false
}

// classOf unwraps a value to the class it stands for in an inheritance
// position: a class is itself, an instance stands for its class.
func classOf(v Value) *ClassDef {
	switch cv := v.(type) {
	case *ClassDef:
		return cv
	case *Instance:
		return cv.Class
	}
	return nil
}

package taproot

import (
	"strings"

	"github.com/jward/taproot/internal/stubrt"
)

// Native modules are synthesized from stub declarations instead of parsed
// source. The resulting trees honor the same contract as built ones: locals
// populated, parents linked, special attributes present. Synthesized nodes
// carry zero spans.

func synthesizeModule(decl *stubrt.ModuleDecl, sess *Session) *Module {
	m := &Module{
		base:      newBase(Span{}),
		Name:      decl.Name,
		Doc:       decl.Doc,
		Synthetic: true,
		session:   sess,
	}
	for _, cd := range decl.Classes {
		c := synthClassDef(m, cd)
		c.setParent(m)
		m.Body = append(m.Body, c)
		m.setLocal(c.Name, c)
	}
	for _, fd := range decl.Funcs {
		f := synthFuncDef(m, fd)
		f.setParent(m)
		m.Body = append(m.Body, f)
		m.setLocal(f.Name, f)
	}
	for _, kd := range decl.Consts {
		k := synthDeclConst(kd)
		k.setParent(m)
		k.setScope(m)
		m.Body = append(m.Body, k)
		m.setLocal(kd.Name, k)
	}
	m.initSpecials()
	return m
}

func synthClassDef(m *Module, decl *stubrt.ClassDecl) *ClassDef {
	c := &ClassDef{base: newBase(Span{}), Name: decl.Name, Doc: decl.Doc}
	for _, bn := range decl.Bases {
		b := &Name{base: newBase(Span{}), Name: bn}
		b.setParent(c)
		b.setScope(m)
		c.Bases = append(c.Bases, b)
	}
	for _, md := range decl.Methods {
		f := synthFuncDef(c, md)
		f.setParent(c)
		c.Body = append(c.Body, f)
		c.setLocal(f.Name, f)
	}
	for _, ad := range decl.Attrs {
		k := synthDeclConst(ad)
		k.setParent(c)
		k.setScope(c)
		c.Body = append(c.Body, k)
		c.setLocal(ad.Name, k)
	}
	return c
}

func synthFuncDef(owner Node, decl *stubrt.FuncDecl) *FunctionDef {
	f := &FunctionDef{
		base:      newBase(Span{}),
		Name:      decl.Name,
		Doc:       decl.Doc,
		generator: decl.Generator,
	}
	args := &Arguments{base: newBase(Span{})}
	args.setParent(f)
	args.setScope(f)
	for _, pname := range decl.Params {
		kind := ParamPositional
		switch {
		case strings.HasPrefix(pname, "**"):
			kind = ParamKwarg
			pname = pname[2:]
		case strings.HasPrefix(pname, "*"):
			kind = ParamVararg
			pname = pname[1:]
		}
		p := &Param{base: newBase(Span{}), Name: pname, Kind: kind}
		p.setParent(args)
		p.setScope(f)
		args.Params = append(args.Params, p)
		f.setLocal(p.Name, p)
	}
	f.Args = args
	f.Body = synthFuncBody(f, decl.Returns)
	return f
}

// synthFuncBody renders the declared result: "cls" becomes `return cls()` so
// call inference produces an instance, "None" a bare return, and no
// declaration an empty pass body.
func synthFuncBody(f *FunctionDef, returns string) []Node {
	switch returns {
	case "":
		p := &Pass{base: newBase(Span{})}
		p.setParent(f)
		p.setScope(f)
		return []Node{p}
	case "None":
		ret := &Return{base: newBase(Span{})}
		ret.setParent(f)
		ret.setScope(f)
		return []Node{ret}
	case "any":
		// An empty name never resolves, so the call result reads as Uninferable.
		nm := &Name{base: newBase(Span{})}
		ret := &Return{base: newBase(Span{}), Value: nm}
		nm.setParent(ret)
		nm.setScope(f)
		ret.setParent(f)
		ret.setScope(f)
		return []Node{ret}
	}
	nm := &Name{base: newBase(Span{}), Name: returns}
	call := &Call{base: newBase(Span{}), Func: nm}
	ret := &Return{base: newBase(Span{}), Value: call}
	nm.setParent(call)
	nm.setScope(f)
	call.setParent(ret)
	call.setScope(f)
	ret.setParent(f)
	ret.setScope(f)
	return []Node{ret}
}

func synthDeclConst(d *stubrt.ConstDecl) *Const {
	c := &Const{base: newBase(Span{})}
	switch d.Kind {
	case "str":
		c.Kind = ConstStr
		if s, ok := d.Value.(string); ok {
			c.Value = s
		} else {
			c.Value = ""
		}
	case "bytes":
		c.Kind = ConstBytes
		if s, ok := d.Value.(string); ok {
			c.Value = s
		} else {
			c.Value = ""
		}
	case "int":
		c.Kind = ConstInt
		if i, ok := d.Value.(int64); ok {
			c.Value = i
		} else {
			c.Value = int64(0)
		}
	case "float":
		c.Kind = ConstFloat
		if f, ok := d.Value.(float64); ok {
			c.Value = f
		} else {
			c.Value = 0.0
		}
	case "bool":
		c.Kind = ConstBool
		b, _ := d.Value.(bool)
		c.Value = b
	default:
		c.Kind = ConstNone
	}
	return c
}

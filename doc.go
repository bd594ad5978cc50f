// Package taproot builds semantically enriched syntax trees from Python
// source and infers the possible runtime values of their expressions. It
// bridges tree-sitter's concrete syntax tree and the questions a linter or
// refactoring tool asks: what does this name refer to, what could this
// expression evaluate to, which class does this attribute access reach.
// Analyzed code is never executed.
//
// # Pipeline
//
// taproot operates in two phases:
//
//  1. Build: parse source with tree-sitter, then enrich the primitive tree
//     into typed nodes carrying parent links, scope tables, docstrings, and
//     instance-attribute records. Trees are immutable once built and one
//     malformed construct rejects the whole module.
//
//  2. Infer: resolve names through the lexical scope chain, attributes
//     through C3 method resolution order, and calls through return
//     statements, folding operators over constant operands. Anything
//     unresolvable degrades to the [Uninferable] sentinel instead of
//     erroring, and cycle guards keep recursive definitions finite.
//
// # Usage
//
// Create a [Session], build modules, and infer expressions:
//
//	sess, err := taproot.NewSession(taproot.WithSearchPath("path/to/project"))
//	if err != nil { ... }
//	defer sess.Close()
//
//	mod, err := sess.BuildSource([]byte("x = 1 + 2"), "demo", "")
//	if err != nil { ... }
//
//	scope, bindings, err := taproot.Lookup(mod, "x")
//	for v := range taproot.Infer(bindings[0], nil) {
//		fmt.Println(v.Display()) // prints 3
//	}
//
// [InferAll] materializes the candidates; [InferAllStrict] propagates
// resolution failures instead of degrading them.
//
// # Sessions
//
// A [Session] owns the module registry and the inference cache. Each
// canonical module name maps to exactly one live tree: repeat requests
// return the identical pointer, failed builds are recorded rather than
// retried, and [Session.Invalidate] or [Session.Reset] force rebuilds.
// [Session.BuildModule] resolves dotted names against the configured search
// path, then native stubs, then import hooks. [Session.BuildDir] builds a
// whole source tree on a worker pool, and [Session.Watch] invalidates
// entries as their backing files change.
//
// # Native stubs
//
// Modules with no Python source (builtins, sys) are declared in Risor stub
// scripts embedded in the library. The scripts call host functions
// (defmodule, defclass, deffunc, defconst) whose declarations synthesize
// trees honoring the same contract as built ones, so literals resolve their
// methods through the ordinary lookup path. [WithStubsFS] swaps in an
// alternative script set; see the internal/stubrt package for the globals
// exposed to scripts.
package taproot

package taproot

import (
	"errors"
	"fmt"
)

// Error families. Concrete error types report membership through Is, so
// errors.Is(err, ErrBuild) matches any build-family error and
// errors.Is(err, ErrResolve) matches any resolution-family one regardless of
// wrapping.
var (
	// ErrBuild covers failures constructing one module tree: unreadable
	// files, malformed source, unresolvable imports. A build failure is
	// scoped to a single registry entry and never disturbs other modules.
	ErrBuild = errors.New("taproot: build error")

	// ErrResolve covers the expected, frequent failures of name and value
	// resolution. Inference catches these and degrades to Uninferable
	// unless a strict entry point is used.
	ErrResolve = errors.New("taproot: resolve error")
)

// SkipSubtree is a control sentinel, not a failure: a Walk callback returns
// it to skip the current node's children while the traversal continues.
var SkipSubtree = errors.New("taproot: skip subtree")

// errNoSession marks trees built outside any Session, which cannot resolve
// imports or builtins.
var errNoSession = errors.New("node tree has no session")

// BuildError reports that constructing one module failed.
type BuildError struct {
	Modname string
	Path    string
	Err     error
}

func (e *BuildError) Error() string {
	name := e.Modname
	if name == "" {
		name = e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("taproot: building %s: %v", name, e.Err)
	}
	return fmt.Sprintf("taproot: building %s failed", name)
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool { return target == ErrBuild }

// ImportError reports a module name that resolved to no source file, package
// directory, native stub, or import hook result.
type ImportError struct {
	Modname string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("taproot: importing %s: %v", e.Modname, e.Err)
	}
	return fmt.Sprintf("taproot: cannot import %s", e.Modname)
}

func (e *ImportError) Unwrap() error { return e.Err }

func (e *ImportError) Is(target error) bool { return target == ErrBuild }

// SyntaxError reports malformed source. Line is 1-based.
type SyntaxError struct {
	Path string
	Line int
}

func (e *SyntaxError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("taproot: %s:%d: syntax error", e.Path, e.Line)
	}
	return fmt.Sprintf("taproot: line %d: syntax error", e.Line)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrBuild }

// NotFoundError reports a name absent from every scope in the lookup chain
// (builtins included), or an attribute absent from a value's surface.
type NotFoundError struct {
	Name   string
	Target string // description of what was searched
}

func (e *NotFoundError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("taproot: %s has no attribute %q", e.Target, e.Name)
	}
	return fmt.Sprintf("taproot: name %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrResolve }

// InferenceError reports that no candidate value could be determined for a
// node.
type InferenceError struct {
	Node   Node
	Reason string
}

func (e *InferenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("taproot: inference failed: %s", e.Reason)
	}
	return "taproot: inference failed"
}

func (e *InferenceError) Is(target error) bool { return target == ErrResolve }

// UnresolvableNameError is the free-name variant of inference failure: a
// name reference whose binding cannot be traced to any definition.
type UnresolvableNameError struct {
	Name string
	Node Node
}

func (e *UnresolvableNameError) Error() string {
	return fmt.Sprintf("taproot: unresolvable name %q", e.Name)
}

func (e *UnresolvableNameError) Is(target error) bool { return target == ErrResolve }

// MroError reports a class hierarchy with no consistent linearization.
type MroError struct {
	Class  string
	Reason string
}

func (e *MroError) Error() string {
	return fmt.Sprintf("taproot: cannot linearize bases of %s: %s", e.Class, e.Reason)
}

func (e *MroError) Is(target error) bool { return target == ErrResolve }

// NoDefaultError is returned only when a caller explicitly asks for a
// parameter default that does not exist.
type NoDefaultError struct {
	Func  string
	Param string
}

func (e *NoDefaultError) Error() string {
	return fmt.Sprintf("taproot: %s: parameter %q has no default", e.Func, e.Param)
}

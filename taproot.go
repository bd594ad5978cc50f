package taproot

// Package-level convenience entry points, operating on the lazily created
// default session. Callers that need their own search path, limits, or stubs
// construct a Session instead.

// BuildSource builds a module from source bytes on the default session.
func BuildSource(src []byte, modname, path string) (*Module, error) {
	return Default().BuildSource(src, modname, path)
}

// BuildFile builds the module or package at path on the default session.
func BuildFile(path, modname string) (*Module, error) {
	return Default().BuildFile(path, modname)
}

// BuildModule resolves a dotted module name on the default session.
func BuildModule(modname string) (*Module, error) {
	return Default().BuildModule(modname)
}

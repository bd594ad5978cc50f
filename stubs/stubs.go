// Package stubs embeds the Risor declaration scripts for native modules:
// the builtins surface and the handful of standard modules inference needs
// without source on disk. Sessions load these by default; WithStubsFS swaps
// in a custom set.
package stubs

import "embed"

// FS holds the stub scripts. Each *.risor file declares one or more native
// modules through the stub runtime host functions.
//
//go:embed *.risor
var FS embed.FS

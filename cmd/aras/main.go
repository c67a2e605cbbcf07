// Command aras runs the native HTTP/1.1 and WebSocket server described by
// SPEC_FULL.md against a Go asgi.Handler supplied by the embedding program.
//
// This binary ships with no bundled application: it is the skeleton CLI a
// real application main package composes by calling cli.Register with its
// own asgi.Handler before calling cli.Execute.
package main

import (
	"fmt"
	"os"

	"github.com/joepatol/aras/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

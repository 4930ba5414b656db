// Command webpconv is the CLI entrypoint for the WebP batch converter.
//
// It builds the command tree (convert, watch, analyze, check, version) and
// maps the outcome to an exit status: 0 on success, 1 if any file failed or
// the command could not run.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/backmassage/webpconv/internal/cmd"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd.SetVersion(version, commit)
	if err := cmd.Execute(); err != nil {
		// ErrFailed has already been reported through the logger.
		if !errors.Is(err, cmd.ErrFailed) {
			fmt.Fprintf(os.Stderr, "webpconv: %v\n", err)
		}
		return 1
	}
	return 0
}

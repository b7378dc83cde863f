package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"agbprep/internal/services"
)

func main() {
	err := newRootCommand().Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "agbprep:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error category onto a process status so wrappers can tell
// bad input from a broken disk or an unreachable catalog.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return 2
	case errors.Is(err, services.ErrFilesystem):
		return 3
	case errors.Is(err, services.ErrExternalService), errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrTransient):
		return 4
	default:
		return 1
	}
}

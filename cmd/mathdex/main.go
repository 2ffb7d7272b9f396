// Package main provides the entry point for the mathdex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/paperlens/mathdex/cmd/mathdex/cmd"
	mderrors "github.com/paperlens/mathdex/internal/errors"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	fmt.Fprint(os.Stderr, mderrors.Render(err))
	if mderrors.CodeOf(err).Severity() == mderrors.SeverityFatal {
		os.Exit(2)
	}
	os.Exit(1)
}

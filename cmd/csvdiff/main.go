// Command csvdiff compares two versions of a CSV file by a key column.
//
// Exit status is 0 when the comparison ran, 1 when --exit-code is set and
// the files differ, and 2 on error.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDifferences):
		return 1
	default:
		fmt.Fprintln(root.ErrOrStderr(), "csvdiff:", describe(err))
		return 2
	}
}

// describe prefers the mapped user message, falling back to the technical
// error when nothing more specific is known.
func describe(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/moviedata/internal/core"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			printError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// printError shows coded user messages with their cause. Errors no rule
// recognizes are printed as they are.
func printError(w io.Writer, err error) {
	var ue *core.UserError
	if errors.As(err, &ue) {
		if core.IsUserFacing(ue.Technical) {
			fmt.Fprintf(w, "Error: %s\n  cause: %v\n", core.FormatUserError(ue.Technical), ue.Technical)
			return
		}
		err = ue.Technical
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"gitpack/internal/errors"
)

// printError reports err with the fixes it suggests.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)

	var pe *errors.PackError
	if !stderrors.As(err, &pe) || len(pe.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSuggested fixes:")
	for _, fix := range pe.SuggestedFixes {
		switch {
		case fix.Command != "":
			fmt.Fprintf(w, "  $ %s", fix.Command)
			if fix.Description != "" {
				fmt.Fprintf(w, "  # %s", fix.Description)
			}
			fmt.Fprintln(w)
		case fix.URL != "":
			fmt.Fprintf(w, "  %s: %s\n", fix.Description, fix.URL)
		default:
			fmt.Fprintf(w, "  - %s\n", fix.Description)
		}
	}
}

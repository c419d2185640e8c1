package main

import (
	"fmt"
	"io"

	"github.com/naveenspark/mulic2/pkg/domain"
)

// ANSI color constants for one-shot command output (no lipgloss, runs outside the TUI).
const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[38;2;248;113;113m" // #f87171
	ansiEmber = "\033[38;2;180;85;85m"   // #b45555
	ansiGreen = "\033[38;2;52;212;116m"  // #34d474
	ansiSlate = "\033[38;2;136;144;160m" // #8890a0
)

// printLogo prints the spaced MULIC2 wordmark in alternating reds.
func printLogo(w io.Writer) {
	letters := "MULIC2"
	colors := [2]string{ansiRed, ansiEmber}
	fmt.Fprint(w, "\n  ")
	for i, ch := range letters {
		fmt.Fprintf(w, "%s%s%c%s", colors[i%2], ansiBold, ch, ansiReset)
		if i < len(letters)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// printHealthResult prints the outcome of `mulic2 health`.
func printHealthResult(w io.Writer, ok bool, apiURL string, ports domain.PortConfig) {
	printLogo(w)
	if ok {
		fmt.Fprintf(w, "\n  %s%s●%s backend online  %s%s%s\n", ansiGreen, ansiBold, ansiReset, ansiSlate, apiURL, ansiReset)
	} else {
		fmt.Fprintf(w, "\n  %s%s●%s backend offline  %s%s%s\n", ansiEmber, ansiBold, ansiReset, ansiSlate, apiURL, ansiReset)
	}
	fmt.Fprintf(w, "  %sapi %d · c2 %d · frontend %d%s\n\n", ansiSlate, ports.BackendAPI, ports.C2Default, ports.Frontend, ansiReset)
}

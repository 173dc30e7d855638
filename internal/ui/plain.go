package ui

import (
	"fmt"
	"io"

	"bkup-go/internal/bk"
)

// PrintPlain consumes exec's events, writing one line per attempted file
// and the summary to w. It is used when output is not a terminal.
func PrintPlain(exec *bk.Execution, w io.Writer) (bk.Summary, error) {
	fmt.Fprintf(w, "Backing up to %s\n", exec.Job().Destination)
	for ev := range exec.Events() {
		fmt.Fprintf(w, "[%3d%%] %s\n", ev.Percent(), ev.Entry.String())
	}
	summary := exec.Summary()
	fmt.Fprint(w, FormatSummary(summary))
	return summary, exec.Err()
}

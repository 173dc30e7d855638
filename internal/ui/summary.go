package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"bkup-go/internal/bk"
)

// FormatSummary renders the totals of a run as a short multi-line report.
func FormatSummary(s bk.Summary) string {
	var b strings.Builder
	if s.Aborted {
		b.WriteString("Backup aborted.\n")
	} else {
		b.WriteString("Backup complete.\n")
	}
	fmt.Fprintf(&b, "  Files copied:    %d (%s)\n", s.FilesCopied, humanize.Bytes(uint64(max(s.BytesCopied, 0))))
	fmt.Fprintf(&b, "  Folders created: %d\n", s.FoldersCreated)
	fmt.Fprintf(&b, "  Files skipped:   %d", s.FilesSkipped)
	if s.FilesFailed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.FilesFailed)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Destination:     %s\n", s.Destination)
	return b.String()
}

// FormatBytes renders n in human units, e.g. "12 GB".
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}

package presenter

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

var (
	headerColor   = color.New(color.FgRed, color.Bold)
	kindColor     = color.New(color.FgYellow)
	ownerColor    = color.New(color.FgCyan, color.Bold)
	evidenceColor = color.New(color.Faint)
)

// WriteReport prints a human-readable summary of records to w.
func WriteReport(w io.Writer, records []domain.ConflictRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No conflicts identified.")
		return
	}
	headerColor.Fprintf(w, "Detected %d potential conflict(s)\n", len(records))
	for i, r := range records {
		fmt.Fprintf(w, "\n%d. ", i+1)
		kindColor.Fprintf(w, "[%s] ", r.Kind)
		ownerColor.Fprint(w, r.OwnerA)
		fmt.Fprint(w, " <-> ")
		ownerColor.Fprintln(w, r.OwnerB)
		fmt.Fprintf(w, "   %s\n", r.Description)
		if r.ArtifactA != "" || r.ArtifactB != "" {
			fmt.Fprintf(w, "   artifacts: %s, %s\n", orDash(r.ArtifactA), orDash(r.ArtifactB))
		}
		if r.RawEvidence != "" {
			evidenceColor.Fprintf(w, "   evidence: %s\n", r.RawEvidence)
		}
	}
}

// WriteOptions prints the numbered option list.
func WriteOptions(w io.Writer, options []domain.ResolutionOption) {
	for i, o := range options {
		fmt.Fprintf(w, "  [%d] %s\n", i, o.Label)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethpandaops/hilbench/internal/harness"
)

const (
	bannerTitle = "================= SUMMARY ================="
	bannerEnd   = "==========================================="
)

// Line renders the one-line summary of an outcome.
func Line(o harness.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s - %s: %s", o.Status(), o.Scenario, o.Details)

	if o.PickupMS != nil {
		fmt.Fprintf(&b, " | pickup=%.1f ms", *o.PickupMS)
	}
	if o.TripMS != nil {
		fmt.Fprintf(&b, " | trip=%.1f ms", *o.TripMS)
	}
	if o.ReactionMS != nil {
		fmt.Fprintf(&b, " | reaction=%.1f ms", *o.ReactionMS)
	}

	return b.String()
}

// WriteLines writes the SUMMARY banner with one line per outcome and the
// trace path beneath each outcome that saved one.
func WriteLines(w io.Writer, outcomes []harness.Outcome) error {
	var b strings.Builder

	b.WriteString("\n" + bannerTitle + "\n")

	for _, o := range outcomes {
		b.WriteString(Line(o) + "\n")
		if o.TracePath != "" {
			b.WriteString("  data: " + o.TracePath + "\n")
		}
	}

	b.WriteString(bannerEnd + "\n")

	_, err := io.WriteString(w, b.String())

	return err
}

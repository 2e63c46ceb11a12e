package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
)

// printEntry writes e as a header line followed by its indented body and
// attachment tokens.
func printEntry(w io.Writer, e models.Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d  %s  %s", e.ID, e.CommittedAt.UTC().Format(time.RFC3339), e.Author)
	if e.Kind != "" && e.Kind != "plain" {
		fmt.Fprintf(&b, "  [%s]", e.Kind)
	}
	b.WriteByte('\n')
	if e.Body != "" {
		for _, line := range strings.Split(e.Body, "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	for _, t := range e.Attachments {
		fmt.Fprintf(&b, "    + %s\n", t)
	}
	_, _ = io.WriteString(w, b.String())
}

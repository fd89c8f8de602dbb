package pipeline

import (
	"fmt"
	"strings"

	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/notify"
)

// maxReportErrors bounds the diagnostics listed in a report.
const maxReportErrors = 15

// Report renders the summary as a short Markdown message.
func (s RunSummary) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Loterias %s run*\n", s.Mode)
	fmt.Fprintf(&b, "_%s_\n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if s.RunID != "" {
		fmt.Fprintf(&b, "run `%s`\n", s.RunID)
	}
	b.WriteString("\n")

	for _, g := range models.AllGames {
		if n, ok := s.CountsByGame[g]; ok {
			fmt.Fprintf(&b, "%s: %d\n", g, n)
		}
	}

	if len(s.Written) > 0 {
		fmt.Fprintf(&b, "\nWritten: %s\n", notify.EscapeMarkdown(strings.Join(s.Written, ", ")))
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "Kept previous: %s\n", notify.EscapeMarkdown(strings.Join(s.Skipped, ", ")))
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\n*Errors (%d)*\n", len(s.Errors))
		for i, e := range s.Errors {
			if i == maxReportErrors {
				fmt.Fprintf(&b, "... and %d more\n", len(s.Errors)-maxReportErrors)
				break
			}
			fmt.Fprintf(&b, "- %s\n", notify.EscapeMarkdown(e))
		}
	}
	return b.String()
}

package worker

import (
	"fmt"
	"strings"

	"newsdesk/internal/pipeline"
)

// FormatReport renders a pipeline report as the chat message moderators see.
func FormatReport(report pipeline.Report) string {
	var b strings.Builder

	switch report.Outcome {
	case pipeline.OutcomeCompleted:
		b.WriteString("✅ Published.")
	case pipeline.OutcomeAlreadyCompleted:
		b.WriteString("✅ Already published, nothing to do.")
	case pipeline.OutcomeAlreadyInProgress:
		b.WriteString("⏳ Publishing is already in progress.")
	case pipeline.OutcomeFailed:
		b.WriteString("❌ Publishing failed")
		if report.Error != "" {
			b.WriteString(": " + report.Error)
		} else {
			b.WriteString(".")
		}
	default:
		b.WriteString("Publishing finished with outcome: " + string(report.Outcome))
	}

	if len(report.Posts) > 0 {
		b.WriteString("\n")
		for _, post := range report.Posts {
			b.WriteString("\n")
			switch {
			case post.Posted && post.URL != "":
				fmt.Fprintf(&b, "• %s/%s: %s", post.Platform, post.Language, post.URL)
			case post.Posted:
				fmt.Fprintf(&b, "• %s/%s: posted", post.Platform, post.Language)
			case post.Skipped:
				fmt.Fprintf(&b, "• %s/%s: skipped (attempt already in flight)", post.Platform, post.Language)
			default:
				fmt.Fprintf(&b, "• %s/%s: failed — %s", post.Platform, post.Language, post.Error)
			}
		}
	}

	if len(report.Notes) > 0 {
		b.WriteString("\n")
		for _, note := range report.Notes {
			b.WriteString("\nℹ️ " + note)
		}
	}

	return b.String()
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fabgo/fab/internal/engine"
)

// renderReport renders the run summary card. Failed items are always listed
// with their error; verbose mode lists every item with its duration.
func renderReport(report *engine.Report, verbose bool) string {
	var sb strings.Builder

	succeeded, failed, skipped := report.Counts()
	total := len(report.Outcomes)

	switch {
	case failed > 0:
		sb.WriteString(renderHeaderStyle.Render(fmt.Sprintf("✗ %d of %d work items failed", failed, total)))
	case skipped > 0:
		sb.WriteString(WarningStyle.Bold(true).Render(fmt.Sprintf("! %d of %d work items skipped", skipped, total)))
	default:
		sb.WriteString(SuccessStyle.Bold(true).Render(fmt.Sprintf("✓ %d work items succeeded", succeeded)))
	}
	sb.WriteString("\n")

	for _, o := range report.Outcomes {
		if o.Status == engine.StatusSucceeded && !verbose {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(statusIcon(o.Status))
		sb.WriteString(" ")
		sb.WriteString(CmdStyle.Render(outcomeName(o)))
		if verbose && o.Status != engine.StatusSkipped {
			sb.WriteString(renderValueStyle.Render(fmt.Sprintf(" (%s)", o.Duration().Round(time.Millisecond))))
		}
		if o.Err != nil {
			sb.WriteString("\n    ")
			sb.WriteString(renderValueStyle.Render(o.Err.Error()))
		}
	}
	sb.WriteString("\n")

	if verbose {
		sb.WriteString("\n")
		sb.WriteString(renderLabelStyle.Render("Execution:"))
		sb.WriteString(renderValueStyle.Render(" " + report.ExecutionID))
		sb.WriteString("\n")
	}
	if failed > 0 && !verbose {
		sb.WriteString(renderHintStyle.Render("Run with --verbose for timings and troubleshooting guidance."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func outcomeName(o engine.Outcome) string {
	if o.Hook {
		return "hook " + o.Name()
	}
	return o.Name()
}

func statusIcon(s engine.Status) string {
	switch s {
	case engine.StatusSucceeded:
		return SuccessStyle.Render("✓")
	case engine.StatusFailed:
		return ErrorStyle.Render("✗")
	default:
		return WarningStyle.Render("-")
	}
}

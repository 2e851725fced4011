package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// WriteText writes a run summary as human-readable styled text to the
// writer. Output uses lipgloss for color and formatting when the
// output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, summary *taxonomy.RunSummary) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== verify run %s ===", summary.RunID)))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    subject: %s", summary.FioPath)))
	fmt.Fprintln(w)

	if len(summary.Results) > 0 {
		writeResultTable(w, summary.Results, s)
		fmt.Fprintln(w)
	}

	// Tally line mirrors the process exit contract: failed > 0 means
	// a nonzero exit.
	tallyStyle := s.Pass
	if summary.Tally.Failed > 0 {
		tallyStyle = s.Fail
	}
	fmt.Fprintln(w, tallyStyle.Render(fmt.Sprintf(
		"%d test(s) passed, %d failed, %d skipped",
		summary.Tally.Passed, summary.Tally.Failed, summary.Tally.Skipped)))

	return nil
}

func writeResultTable(w io.Writer, results []taxonomy.CaseResult, s Styles) {
	const maxDetail = 40
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		coord := r.Direction
		if r.Matrix == "fault" {
			coord = "mangle=" + r.Mangle
		}
		detail := string(r.Kind)
		if r.Detail != "" {
			if detail != "" {
				detail += ": "
			}
			detail += r.Detail
		}
		if len(detail) > maxDetail {
			detail = detail[:maxDetail-3] + "..."
		}
		rows = append(rows, []string{
			fmt.Sprintf("%04d", r.CaseID),
			r.Matrix,
			coord,
			r.Checksum,
			strings.ToUpper(string(r.Status)),
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 4 && row >= 0 && row < len(rows) {
				return s.StatusStyle(strings.ToLower(rows[row][4]))
			}
			return s.TableCell
		}).
		Headers("ID", "MATRIX", "WORKLOAD", "CHECKSUM", "STATUS", "DETAIL").
		Rows(rows...)

	fmt.Fprintln(w, t)
}

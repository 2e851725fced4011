// Package report provides output formatters for harness run summaries
// in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	Version string              `json:"version"`
	Run     taxonomy.RunSummary `json:"run"`
}

// WriteJSON writes a run summary as formatted JSON to the writer.
func WriteJSON(w io.Writer, summary *taxonomy.RunSummary, version string) error {
	if summary.Results == nil {
		summary.Results = []taxonomy.CaseResult{}
	}
	report := JSONReport{
		Version: version,
		Run:     *summary,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

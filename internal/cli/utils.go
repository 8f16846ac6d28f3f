// Package cli provides output formatting for the niteru command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/keyword"
	"github.com/hyperjump/niteru/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat parses "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (schema %s, showing %d)\n",
		response.Total, response.QueryTime, response.Schema, len(response.Results))
	ex := response.Excluded
	if ex.Incompatible+ex.Invalid+ex.Filtered > 0 {
		fmt.Fprintf(w, "Excluded: %d incompatible, %d invalid, %d filtered\n", ex.Incompatible, ex.Invalid, ex.Filtered)
	}
	if response.EmbeddingFallback {
		fmt.Fprintln(w, "Warning: embedding unavailable, query used the zero fallback")
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Key: %s\n", result.Rank, result.Similarity, result.Key)
	if result.SourceRef != "" {
		fmt.Fprintf(w, "Source: %s\n", Truncate(result.SourceRef, 120))
	}
	if len(result.PerBlock) > 0 {
		names := make([]string, 0, len(result.PerBlock))
		for name := range result.PerBlock {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%.3f", name, result.PerBlock[name])
		}
		fmt.Fprintf(w, "Blocks: %s\n", strings.Join(parts, " "))
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteIndexStats writes a batch summary.
func WriteIndexStats(w io.Writer, stats *models.IndexStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Indexed %d, skipped %d, failed %d in %dms (run %s)\n",
		stats.Success, stats.Skipped, stats.Failed, stats.DurationMs, stats.RunID)
	if stats.Cancelled {
		fmt.Fprintln(w, "Run was cancelled before all images were processed")
	}
	for _, f := range stats.Failures {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Source, f.Error)
	}
	return nil
}

// WriteValidationReport writes the result of a validation pass.
func WriteValidationReport(w io.Writer, report *models.ValidationReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Valid: %d\nInvalid: %d\n", report.ValidCount, report.InvalidCount)
	ids := make([]string, 0, len(report.PerSchema))
	for id := range report.PerSchema {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d\n", id, report.PerSchema[id])
	}
	for _, k := range report.InvalidKeys {
		fmt.Fprintf(w, "  invalid: %s\n", k)
	}
	return nil
}

// WriteStatus writes store and configuration status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Images:        %d\n", st.Images)
	fmt.Fprintf(w, "Schema:        %s\n", st.Schema)
	fmt.Fprintf(w, "Backend:       %s\n", st.Backend)
	fmt.Fprintf(w, "Keyword docs:  %d\n", st.KeywordDocs)
	fmt.Fprintf(w, "Disk usage:    %s\n", FormatBytes(st.DiskUsageBytes))
	fmt.Fprintf(w, "Embedding:     %s\n", onOff(st.EmbeddingEnabled))
	fmt.Fprintf(w, "Ranking:       %s\n", onOff(st.RankingEnabled))
	if st.DatabasePath != "" {
		fmt.Fprintf(w, "Database:      %s\n", st.DatabasePath)
	}
	for _, d := range st.WatchDirectories {
		fmt.Fprintf(w, "Watching:      %s\n", d)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// WriteSchemas lists the registered schemas, marking the active one.
func WriteSchemas(w io.Writer, schemas []*descriptor.Schema, active string, format OutputFormat) error {
	if format == OutputJSON {
		type entry struct {
			*descriptor.Schema
			Active bool `json:"active"`
		}
		out := make([]entry, len(schemas))
		for i, s := range schemas {
			out[i] = entry{Schema: s, Active: s.ID == active}
		}
		return writeJSON(w, out)
	}
	for _, s := range schemas {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		parts := make([]string, len(s.Blocks))
		for i, b := range s.Blocks {
			parts[i] = fmt.Sprintf("%s:%d", b.Name, b.Length)
		}
		fmt.Fprintf(w, "%s %s  %4d  %-4s  %s\n", marker, s.ID, s.TotalLength, s.Resize, strings.Join(parts, " "))
	}
	return nil
}

// WriteKeywordResults writes key and source matches from the keyword index.
func WriteKeywordResults(w io.Writer, results []*keyword.KeywordResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*keyword.KeywordResult{}
		}
		return writeJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(w, "%.4f  %s", r.Score, r.Key)
		if r.Source != "" {
			fmt.Fprintf(w, "  (%s)", Truncate(r.Source, 120))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

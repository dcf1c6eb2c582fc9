// Package output renders scan reports for terminal consumption.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
)

// ANSI color codes for utilization output (used when Colored=true).
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[0;31m"
	ansiYellow = "\033[0;33m"
)

// TableOptions controls how RenderTable renders the flagged-table listing.
type TableOptions struct {
	// Colored wraps utilization cells with ANSI codes. Default false (CI-safe).
	Colored bool
}

// FormatRatio renders a utilization ratio as a percentage, or "n/a" when the
// table produced no valid samples for that direction.
func FormatRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

// ratioCell returns the ratio padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
// Ratios at or below half the threshold are red (nearly idle), the rest yellow.
func ratioCell(v *float64, width int, colored bool, threshold float64) string {
	text := FormatRatio(v)
	if !colored || v == nil {
		return fmt.Sprintf("%-*s", width, text)
	}
	code := ansiYellow
	if *v <= threshold/2 {
		code = ansiRed
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max bytes for name columns.
// A single-char ellipsis replaces the last byte when truncation occurs.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// flaggedRow is one rendered line: a flagged table with its region attached.
type flaggedRow struct {
	region string
	table  models.TableUtilization
}

// flaggedRows flattens the per-region flag map into rows sorted by region,
// then table name, so output is stable regardless of collection order.
func flaggedRows(result *models.ScanResult) []flaggedRow {
	var rows []flaggedRow
	for region, tables := range result.LowUtilization {
		for _, tu := range tables {
			rows = append(rows, flaggedRow{region: region, table: tu})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].region != rows[j].region {
			return rows[i].region < rows[j].region
		}
		return rows[i].table.TableName < rows[j].table.TableName
	})
	return rows
}

// RenderTable writes the flagged-table listing to w.
//
// Column order:
//
//	TABLE  REGION  AVG READ  AVG WRITE
func RenderTable(w io.Writer, report *models.ScanReport, opts TableOptions) {
	rows := flaggedRows(report.Result)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No low-utilization tables.")
		return
	}

	// Fixed column display widths.
	const (
		wTable  = 40
		wRegion = 15
		wRatio  = 10
	)

	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wTable, "TABLE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wRegion, "REGION"))
	hb.WriteString(fmt.Sprintf("  %-*s", wRatio, "AVG READ"))
	hb.WriteString(fmt.Sprintf("  %-*s", wRatio, "AVG WRITE"))
	header := hb.String()

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, row := range rows {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wTable, truncateField(row.table.TableName, wTable)))
		rb.WriteString(fmt.Sprintf("  %-*s", wRegion, truncateField(row.region, wRegion)))
		rb.WriteString("  " + ratioCell(row.table.AvgReadUtilization, wRatio, opts.Colored, report.Threshold))
		rb.WriteString("  " + ratioCell(row.table.AvgWriteUtilization, wRatio, opts.Colored, report.Threshold))
		fmt.Fprintln(w, rb.String())
	}
}

// RenderSummary writes the headline counts of a completed scan to w.
func RenderSummary(w io.Writer, report *models.ScanReport) {
	fmt.Fprintf(w, "Profile:                %s\n", report.Profile)
	if report.AccountID != "" {
		fmt.Fprintf(w, "Account:                %s\n", report.AccountID)
	}
	fmt.Fprintf(w, "Window:                 %s to %s\n",
		report.PeriodStart.Format("2006-01-02"), report.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(w, "Threshold:              %.0f%%\n", report.Threshold*100)
	fmt.Fprintf(w, "Regions scanned:        %d\n", report.Summary.TotalRegions)
	fmt.Fprintf(w, "Tables with metrics:    %d\n", report.Summary.TablesWithMetrics)
	fmt.Fprintf(w, "Low-utilization tables: %d\n", report.Summary.LowUtilizationTables)
}

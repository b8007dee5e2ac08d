package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sdejongh/fylr/pkg/dedupe"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/usage"
)

// HumanFormatter formats output as tables for a person at a terminal
type HumanFormatter struct {
	writer io.Writer
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &HumanFormatter{writer: w}
}

// Plan renders every group as a block of files with their destinations
func (f *HumanFormatter) Plan(p *plan.Plan, groups []plan.Group) error {
	if p.Len() == 0 && len(groups) == 0 {
		fmt.Fprintf(f.writer, "Nothing to organize in %s\n", p.Root)
		f.warnings(p.Warnings)
		return nil
	}

	fmt.Fprintf(f.writer, "Plan for %s: %d files in %d directories\n\n", p.Root, p.Len(), len(groups))

	rows := make([][]string, 0, p.Len())
	for _, g := range groups {
		dir := g.Dir
		if dir == plan.RootDir {
			dir = "(root)"
		}
		if len(g.Items) == 0 {
			rows = append(rows, []string{dir, "(empty)", ""})
			continue
		}
		for i, item := range g.Items {
			label := dir
			if i > 0 {
				label = ""
			}
			rows = append(rows, []string{label, filepath.Base(item.SrcPath), item.DstPath})
		}
	}
	fmt.Fprintln(f.writer, renderTable([]string{"Directory", "File", "Destination"}, rows, nil))

	f.warnings(p.Warnings)
	return nil
}

func (f *HumanFormatter) warnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(f.writer, "\nWarnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(f.writer, "  %s\n", w)
	}
}

// Names renders the mapping sorted by original name
func (f *HumanFormatter) Names(names map[string]string) error {
	if len(names) == 0 {
		fmt.Fprintln(f.writer, "No names generated")
		return nil
	}

	originals := make([]string, 0, len(names))
	for name := range names {
		originals = append(originals, name)
	}
	sort.Strings(originals)

	rows := make([][]string, 0, len(originals))
	for _, name := range originals {
		rows = append(rows, []string{name, names[name]})
	}
	fmt.Fprintln(f.writer, renderTable([]string{"Original", "Generated"}, rows, nil))
	return nil
}

// RenameReport renders the processed items and a summary
func (f *HumanFormatter) RenameReport(report *models.RenameReport) error {
	if len(report.Succeeded) > 0 {
		rows := make([][]string, 0, len(report.Succeeded))
		for _, r := range report.Succeeded {
			to := r.New
			if r.UniqueSubstituted {
				to += " *"
			}
			rows = append(rows, []string{string(r.Action), r.Original, to})
		}
		fmt.Fprintln(f.writer, renderTable([]string{"Action", "From", "To"}, rows, nil))
		if hasUnique(report.Succeeded) {
			fmt.Fprintln(f.writer, "* name changed to avoid a collision")
		}
	}

	if len(report.Failed) > 0 {
		fmt.Fprintf(f.writer, "\nFailures:\n")
		for _, failure := range report.Failed {
			fmt.Fprintf(f.writer, "  %s: %s\n", failure.Path, failure.ErrorMessage)
		}
	}

	fmt.Fprintf(f.writer, "\n")
	if report.DryRun {
		fmt.Fprintf(f.writer, "Dry run: nothing was changed\n")
	}
	fmt.Fprintf(f.writer, "Done in %s: %d succeeded, %d skipped, %d failed\n",
		report.Duration.Round(time.Millisecond), len(report.Succeeded), len(report.Skipped), len(report.Failed))
	fmt.Fprintf(f.writer, "Status: %s\n", report.Status)
	return nil
}

func hasUnique(results []models.RenameResult) bool {
	for _, r := range results {
		if r.UniqueSubstituted {
			return true
		}
	}
	return false
}

// Usage renders a counter table
func (f *HumanFormatter) Usage(mode models.Mode, limits usage.Limits) error {
	rows := [][]string{
		{"Tokens", strconv.FormatInt(limits.TokenUsage, 10), strconv.FormatInt(limits.TokenLimit, 10)},
		{"Calls", strconv.FormatInt(limits.CallUsage, 10), strconv.FormatInt(limits.CallLimit, 10)},
	}
	fmt.Fprintln(f.writer, renderTable([]string{"Usage", "Used", "Limit"}, rows, []text.Align{text.AlignLeft, text.AlignRight, text.AlignRight}))

	state := "yes"
	if !limits.CanProceed {
		state = "no (limit reached)"
	}
	fmt.Fprintf(f.writer, "Mode: %s\nOnline requests allowed: %s\n", mode, state)
	return nil
}

// Duplicates renders each group with the file that would be kept
func (f *HumanFormatter) Duplicates(groups []dedupe.Group) error {
	if len(groups) == 0 {
		fmt.Fprintln(f.writer, "No duplicates found")
		return nil
	}

	var wasted int64
	var rows [][]string
	for i, g := range groups {
		wasted += g.Wasted()
		for j, file := range g.Files {
			group, size, hash, status := "", "", "", "duplicate"
			if j == 0 {
				group = strconv.Itoa(i + 1)
				size = formatBytes(g.Size)
				hash = shortHash(g.Hash)
				status = "keep"
			}
			rows = append(rows, []string{group, hash, size, file, status})
		}
	}
	fmt.Fprintln(f.writer, renderTable(
		[]string{"#", "Hash", "Size", "File", ""},
		rows,
		[]text.Align{text.AlignRight, text.AlignLeft, text.AlignRight, text.AlignLeft, text.AlignLeft},
	))
	fmt.Fprintf(f.writer, "%d groups, %s reclaimable\n", len(groups), formatBytes(wasted))
	return nil
}

// Event prints a one-line notice
func (f *HumanFormatter) Event(ev orchestrator.Event) error {
	switch ev.Type {
	case orchestrator.EventWarning:
		fmt.Fprintf(f.writer, "Warning: %s\n", ev.Message)
	default:
		fmt.Fprintf(f.writer, "Notice: %s\n", ev.Message)
	}
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return FormatHuman
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

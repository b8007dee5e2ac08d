package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/sdejongh/fylr/pkg/dedupe"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/usage"
)

// JSONFormatter formats output as JSON for automation and scripting.
// Each call writes one indented document.
type JSONFormatter struct {
	writer io.Writer
}

// JSONPlanData is the plan document, in the classifier's plan layout
type JSONPlanData struct {
	Root     string       `json:"root"`
	Files    []plan.Item  `json:"files"`
	Groups   []plan.Group `json:"groups"`
	Warnings []string     `json:"warnings,omitempty"`
}

// JSONNamesData mirrors the classifier's name-generation document
type JSONNamesData struct {
	Success        bool              `json:"success"`
	GeneratedNames map[string]string `json:"generated_names"`
}

// JSONReportData represents the final report data
type JSONReportData struct {
	OperationID string                 `json:"operation_id"`
	Root        string                 `json:"root"`
	DryRun      bool                   `json:"dry_run"`
	Status      string                 `json:"status"`
	Duration    string                 `json:"duration"`
	DurationMs  int64                  `json:"duration_ms"`
	Succeeded   []models.RenameResult  `json:"succeeded"`
	Skipped     []string               `json:"skipped,omitempty"`
	Failed      []models.RenameFailure `json:"failed,omitempty"`
}

// JSONUsageData represents usage counters
type JSONUsageData struct {
	Mode models.Mode `json:"mode"`
	usage.Limits
}

// JSONDuplicatesData represents a duplicate scan
type JSONDuplicatesData struct {
	Groups      []dedupe.Group `json:"groups"`
	WastedBytes int64          `json:"wasted_bytes"`
}

// JSONEventData represents a notice
type JSONEventData struct {
	Event   string      `json:"event"`
	Mode    models.Mode `json:"mode"`
	Message string      `json:"message"`
}

// JSONErrorData represents an error
type JSONErrorData struct {
	Error string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONFormatter{writer: w}
}

func (f *JSONFormatter) write(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Plan writes the plan items and their grouping
func (f *JSONFormatter) Plan(p *plan.Plan, groups []plan.Group) error {
	data := JSONPlanData{
		Root:     p.Root,
		Files:    p.Items,
		Groups:   groups,
		Warnings: p.Warnings,
	}
	if data.Files == nil {
		data.Files = []plan.Item{}
	}
	if data.Groups == nil {
		data.Groups = []plan.Group{}
	}
	return f.write(data)
}

// Names writes the generated-name mapping
func (f *JSONFormatter) Names(names map[string]string) error {
	if names == nil {
		names = map[string]string{}
	}
	return f.write(JSONNamesData{Success: true, GeneratedNames: names})
}

// RenameReport writes the batch report
func (f *JSONFormatter) RenameReport(report *models.RenameReport) error {
	data := JSONReportData{
		OperationID: report.OperationID,
		Root:        report.Root,
		DryRun:      report.DryRun,
		Status:      string(report.Status),
		Duration:    report.Duration.String(),
		DurationMs:  report.Duration.Milliseconds(),
		Succeeded:   report.Succeeded,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
	}
	if data.Succeeded == nil {
		data.Succeeded = []models.RenameResult{}
	}
	return f.write(data)
}

// Usage writes the counters with their limits
func (f *JSONFormatter) Usage(mode models.Mode, limits usage.Limits) error {
	return f.write(JSONUsageData{Mode: mode, Limits: limits})
}

// Duplicates writes the duplicate groups
func (f *JSONFormatter) Duplicates(groups []dedupe.Group) error {
	data := JSONDuplicatesData{Groups: groups}
	if data.Groups == nil {
		data.Groups = []dedupe.Group{}
	}
	for _, g := range groups {
		data.WastedBytes += g.Wasted()
	}
	return f.write(data)
}

// Event writes a notice
func (f *JSONFormatter) Event(ev orchestrator.Event) error {
	return f.write(JSONEventData{Event: string(ev.Type), Mode: ev.Mode, Message: ev.Message})
}

// Error writes an error document
func (f *JSONFormatter) Error(err error) error {
	return f.write(JSONErrorData{Error: err.Error()})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return FormatJSON
}

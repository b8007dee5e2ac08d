// Package output renders plans, reports and usage for the command line.
package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/fylr/pkg/dedupe"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/usage"
)

// Format names
const (
	FormatHuman = "human"
	FormatJSON  = "json"
)

// Formatter defines the interface for output formatting
// Implementations include human-readable and JSON formatters
type Formatter interface {
	// Plan renders a plan grouped by destination directory
	Plan(p *plan.Plan, groups []plan.Group) error

	// Names renders a generated-name mapping
	Names(names map[string]string) error

	// RenameReport renders the result of a rename, apply or removal batch
	RenameReport(report *models.RenameReport) error

	// Usage renders usage counters against their limits
	Usage(mode models.Mode, limits usage.Limits) error

	// Duplicates renders groups of identical files
	Duplicates(groups []dedupe.Group) error

	// Event renders an in-progress notice
	Event(ev orchestrator.Event) error

	// Error reports an error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for format writing to w
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", FormatHuman:
		return NewHumanFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected human or json)", format)
	}
}

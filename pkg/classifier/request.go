// Package classifier invokes the external classifier scripts.
//
// A request is written to a temporary JSON file whose path is passed as the
// only script argument; the script answers with line-oriented text on stdout
// (see package extract).
package classifier

import (
	"fmt"
	"strings"

	"github.com/sdejongh/fylr/pkg/models"
)

// Action selects the classifier workflow
type Action string

const (
	// ActionOrganize proposes a directory structure for a folder
	ActionOrganize Action = "organize"
	// ActionGenerate proposes new names for files
	ActionGenerate Action = "generate"
	// ActionRename applies previously generated names
	ActionRename Action = "rename"
)

const (
	MinSpecificity = 1
	MaxSpecificity = 5
)

// Request is the configuration document handed to the classifier
type Request struct {
	Action      Action            `json:"action"`
	Directory   string            `json:"directory,omitempty"`
	OnlineMode  bool              `json:"online_mode"`
	Files       []models.FileRef  `json:"files,omitempty"`
	NewNames    map[string]string `json:"new_names,omitempty"`
	Specificity int               `json:"specificity,omitempty"`
}

// Validate checks the fields each action requires
func (r Request) Validate() error {
	switch r.Action {
	case ActionOrganize:
		if strings.TrimSpace(r.Directory) == "" {
			return &models.ValidationError{Field: "directory", Message: "required for organize"}
		}
		if r.Specificity != 0 && (r.Specificity < MinSpecificity || r.Specificity > MaxSpecificity) {
			return &models.ValidationError{
				Field:   "specificity",
				Message: fmt.Sprintf("must be between %d and %d", MinSpecificity, MaxSpecificity),
			}
		}
	case ActionGenerate, ActionRename:
		if len(r.Files) == 0 {
			return &models.ValidationError{Field: "files", Message: fmt.Sprintf("required for %s", r.Action)}
		}
		for i, f := range r.Files {
			if f.Name == "" || f.Path == "" {
				return &models.ValidationError{
					Field:   fmt.Sprintf("files[%d]", i),
					Message: "name and path are required",
				}
			}
		}
		if r.Action == ActionRename && len(r.NewNames) == 0 {
			return &models.ValidationError{Field: "new_names", Message: "required for rename"}
		}
	case "":
		return &models.ValidationError{Field: "action", Message: "required"}
	default:
		return &models.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", r.Action)}
	}
	return nil
}

package output

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80
	maxBarWidth      = 120

	progressTemplate = `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{string . "file"}}`
)

// Progress shows a bar for a batch of file operations.
// A Progress created for a non-terminal writer does nothing.
type Progress struct {
	bar *pb.ProgressBar
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// terminalWidth returns the width of w, defaultTermWidth when it cannot be detected
func terminalWidth(w io.Writer) int {
	if file, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultTermWidth
}

// NewProgress starts a bar for total items on w when enabled and w is a terminal
func NewProgress(w io.Writer, total int, enabled bool) *Progress {
	if !enabled || total <= 0 || !IsTerminal(w) {
		return &Progress{}
	}

	width := terminalWidth(w)
	if width > maxBarWidth {
		width = maxBarWidth
	}

	bar := pb.New(total)
	bar.SetWriter(w)
	bar.SetTemplateString(progressTemplate)
	bar.SetWidth(width)
	bar.Start()
	return &Progress{bar: bar}
}

// Update moves the bar to done; it matches rename.ProgressFunc
func (p *Progress) Update(done, total int, path string) {
	if p.bar == nil {
		return
	}
	p.bar.SetTotal(int64(total))
	p.bar.SetCurrent(int64(done))
	p.bar.Set("file", filepath.Base(path))
}

// Finish stops the bar
func (p *Progress) Finish() {
	if p.bar == nil {
		return
	}
	p.bar.Set("file", "")
	p.bar.Finish()
}

// Active reports whether a bar is being drawn
func (p *Progress) Active() bool {
	return p.bar != nil
}

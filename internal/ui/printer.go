package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Printer writes UI components to a writer. With JSON set, results are
// written as JSON objects instead of styled boxes.
type Printer struct {
	out   io.Writer
	width int
	JSON  bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the rendering width
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintSuccess prints a success box, or the details as a JSON object
func (p *Printer) PrintSuccess(title string, details []Detail) {
	if p.JSON {
		obj := make(map[string]string, len(details))
		for _, d := range details {
			obj[d.Key] = d.Value
		}
		p.PrintJSON(obj)
		return
	}
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details []Detail) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints a failure box with a troubleshooting hint
func (p *Printer) PrintError(title string, err error, hint string) {
	if p.JSON {
		p.PrintJSON(map[string]string{"error": err.Error(), "hint": hint})
		return
	}
	p.Println(NewFailureResult(title, err, hint).SetWidth(p.width).Render())
}

// PrintJSON writes v as indented JSON
func (p *Printer) PrintJSON(v any) {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

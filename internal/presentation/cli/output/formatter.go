// Package output provides CLI output formatting utilities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// Format represents the output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatTable:
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or table)", s)
}

// Color is an ANSI escape sequence.
type Color string

const (
	ColorReset  Color = "\033[0m"
	ColorRed    Color = "\033[31m"
	ColorGreen  Color = "\033[32m"
	ColorYellow Color = "\033[33m"
	ColorBlue   Color = "\033[34m"
	ColorCyan   Color = "\033[36m"
	ColorBold   Color = "\033[1m"
	ColorDim    Color = "\033[2m"
)

// ColorSupported reports whether the environment allows colored output.
// NO_COLOR and TERM=dumb disable it.
func ColorSupported() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// Formatter writes command output in the selected format. It is safe for
// concurrent use.
type Formatter struct {
	mu     sync.Mutex
	writer io.Writer
	format Format
	color  bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) {
		f.writer = w
	}
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(f *Formatter) {
		f.format = format
	}
}

// WithColor enables or disables colored output.
func WithColor(enabled bool) Option {
	return func(f *Formatter) {
		f.color = enabled
	}
}

// NewFormatter creates a text formatter writing to stdout.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		writer: os.Stdout,
		format: FormatText,
		color:  ColorSupported(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format returns the output format.
func (f *Formatter) Format() Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// Writer returns the underlying writer.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// Println writes a formatted line.
func (f *Formatter) Println(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.writer, format+"\n", args...)
	return err
}

// Colorize wraps text in color when color is enabled.
func (f *Formatter) Colorize(text string, color Color) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.color {
		return text
	}
	return string(color) + text + string(ColorReset)
}

// Bold renders text in bold.
func (f *Formatter) Bold(text string) string {
	return f.Colorize(text, ColorBold)
}

// Dim renders text muted.
func (f *Formatter) Dim(text string) string {
	return f.Colorize(text, ColorDim)
}

// Success prints a success line.
func (f *Formatter) Success(format string, args ...any) error {
	return f.Println("%s", f.Colorize("✓ "+fmt.Sprintf(format, args...), ColorGreen))
}

// Error prints an error line.
func (f *Formatter) Error(format string, args ...any) error {
	return f.Println("%s", f.Colorize("✗ "+fmt.Sprintf(format, args...), ColorRed))
}

// Warning prints a warning line.
func (f *Formatter) Warning(format string, args ...any) error {
	return f.Println("%s", f.Colorize("⚠ "+fmt.Sprintf(format, args...), ColorYellow))
}

// Info prints an informational line.
func (f *Formatter) Info(format string, args ...any) error {
	return f.Println("%s", f.Colorize("ℹ "+fmt.Sprintf(format, args...), ColorBlue))
}

// Header prints an underlined section header.
func (f *Formatter) Header(title string) error {
	if err := f.Println("%s", f.Bold(title)); err != nil {
		return err
	}
	return f.Println("%s", strings.Repeat("─", utf8.RuneCountInString(title)))
}

// Item prints an indented key-value pair.
func (f *Formatter) Item(key, value string) error {
	return f.Println("  %s %s", f.Dim(key+":"), value)
}

// Alignment is the alignment of a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableColumn defines a table column.
type TableColumn struct {
	Header string
	Align  Alignment
}

// TableData is a table to render.
type TableData struct {
	Columns []TableColumn
	Rows    [][]string
}

// Table renders data with columns padded to their widest cell.
func (f *Formatter) Table(data TableData) error {
	if len(data.Columns) == 0 {
		return nil
	}

	widths := make([]int, len(data.Columns))
	for i, col := range data.Columns {
		widths[i] = utf8.RuneCountInString(col.Header)
	}
	for _, row := range data.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(data.Columns))
		for i, col := range data.Columns {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = pad(cell, widths[i], col.Align)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	headers := make([]string, len(data.Columns))
	rules := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		headers[i] = col.Header
		rules[i] = strings.Repeat("-", widths[i])
	}

	if err := f.Println("%s", f.Bold(line(headers))); err != nil {
		return err
	}
	if err := f.Println("%s", strings.Join(rules, "  ")); err != nil {
		return err
	}
	for _, row := range data.Rows {
		if err := f.Println("%s", line(row)); err != nil {
			return err
		}
	}
	return nil
}

func pad(text string, width int, align Alignment) string {
	n := width - utf8.RuneCountInString(text)
	if n <= 0 {
		return text
	}
	if align == AlignRight {
		return strings.Repeat(" ", n) + text
	}
	return text + strings.Repeat(" ", n)
}

// JSON writes data as indented JSON.
func (f *Formatter) JSON(data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Render writes data as JSON in json mode and as the table otherwise.
func (f *Formatter) Render(data any, table TableData) error {
	if f.Format() == FormatJSON {
		return f.JSON(data)
	}
	return f.Table(table)
}

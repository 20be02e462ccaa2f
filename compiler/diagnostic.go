package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// ---------------------------------------------------------------------------
// Diagnostics: source-annotated compile errors
// ---------------------------------------------------------------------------

// ErrorKind classifies a diagnostic by the stage that produced it.
type ErrorKind string

const (
	KindLexer    ErrorKind = "Lexer"
	KindParser   ErrorKind = "Parser"
	KindType     ErrorKind = "Type"
	KindCodeGen  ErrorKind = "CodeGen"
	KindInternal ErrorKind = "Internal"
)

// Diagnostic is a structured (kind, message, span) compile error.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	Span    Span
}

// Errorf creates a diagnostic with a formatted message.
func Errorf(kind ErrorKind, span Span, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %sError: %s", d.Span.Start.Line, d.Span.Start.Column, d.Kind, d.Message)
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []*Diagnostic

// Err combines the list into a single error, or nil when empty.
func (ds Diagnostics) Err() error {
	var err error
	for _, d := range ds {
		err = multierr.Append(err, d)
	}
	return err
}

// Source is one named input file.
type Source struct {
	Path    string
	Content string

	lines []string
}

// NewSource creates a source from a path and its contents.
func NewSource(path, content string) *Source {
	return &Source{Path: path, Content: content}
}

// Line returns the 1-based line n, without its newline.
func (s *Source) Line(n int) string {
	if s.lines == nil {
		s.lines = strings.Split(s.Content, "\n")
	}
	if n < 1 || n > len(s.lines) {
		return ""
	}
	return strings.TrimRight(s.lines[n-1], "\r")
}

// Format renders d with the offending source lines underlined:
//
//	  +-- TypeError at main.basalt:3:23
//	  |
//	3 | let @line x: number = 'a';
//	  |                       ^^^
//	  |
//	  +-- cannot assign string to number
func (s *Source) Format(d *Diagnostic) string {
	start, end := d.Span.Start, d.Span.End
	if end.Line < start.Line {
		end = start
	}
	gutter := len(strconv.Itoa(end.Line))
	pad := strings.Repeat(" ", gutter)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s +-- %sError at %s:%d:%d\n", pad, d.Kind, s.Path, start.Line, start.Column)
	fmt.Fprintf(&sb, "%s |\n", pad)
	for line := start.Line; line <= end.Line; line++ {
		text := s.Line(line)
		fmt.Fprintf(&sb, "%*d | %s\n", gutter, line, text)

		from, to := 1, len(text)+1
		if line == start.Line {
			from = start.Column
		}
		if line == end.Line {
			to = end.Column
		}
		if to <= from {
			to = from + 1
		}
		fmt.Fprintf(&sb, "%s | %s%s\n", pad, strings.Repeat(" ", from-1), strings.Repeat("^", to-from))
	}
	fmt.Fprintf(&sb, "%s |\n", pad)
	fmt.Fprintf(&sb, "%s +-- %s", pad, d.Message)
	return sb.String()
}

// FormatAll renders every diagnostic separated by blank lines.
func (s *Source) FormatAll(ds Diagnostics) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = s.Format(d)
	}
	return strings.Join(parts, "\n\n")
}

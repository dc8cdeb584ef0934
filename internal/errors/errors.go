// Package errors defines the compiler's error taxonomy. Every stage of the
// pipeline reports failures as a *CompilerError carrying a Kind discriminant
// and, where meaningful, a source location, instead of halting the pipeline.
package errors

import (
	"fmt"
	"strings"
)

// Kind identifies which pipeline stage raised an error.
type Kind string

const (
	KindLex        Kind = "LexError"
	KindParse      Kind = "ParseError"
	KindType       Kind = "TypeError"
	KindFeature    Kind = "FeatureError"
	KindPrediction Kind = "PredictionError"
	KindCodegen    Kind = "CodegenError"
	KindAssembly   Kind = "AssemblyError"
	KindValidation Kind = "ValidationError"
)

// SourceLocation pinpoints a position in the original source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.Line == 0 && l.Column == 0 {
		return ""
	}
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// CompilerError is the single error type returned by every pipeline stage.
type CompilerError struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Source   string // offending source line, if known

	// Function-scoped errors (codegen/assembly) name the function they
	// belong to so the driver can omit just that function from the module.
	Function string

	// ParseError detail: what was expected vs. what token was seen.
	Expected string
	Got      string
}

func (e *CompilerError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Function != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Function)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if loc := e.Location.String(); loc != "" {
		sb.WriteString(" (at ")
		sb.WriteString(loc)
		sb.WriteString(")")
	}
	if e.Source != "" {
		sb.WriteString("\n  ")
		sb.WriteString(e.Source)
		if e.Location.Column > 0 {
			sb.WriteString("\n  ")
			sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			sb.WriteString("^")
		}
	}
	return sb.String()
}

// WithSource attaches the offending source line for diagnostic display.
func (e *CompilerError) WithSource(line string) *CompilerError {
	e.Source = line
	return e
}

// WithFunction tags the error with the function it occurred in.
func (e *CompilerError) WithFunction(name string) *CompilerError {
	e.Function = name
	return e
}

func NewLexError(reason string, loc SourceLocation) *CompilerError {
	return &CompilerError{Kind: KindLex, Message: reason, Location: loc}
}

func NewParseError(expected, got string, loc SourceLocation) *CompilerError {
	msg := fmt.Sprintf("expected %s, got %s", expected, got)
	return &CompilerError{Kind: KindParse, Message: msg, Location: loc, Expected: expected, Got: got}
}

func NewTypeError(message string, loc SourceLocation) *CompilerError {
	return &CompilerError{Kind: KindType, Message: message, Location: loc}
}

func NewFeatureError(message string) *CompilerError {
	return &CompilerError{Kind: KindFeature, Message: message}
}

func NewPredictionError(message string) *CompilerError {
	return &CompilerError{Kind: KindPrediction, Message: message}
}

func NewCodegenError(message, function string) *CompilerError {
	return &CompilerError{Kind: KindCodegen, Message: message, Function: function}
}

func NewAssemblyError(function, mnemonic string) *CompilerError {
	return &CompilerError{
		Kind:     KindAssembly,
		Message:  fmt.Sprintf("unknown or invalid mnemonic %q", mnemonic),
		Function: function,
	}
}

func NewValidationError(message string) *CompilerError {
	return &CompilerError{Kind: KindValidation, Message: message}
}

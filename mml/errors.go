package mml

import "fmt"

// All compilation errors are fatal: the compiler is a batch tool and never
// produces partial output. Each error carries the offending command's
// position in the original source for diagnostics; match concrete kinds
// with errors.As.

// SyntaxError reports malformed input the tokenizer could not turn into a
// command.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

// UnbalancedLoopError reports a loop-end with no open frame, a break
// outside a loop, or a loop left open at stream end.
type UnbalancedLoopError struct {
	Pos Position
	Msg string
}

func (e *UnbalancedLoopError) Error() string {
	return fmt.Sprintf("unbalanced loop at %d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

// MacroRecursionError reports a macro whose expansion exceeded the
// configured depth, which includes direct self-reference.
type MacroRecursionError struct {
	Pos  Position
	Name string
}

func (e *MacroRecursionError) Error() string {
	return fmt.Sprintf("macro %q at %d:%d: expansion depth exceeded (recursive definition?)", e.Name, e.Pos.Line, e.Pos.Col)
}

// UndefinedMacroError reports a reference to a name or rhythm id with no
// definition earlier in the stream.
type UndefinedMacroError struct {
	Pos  Position
	Name string
}

func (e *UndefinedMacroError) Error() string {
	return fmt.Sprintf("undefined macro %q at %d:%d", e.Name, e.Pos.Line, e.Pos.Col)
}

// EmptyGroupError reports a harmony or group construct with no notes.
type EmptyGroupError struct {
	Pos Position
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("empty group at %d:%d", e.Pos.Line, e.Pos.Col)
}

// InvalidParameterError reports a parameter value outside its field's
// valid range.
type InvalidParameterError struct {
	Pos   Position
	Field string
	Value int
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %d at %d:%d", e.Field, e.Value, e.Pos.Line, e.Pos.Col)
}

// VoiceReferenceError reports malformed voice-selector arguments.
type VoiceReferenceError struct {
	Pos   Position
	Field string
	Value int
}

func (e *VoiceReferenceError) Error() string {
	return fmt.Sprintf("bad voice selector: %s %d at %d:%d", e.Field, e.Value, e.Pos.Line, e.Pos.Col)
}

// Package mml defines the data model shared by the compiler pipeline: the
// Command stream produced by the tokenizer, the Event sequence produced by
// the interpreter, the compiler configuration, and the error values raised
// when a compilation fails.
package mml

// CommandKind tags a Command variant. The set is closed: every consumer
// switches exhaustively over it so that adding a variant forces every
// component to handle it.
type CommandKind int

const (
	CmdNote CommandKind = iota + 1
	CmdNNote
	CmdRest
	CmdSetLength
	CmdSetOctave
	CmdSetPitchBend
	CmdSetGate
	CmdSetVelocity
	CmdSetTiming
	CmdSetControlChange
	CmdVoiceSelect
	CmdOctaveUp
	CmdOctaveDown
	CmdOctaveUpOnce
	CmdOctaveDownOnce
	CmdVelocityUp
	CmdVelocityDown
	CmdLoopBegin
	CmdLoopBreak
	CmdLoopEnd
	CmdHarmony
	CmdGroupNotes
	CmdTieSlur
	CmdPlayFromHere
	CmdMacroDefine
	CmdMacroRef
	CmdRhythmMacroDefine
	CmdRhythmMacroRef
	CmdComment
)

var commandKindNames = map[CommandKind]string{
	CmdNote:              "note",
	CmdNNote:             "nnote",
	CmdRest:              "rest",
	CmdSetLength:         "set-length",
	CmdSetOctave:         "set-octave",
	CmdSetPitchBend:      "set-pitch-bend",
	CmdSetGate:           "set-gate",
	CmdSetVelocity:       "set-velocity",
	CmdSetTiming:         "set-timing",
	CmdSetControlChange:  "set-control-change",
	CmdVoiceSelect:       "voice-select",
	CmdOctaveUp:          "octave-up",
	CmdOctaveDown:        "octave-down",
	CmdOctaveUpOnce:      "octave-up-once",
	CmdOctaveDownOnce:    "octave-down-once",
	CmdVelocityUp:        "velocity-up",
	CmdVelocityDown:      "velocity-down",
	CmdLoopBegin:         "loop-begin",
	CmdLoopBreak:         "loop-break",
	CmdLoopEnd:           "loop-end",
	CmdHarmony:           "harmony",
	CmdGroupNotes:        "group-notes",
	CmdTieSlur:           "tie-slur",
	CmdPlayFromHere:      "play-from-here",
	CmdMacroDefine:       "macro-define",
	CmdMacroRef:          "macro-ref",
	CmdRhythmMacroDefine: "rhythm-macro-define",
	CmdRhythmMacroRef:    "rhythm-macro-ref",
	CmdComment:           "comment",
}

func (k CommandKind) String() string {
	if name, ok := commandKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// CommentKind distinguishes the three comment productions.
type CommentKind int

const (
	CommentRange CommentKind = iota + 1
	CommentLine
	CommentDebug
)

// Position locates a command in the original source text. Index is the byte
// offset; Line and Col are 1-based.
type Position struct {
	Index int
	Line  int
	Col   int
}

// Param is one trailing ",number" slot. An unset slot (",,30" style) leaves
// the corresponding voice-state field inherited.
type Param struct {
	Set   bool
	Value int
}

// Command is one production of the MML grammar. Commands are immutable once
// produced by the tokenizer; the interpreter never writes to them.
//
// Field usage by kind:
//
//	CmdNote                Note letter, Accidental, Value/HasValue+Dots (length), Params (velocity, gate, timing)
//	CmdNNote               Value (MIDI note number), Params (length, velocity, gate, timing)
//	CmdRest                Value/HasValue+Dots (length)
//	CmdSetLength..CmdSetTiming  Value (+ Params where the grammar allows, e.g. v100,20)
//	CmdSetControlChange    Value (controller), Params (value[, low, high, len])
//	CmdVoiceSelect         Value (voice id), Params (program, bank)
//	CmdVelocityUp/Down     Value/HasValue (delta)
//	CmdLoopBegin           Value/HasValue (iteration count)
//	CmdHarmony             Body (member notes), Value/HasValue (length), Params (gate)
//	CmdGroupNotes          Body (members), Value/HasValue (divisor)
//	CmdMacroDefine/Ref     Name, Body (definition only)
//	CmdRhythmMacroDefine/Ref  Name (single char), Body (definition only)
//	CmdComment             Comment, Text
type Command struct {
	Kind CommandKind
	Pos  Position

	Note       byte
	Accidental int

	Value    int
	HasValue bool
	Dots     int

	Params []Param

	Name    string
	Body    []Command
	Comment CommentKind
	Text    string
}

// Param returns the i-th trailing parameter and whether it was supplied.
func (c Command) Param(i int) (int, bool) {
	if i < 0 || i >= len(c.Params) || !c.Params[i].Set {
		return 0, false
	}
	return c.Params[i].Value, true
}

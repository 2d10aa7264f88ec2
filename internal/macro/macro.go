// Package macro implements the macro table and the expansion pass. The pass
// is a pure rewrite over the command stream: definitions register and
// disappear, references are spliced in place, recursively, under a fixed
// depth bound. It runs to completion before interpretation begins and never
// touches loop or voice state.
package macro

import (
	"github.com/mmlc-dev/mmlc/mml"
)

// Table maps macro names to their stored bodies. Named macros and
// single-character rhythm macros live in separate namespaces. Redefinition
// overwrites silently; a reference always sees the binding in effect at its
// position in the stream.
type Table struct {
	named  map[string][]mml.Command
	rhythm map[string][]mml.Command
}

func NewTable() *Table {
	return &Table{
		named:  make(map[string][]mml.Command),
		rhythm: make(map[string][]mml.Command),
	}
}

func (t *Table) Define(name string, body []mml.Command)       { t.named[name] = body }
func (t *Table) DefineRhythm(name string, body []mml.Command) { t.rhythm[name] = body }

func (t *Table) lookup(kind mml.CommandKind, name string) ([]mml.Command, bool) {
	if kind == mml.CmdRhythmMacroRef {
		body, ok := t.rhythm[name]
		return body, ok
	}
	body, ok := t.named[name]
	return body, ok
}

// Expand rewrites cmds with every macro reference replaced by its defining
// body. maxDepth bounds transitive expansion; exceeding it (as any
// self-referencing macro does) fails with MacroRecursionError.
func Expand(cmds []mml.Command, maxDepth int) ([]mml.Command, error) {
	t := NewTable()
	return t.expand(cmds, 0, maxDepth)
}

func (t *Table) expand(cmds []mml.Command, depth, maxDepth int) ([]mml.Command, error) {
	out := make([]mml.Command, 0, len(cmds))
	for _, cmd := range cmds {
		switch cmd.Kind {
		case mml.CmdMacroDefine:
			t.Define(cmd.Name, cmd.Body)
		case mml.CmdRhythmMacroDefine:
			t.DefineRhythm(cmd.Name, cmd.Body)
		case mml.CmdMacroRef, mml.CmdRhythmMacroRef:
			body, ok := t.lookup(cmd.Kind, cmd.Name)
			if !ok {
				return nil, &mml.UndefinedMacroError{Pos: cmd.Pos, Name: cmd.Name}
			}
			if depth >= maxDepth {
				return nil, &mml.MacroRecursionError{Pos: cmd.Pos, Name: cmd.Name}
			}
			expanded, err := t.expand(body, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		default:
			out = append(out, cmd)
		}
	}
	return out, nil
}

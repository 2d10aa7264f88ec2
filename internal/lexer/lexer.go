// Package lexer turns raw MML text into the flat Command stream consumed by
// the macro expander and the interpreter. It is a plain byte walker; the
// grammar has no tokens longer than a couple of characters and no
// backtracking beyond one byte of lookahead.
package lexer

import (
	"strconv"

	"github.com/mmlc-dev/mmlc/mml"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// Tokenize converts src into an ordered command sequence. The first error
// aborts the whole pass.
func Tokenize(src string) ([]mml.Command, error) {
	lx := &lexer{src: src, line: 1, col: 1, atLineHead: true}
	return lx.run()
}

type lexer struct {
	src string
	i   int

	line int
	col  int

	// atLineHead is true while only whitespace has been seen since the
	// last newline; it decides whether '#name' defines or references.
	atLineHead bool

	// inMacroBody disables '#name' definitions so that macro bodies can
	// only reference other macros.
	inMacroBody bool
}

func (lx *lexer) run() ([]mml.Command, error) {
	cmds := make([]mml.Command, 0, 64)
	for {
		lx.skipSpace()
		if lx.eof() {
			return cmds, nil
		}
		cmd, err := lx.scanCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
}

func (lx *lexer) scanCommand() (mml.Command, error) {
	pos := lx.pos()
	ch := lower(lx.src[lx.i])
	switch {
	case ch == 'n' && lx.digitAt(lx.i+1):
		return lx.scanNNote()
	case isNote(ch):
		return lx.scanNote()
	case ch == 'r':
		return lx.scanRest()
	case ch == 'l':
		return lx.scanNumberCmd(mml.CmdSetLength, false, 0)
	case ch == 'o':
		return lx.scanNumberCmd(mml.CmdSetOctave, false, 0)
	case ch == 'p':
		return lx.scanNumberCmd(mml.CmdSetPitchBend, true, 0)
	case ch == 'q':
		return lx.scanNumberCmd(mml.CmdSetGate, false, 0)
	case ch == 'v':
		return lx.scanNumberCmd(mml.CmdSetVelocity, false, 1)
	case ch == 't':
		return lx.scanNumberCmd(mml.CmdSetTiming, true, 1)
	case ch == 'y':
		return lx.scanNumberCmd(mml.CmdSetControlChange, false, 4)
	case ch == '@':
		return lx.scanNumberCmd(mml.CmdVoiceSelect, false, 2)
	case ch == '>':
		lx.advance()
		return mml.Command{Kind: mml.CmdOctaveUp, Pos: pos}, nil
	case ch == '<':
		lx.advance()
		return mml.Command{Kind: mml.CmdOctaveDown, Pos: pos}, nil
	case ch == '`':
		lx.advance()
		return mml.Command{Kind: mml.CmdOctaveUpOnce, Pos: pos}, nil
	case ch == '"':
		lx.advance()
		return mml.Command{Kind: mml.CmdOctaveDownOnce, Pos: pos}, nil
	case ch == ')':
		lx.advance()
		return lx.withOptionalNumber(mml.Command{Kind: mml.CmdVelocityUp, Pos: pos}), nil
	case ch == '(':
		lx.advance()
		return lx.withOptionalNumber(mml.Command{Kind: mml.CmdVelocityDown, Pos: pos}), nil
	case ch == '[':
		lx.advance()
		return lx.withOptionalNumber(mml.Command{Kind: mml.CmdLoopBegin, Pos: pos}), nil
	case ch == ':':
		lx.advance()
		return mml.Command{Kind: mml.CmdLoopBreak, Pos: pos}, nil
	case ch == ']':
		lx.advance()
		return mml.Command{Kind: mml.CmdLoopEnd, Pos: pos}, nil
	case ch == '&':
		lx.advance()
		return mml.Command{Kind: mml.CmdTieSlur, Pos: pos}, nil
	case ch == '?':
		lx.advance()
		return mml.Command{Kind: mml.CmdPlayFromHere, Pos: pos}, nil
	case ch == '\'':
		return lx.scanHarmony()
	case ch == '{':
		return lx.scanGroup()
	case ch == '#':
		return lx.scanMacro()
	case ch == '$':
		return lx.scanRhythmMacro()
	case ch == '/':
		return lx.scanComment()
	default:
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "unexpected character " + strconv.QuoteRune(rune(lx.src[lx.i]))}
	}
}

func (lx *lexer) scanNote() (mml.Command, error) {
	pos := lx.pos()
	letter := lower(lx.src[lx.i])
	lx.advance()
	accidental := 0
	for !lx.eof() {
		switch lx.src[lx.i] {
		case '+', '#':
			accidental++
			lx.advance()
		case '-':
			accidental--
			lx.advance()
		default:
			goto done
		}
	}
done:
	cmd := mml.Command{Kind: mml.CmdNote, Pos: pos, Note: letter, Accidental: accidental}
	if v, ok := lx.scanNumber(); ok {
		cmd.Value, cmd.HasValue = v, true
	}
	cmd.Dots = lx.scanDots()
	params, err := lx.scanParams(3)
	if err != nil {
		return mml.Command{}, err
	}
	cmd.Params = params
	return cmd, nil
}

func (lx *lexer) scanNNote() (mml.Command, error) {
	pos := lx.pos()
	lx.advance() // 'n'
	v, ok := lx.scanNumber()
	if !ok {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "'n' requires a note number"}
	}
	params, err := lx.scanParams(4)
	if err != nil {
		return mml.Command{}, err
	}
	return mml.Command{Kind: mml.CmdNNote, Pos: pos, Value: v, HasValue: true, Params: params}, nil
}

func (lx *lexer) scanRest() (mml.Command, error) {
	pos := lx.pos()
	lx.advance()
	cmd := mml.Command{Kind: mml.CmdRest, Pos: pos}
	if v, ok := lx.scanNumber(); ok {
		cmd.Value, cmd.HasValue = v, true
	}
	cmd.Dots = lx.scanDots()
	return cmd, nil
}

// scanNumberCmd handles the single-letter parameter setters: the letter,
// a required (optionally signed) number, and up to maxParams trailing
// comma slots.
func (lx *lexer) scanNumberCmd(kind mml.CommandKind, signed bool, maxParams int) (mml.Command, error) {
	pos := lx.pos()
	letter := lx.src[lx.i]
	lx.advance()
	var v int
	var ok bool
	if signed {
		v, ok = lx.scanSignedNumber()
	} else {
		v, ok = lx.scanNumber()
	}
	if !ok {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "'" + string(letter) + "' requires a number"}
	}
	cmd := mml.Command{Kind: kind, Pos: pos, Value: v, HasValue: true}
	if maxParams > 0 {
		params, err := lx.scanParams(maxParams)
		if err != nil {
			return mml.Command{}, err
		}
		cmd.Params = params
	}
	return cmd, nil
}

func (lx *lexer) scanHarmony() (mml.Command, error) {
	pos := lx.pos()
	lx.advance() // opening quote
	notes := make([]mml.Command, 0, 4)
	for {
		lx.skipSpace()
		if lx.eof() {
			return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "unterminated harmony"}
		}
		if lx.src[lx.i] == '\'' {
			lx.advance()
			break
		}
		if !isNote(lower(lx.src[lx.i])) {
			return mml.Command{}, &mml.SyntaxError{Pos: lx.pos(), Msg: "harmony may contain only note letters"}
		}
		npos := lx.pos()
		letter := lower(lx.src[lx.i])
		lx.advance()
		accidental := 0
		for !lx.eof() && (lx.src[lx.i] == '+' || lx.src[lx.i] == '#' || lx.src[lx.i] == '-') {
			if lx.src[lx.i] == '-' {
				accidental--
			} else {
				accidental++
			}
			lx.advance()
		}
		notes = append(notes, mml.Command{Kind: mml.CmdNote, Pos: npos, Note: letter, Accidental: accidental})
	}
	if len(notes) == 0 {
		return mml.Command{}, &mml.EmptyGroupError{Pos: pos}
	}
	cmd := mml.Command{Kind: mml.CmdHarmony, Pos: pos, Body: notes}
	if v, ok := lx.scanNumber(); ok {
		cmd.Value, cmd.HasValue = v, true
	}
	cmd.Dots = lx.scanDots()
	params, err := lx.scanParams(1)
	if err != nil {
		return mml.Command{}, err
	}
	cmd.Params = params
	return cmd, nil
}

func (lx *lexer) scanGroup() (mml.Command, error) {
	pos := lx.pos()
	lx.advance() // '{'
	members := make([]mml.Command, 0, 8)
	for {
		lx.skipSpace()
		if lx.eof() {
			return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "unterminated group"}
		}
		ch := lower(lx.src[lx.i])
		if ch == '}' {
			lx.advance()
			break
		}
		var (
			member mml.Command
			err    error
		)
		switch {
		case ch == 'n' && lx.digitAt(lx.i+1):
			member, err = lx.scanNNote()
		case isNote(ch):
			member, err = lx.scanNote()
		case ch == 'r':
			member, err = lx.scanRest()
		case ch == '&':
			member = mml.Command{Kind: mml.CmdTieSlur, Pos: lx.pos()}
			lx.advance()
		case ch == '\'':
			member, err = lx.scanHarmony()
		default:
			return mml.Command{}, &mml.SyntaxError{Pos: lx.pos(), Msg: "command not allowed inside a group"}
		}
		if err != nil {
			return mml.Command{}, err
		}
		members = append(members, member)
	}
	sounding := 0
	for _, m := range members {
		if m.Kind != mml.CmdTieSlur {
			sounding++
		}
	}
	if sounding == 0 {
		return mml.Command{}, &mml.EmptyGroupError{Pos: pos}
	}
	cmd := mml.Command{Kind: mml.CmdGroupNotes, Pos: pos, Body: members}
	if v, ok := lx.scanNumber(); ok {
		cmd.Value, cmd.HasValue = v, true
	}
	return cmd, nil
}

func (lx *lexer) scanMacro() (mml.Command, error) {
	pos := lx.pos()
	defining := lx.atLineHead && !lx.inMacroBody
	lx.advance() // '#'
	name := lx.scanName()
	if name == "" {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "'#' requires a macro name"}
	}
	if !defining {
		return mml.Command{Kind: mml.CmdMacroRef, Pos: pos, Name: name}, nil
	}
	start := lx.i
	for !lx.eof() && lx.src[lx.i] != '\n' {
		lx.advance()
	}
	body, err := lx.sub(lx.src[start:lx.i], start)
	if err != nil {
		return mml.Command{}, err
	}
	return mml.Command{Kind: mml.CmdMacroDefine, Pos: pos, Name: name, Body: body}, nil
}

func (lx *lexer) scanRhythmMacro() (mml.Command, error) {
	pos := lx.pos()
	lx.advance() // '$'
	if lx.eof() || !isAlnum(lx.src[lx.i]) {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "'$' requires a single alphanumeric id"}
	}
	name := string(lx.src[lx.i])
	lx.advance()
	if lx.eof() || lx.src[lx.i] != '{' {
		return mml.Command{Kind: mml.CmdRhythmMacroRef, Pos: pos, Name: name}, nil
	}
	lx.advance() // '{'
	start := lx.i
	depth := 1
	for !lx.eof() {
		switch lx.src[lx.i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			break
		}
		lx.advance()
	}
	if lx.eof() {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "unterminated rhythm macro definition"}
	}
	bodyText := lx.src[start:lx.i]
	lx.advance() // closing '}'
	body, err := lx.sub(bodyText, start)
	if err != nil {
		return mml.Command{}, err
	}
	return mml.Command{Kind: mml.CmdRhythmMacroDefine, Pos: pos, Name: name, Body: body}, nil
}

func (lx *lexer) scanComment() (mml.Command, error) {
	pos := lx.pos()
	if lx.i+1 >= len(lx.src) {
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "stray '/'"}
	}
	switch lx.src[lx.i+1] {
	case '*':
		lx.advance()
		lx.advance()
		start := lx.i
		for {
			if lx.i+1 >= len(lx.src) {
				return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "unterminated range comment"}
			}
			if lx.src[lx.i] == '*' && lx.src[lx.i+1] == '/' {
				break
			}
			lx.advance()
		}
		text := lx.src[start:lx.i]
		lx.advance()
		lx.advance()
		return mml.Command{Kind: mml.CmdComment, Pos: pos, Comment: mml.CommentRange, Text: text}, nil
	case '/':
		lx.advance()
		lx.advance()
		kind := mml.CommentLine
		if !lx.eof() && lx.src[lx.i] == '!' {
			kind = mml.CommentDebug
			lx.advance()
		}
		start := lx.i
		for !lx.eof() && lx.src[lx.i] != '\n' {
			lx.advance()
		}
		return mml.Command{Kind: mml.CmdComment, Pos: pos, Comment: kind, Text: trimSpace(lx.src[start:lx.i])}, nil
	default:
		return mml.Command{}, &mml.SyntaxError{Pos: pos, Msg: "stray '/'"}
	}
}

// sub tokenizes an embedded body (macro definition tail, rhythm pattern)
// with definition syntax disabled.
func (lx *lexer) sub(body string, offset int) ([]mml.Command, error) {
	sl := &lexer{src: body, line: lx.line, col: 1, atLineHead: false, inMacroBody: true}
	cmds, err := sl.run()
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		cmds[i].Pos.Index += offset
	}
	return cmds, err
}

func (lx *lexer) scanParams(max int) ([]mml.Param, error) {
	var params []mml.Param
	for {
		save := lx.i
		saveLine, saveCol, saveHead := lx.line, lx.col, lx.atLineHead
		lx.skipInlineSpace()
		if lx.eof() || lx.src[lx.i] != ',' {
			lx.i, lx.line, lx.col, lx.atLineHead = save, saveLine, saveCol, saveHead
			return params, nil
		}
		cpos := lx.pos()
		lx.advance() // ','
		lx.skipInlineSpace()
		if v, ok := lx.scanSignedNumber(); ok {
			params = append(params, mml.Param{Set: true, Value: v})
		} else {
			params = append(params, mml.Param{})
		}
		if len(params) > max {
			return nil, &mml.SyntaxError{Pos: cpos, Msg: "too many trailing parameters"}
		}
	}
}

func (lx *lexer) withOptionalNumber(cmd mml.Command) mml.Command {
	if v, ok := lx.scanNumber(); ok {
		cmd.Value, cmd.HasValue = v, true
	}
	return cmd
}

func (lx *lexer) scanNumber() (int, bool) {
	start := lx.i
	for !lx.eof() && lx.src[lx.i] >= '0' && lx.src[lx.i] <= '9' {
		lx.advance()
	}
	if start == lx.i {
		return 0, false
	}
	v, err := strconv.Atoi(lx.src[start:lx.i])
	if err != nil {
		return 0, false
	}
	return v, true
}

func (lx *lexer) scanSignedNumber() (int, bool) {
	save, saveCol := lx.i, lx.col
	sign := 1
	if !lx.eof() && (lx.src[lx.i] == '+' || lx.src[lx.i] == '-') {
		if lx.src[lx.i] == '-' {
			sign = -1
		}
		lx.advance()
	}
	v, ok := lx.scanNumber()
	if !ok {
		lx.i, lx.col = save, saveCol
		return 0, false
	}
	return sign * v, true
}

func (lx *lexer) scanDots() int {
	dots := 0
	for !lx.eof() && lx.src[lx.i] == '.' {
		dots++
		lx.advance()
	}
	return dots
}

func (lx *lexer) scanName() string {
	start := lx.i
	for !lx.eof() && (isAlnum(lx.src[lx.i]) || lx.src[lx.i] == '_') {
		lx.advance()
	}
	return lx.src[start:lx.i]
}

func (lx *lexer) pos() mml.Position {
	return mml.Position{Index: lx.i, Line: lx.line, Col: lx.col}
}

func (lx *lexer) advance() {
	if lx.eof() {
		return
	}
	if lx.src[lx.i] == '\n' {
		lx.line++
		lx.col = 1
		lx.atLineHead = true
	} else {
		lx.col++
		if !isSpace(lx.src[lx.i]) {
			lx.atLineHead = false
		}
	}
	lx.i++
}

func (lx *lexer) skipSpace() {
	for !lx.eof() && isSpace(lx.src[lx.i]) {
		lx.advance()
	}
}

func (lx *lexer) skipInlineSpace() {
	for !lx.eof() && (lx.src[lx.i] == ' ' || lx.src[lx.i] == '\t') {
		lx.advance()
	}
}

func (lx *lexer) eof() bool { return lx.i >= len(lx.src) }

func (lx *lexer) digitAt(i int) bool {
	return i < len(lx.src) && lx.src[i] >= '0' && lx.src[i] <= '9'
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
func isNote(b byte) bool  { _, ok := noteOffsets[b]; return ok }

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && isSpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

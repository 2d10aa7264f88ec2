package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmlc-dev/mmlc/internal/lexer"
	"github.com/mmlc-dev/mmlc/mml"
)

func expand(t *testing.T, src string) ([]mml.Command, error) {
	t.Helper()
	cmds, err := lexer.Tokenize(src)
	require.NoError(t, err, "tokenize %q", src)
	return Expand(cmds, 64)
}

func noteLetters(cmds []mml.Command) string {
	var out []byte
	for _, c := range cmds {
		if c.Kind == mml.CmdNote {
			out = append(out, c.Note)
		}
	}
	return string(out)
}

func TestExpandSplicesBody(t *testing.T) {
	// a '#' at the head of a line defines, so references live mid-line
	cmds, err := expand(t, "#A cde\no5 #A f #A")
	require.NoError(t, err)
	assert.Equal(t, "cdefcde", noteLetters(cmds))
	for _, c := range cmds {
		assert.NotEqual(t, mml.CmdMacroDefine, c.Kind)
		assert.NotEqual(t, mml.CmdMacroRef, c.Kind)
	}
}

func TestExpandDefinitionVanishes(t *testing.T) {
	cmds, err := expand(t, "#A cde")
	require.NoError(t, err)
	assert.Empty(t, cmds, "unused definition leaves nothing behind")
}

func TestExpandRedefinitionLastWins(t *testing.T) {
	cmds, err := expand(t, "#A c\n#A d\no5 #A")
	require.NoError(t, err)
	assert.Equal(t, "d", noteLetters(cmds))
}

func TestExpandReferenceSeesBindingAtUseSite(t *testing.T) {
	// B's body references A, so B picks up whatever A means when B is
	// expanded, not when B was defined.
	cmds, err := expand(t, "#A c\n#B #A\n#A d\no5 #B")
	require.NoError(t, err)
	assert.Equal(t, "d", noteLetters(cmds))
}

func TestExpandNested(t *testing.T) {
	cmds, err := expand(t, "#A cd\n#B #A e\no5 #B #B")
	require.NoError(t, err)
	assert.Equal(t, "cdecde", noteLetters(cmds))
}

func TestExpandUndefined(t *testing.T) {
	_, err := expand(t, "o5 #MISSING")
	var undef *mml.UndefinedMacroError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "MISSING", undef.Name)
}

func TestExpandSelfReferenceHitsDepthBound(t *testing.T) {
	_, err := expand(t, "#A c #A\no5 #A")
	var rec *mml.MacroRecursionError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, "A", rec.Name)
}

func TestExpandMutualRecursionHitsDepthBound(t *testing.T) {
	cmds, err := lexer.Tokenize("#A #B\n#B #A\no5 #A")
	require.NoError(t, err)
	_, err = Expand(cmds, 64)
	require.Error(t, err)
}

func TestExpandRhythmMacro(t *testing.T) {
	cmds, err := expand(t, "$1{c8 r8 c8}\n$1 $1")
	require.NoError(t, err)
	assert.Equal(t, "cccc", noteLetters(cmds))
	rests := 0
	for _, c := range cmds {
		if c.Kind == mml.CmdRest {
			rests++
		}
	}
	assert.Equal(t, 2, rests)
}

func TestExpandRhythmNamespaceIsSeparate(t *testing.T) {
	// '#1' and '$1' must not collide.
	cmds, err := expand(t, "#1 c\n$1{d}\no5 #1 $1")
	require.NoError(t, err)
	assert.Equal(t, "cd", noteLetters(cmds))
}

func TestExpandUndefinedRhythm(t *testing.T) {
	_, err := expand(t, "$9")
	var undef *mml.UndefinedMacroError
	require.ErrorAs(t, err, &undef)
}

func TestExpandPreservesSurroundingCommands(t *testing.T) {
	cmds, err := expand(t, "#A e\no4 [2 #A ] v90")
	require.NoError(t, err)
	want := []mml.CommandKind{
		mml.CmdSetOctave, mml.CmdLoopBegin, mml.CmdNote, mml.CmdLoopEnd, mml.CmdSetVelocity,
	}
	require.Len(t, cmds, len(want))
	for i, k := range want {
		assert.Equal(t, k, cmds[i].Kind, "command %d", i)
	}
}

// Package mmlc compiles Music Macro Language text into a time-ordered
// event sequence. The pipeline is tokenize, expand macros, interpret:
//
//	seq, err := mmlc.Compile(ctx, "o5 l8 cdefgab>c", mml.DefaultConfig())
//
// The resulting mml.Sequence holds every voice's events merged and sorted
// by start tick, ready for a MIDI or synthesis sink.
package mmlc

import (
	"context"

	"github.com/mmlc-dev/mmlc/internal/interp"
	"github.com/mmlc-dev/mmlc/internal/lexer"
	"github.com/mmlc-dev/mmlc/internal/macro"
	"github.com/mmlc-dev/mmlc/mml"
)

// Compile runs the full pipeline over src. Any error is fatal to the pass;
// no partial sequence is returned. Attach a slog.Logger to ctx with
// ctxlog.WithLogger to see debug comments and the compile summary.
func Compile(ctx context.Context, src string, cfg mml.Config) (*mml.Sequence, error) {
	cmds, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return CompileCommands(ctx, cmds, cfg)
}

// CompileCommands runs macro expansion and interpretation over an already
// tokenized stream, for callers that bring their own tokenizer.
func CompileCommands(ctx context.Context, cmds []mml.Command, cfg mml.Config) (*mml.Sequence, error) {
	expanded, err := macro.Expand(cmds, cfg.MaxMacroDepth)
	if err != nil {
		return nil, err
	}
	return interp.New(cfg).Run(ctx, expanded)
}

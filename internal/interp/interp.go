// Package interp walks a macro-expanded command stream and emits the final
// absolute-time event sequence. It owns the loop stack, the per-voice
// performance state, and the grouping/harmony resolution rules.
package interp

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mmlc-dev/mmlc/internal/ctxlog"
	"github.com/mmlc-dev/mmlc/mml"
)

type Interpreter struct {
	cfg mml.Config
}

func New(cfg mml.Config) *Interpreter { return &Interpreter{cfg: cfg} }

// loopFrame tracks one open '[' region during the walk. remaining counts
// passes still to run, including the current one.
type loopFrame struct {
	pos       mml.Position
	start     int
	end       int
	remaining int
}

type run struct {
	cfg    mml.Config
	rng    *rand.Rand
	seq    *mml.Sequence
	voices map[int]*voice
	active *voice
	loops  []loopFrame
}

// Run interprets cmds and returns the sorted event sequence. The stream
// must already be macro-expanded; any error aborts the pass with no
// partial output.
func (it *Interpreter) Run(ctx context.Context, cmds []mml.Command) (*mml.Sequence, error) {
	log := ctxlog.FromContext(ctx)
	r := &run{
		cfg: it.cfg,
		rng: rand.New(rand.NewSource(it.cfg.RandomSeed)),
		seq: &mml.Sequence{
			Resolution: it.cfg.Resolution,
			TempoBPM:   it.cfg.TempoBPM,
			Events:     make([]mml.Event, 0, len(cmds)*2),
		},
		voices: make(map[int]*voice),
	}
	r.active = r.voice(0)

	pc := 0
	for pc < len(cmds) {
		cmd := cmds[pc]
		switch cmd.Kind {
		case mml.CmdLoopBegin:
			end, err := findLoopEnd(cmds, pc)
			if err != nil {
				return nil, err
			}
			count := r.cfg.DefaultLoopCount
			if cmd.HasValue {
				count = cmd.Value
			}
			if count == 0 {
				pc = end + 1
				continue
			}
			r.loops = append(r.loops, loopFrame{pos: cmd.Pos, start: pc + 1, end: end, remaining: count})

		case mml.CmdLoopBreak:
			if len(r.loops) == 0 {
				return nil, &mml.UnbalancedLoopError{Pos: cmd.Pos, Msg: "':' outside a loop"}
			}
			top := &r.loops[len(r.loops)-1]
			if top.remaining == 1 {
				// Final pass stops at the break point; the tail after
				// ':' only plays on earlier passes.
				pc = top.end + 1
				r.loops = r.loops[:len(r.loops)-1]
				continue
			}

		case mml.CmdLoopEnd:
			if len(r.loops) == 0 {
				return nil, &mml.UnbalancedLoopError{Pos: cmd.Pos, Msg: "']' without matching '['"}
			}
			top := &r.loops[len(r.loops)-1]
			top.remaining--
			if top.remaining > 0 {
				pc = top.start
				continue
			}
			r.loops = r.loops[:len(r.loops)-1]

		case mml.CmdComment:
			if cmd.Comment == mml.CommentDebug {
				log.Debug("mml debug comment", "line", cmd.Pos.Line, "text", cmd.Text)
			}

		case mml.CmdPlayFromHere:
			r.seq.RenderFrom = r.active.tick

		case mml.CmdMacroDefine, mml.CmdMacroRef, mml.CmdRhythmMacroDefine, mml.CmdRhythmMacroRef:
			return nil, fmt.Errorf("internal: %v command reached the interpreter unexpanded", cmd.Kind)

		default:
			if err := r.exec(cmd); err != nil {
				return nil, err
			}
		}
		pc++
	}
	if len(r.loops) > 0 {
		top := r.loops[len(r.loops)-1]
		return nil, &mml.UnbalancedLoopError{Pos: top.pos, Msg: "'[' never closed"}
	}

	r.seq.Sort()
	log.Debug("compiled command stream",
		"commands", len(cmds),
		"events", len(r.seq.Events),
		"voices", len(r.voices),
		"end_tick", r.seq.EndTick())
	return r.seq, nil
}

// exec handles every non-control-flow command against the active voice.
func (r *run) exec(cmd mml.Command) error {
	v := r.active
	switch cmd.Kind {
	case mml.CmdNote:
		dur, err := r.noteDuration(cmd)
		if err != nil {
			return err
		}
		return r.playNote(v, cmd, pitchOf(cmd, v.octave+v.takeOnceShift()), dur, 0)

	case mml.CmdNNote:
		dur := r.ticks(v.length, 0)
		if denom, ok := cmd.Param(0); ok {
			var err error
			if dur, err = r.ticksChecked(denom, 0, cmd.Pos); err != nil {
				return err
			}
		}
		nn := clamp(cmd.Value+12*v.takeOnceShift(), 0, 127)
		return r.playNote(v, cmd, nn, dur, 1)

	case mml.CmdRest:
		dur, err := r.noteDuration(cmd)
		if err != nil {
			return err
		}
		v.tick += dur
		v.clearTie()
		return nil

	case mml.CmdSetLength:
		if cmd.Value <= 0 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "note length", Value: cmd.Value}
		}
		v.length = cmd.Value
		return nil

	case mml.CmdSetOctave:
		if cmd.Value < r.cfg.MinOctave || cmd.Value > r.cfg.MaxOctave {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "octave", Value: cmd.Value}
		}
		v.octave = cmd.Value
		v.onceShift = 0
		return nil

	case mml.CmdSetPitchBend:
		if cmd.Value < -8192 || cmd.Value > 8191 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "pitch bend", Value: cmd.Value}
		}
		v.bend = cmd.Value
		r.emit(mml.Event{Tick: v.tick, Voice: v.id, Kind: mml.EventPitchBend, Value: cmd.Value})
		return nil

	case mml.CmdSetGate:
		if cmd.Value < 1 || cmd.Value > 100 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "gate", Value: cmd.Value}
		}
		v.gate = cmd.Value
		return nil

	case mml.CmdSetVelocity:
		if cmd.Value < 0 || cmd.Value > 127 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "velocity", Value: cmd.Value}
		}
		v.velocity = cmd.Value
		v.velRand = 0
		if w, ok := cmd.Param(0); ok {
			if w < 0 {
				return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "velocity randomization", Value: w}
			}
			v.velRand = w
		}
		return nil

	case mml.CmdSetTiming:
		v.timing = cmd.Value
		v.timingRand = 0
		if w, ok := cmd.Param(0); ok {
			if w < 0 {
				return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "timing randomization", Value: w}
			}
			v.timingRand = w
		}
		return nil

	case mml.CmdSetControlChange:
		return r.controlChange(v, cmd)

	case mml.CmdVoiceSelect:
		return r.voiceSelect(cmd)

	case mml.CmdOctaveUp:
		v.octave = clamp(v.octave+1, r.cfg.MinOctave, r.cfg.MaxOctave)
		v.onceShift = 0
		return nil

	case mml.CmdOctaveDown:
		v.octave = clamp(v.octave-1, r.cfg.MinOctave, r.cfg.MaxOctave)
		v.onceShift = 0
		return nil

	case mml.CmdOctaveUpOnce:
		v.onceShift = 1
		return nil

	case mml.CmdOctaveDownOnce:
		v.onceShift = -1
		return nil

	case mml.CmdVelocityUp:
		v.velocity = clamp(v.velocity+r.velocityDelta(cmd), 0, 127)
		return nil

	case mml.CmdVelocityDown:
		v.velocity = clamp(v.velocity-r.velocityDelta(cmd), 0, 127)
		return nil

	case mml.CmdTieSlur:
		if v.lastNote != nil {
			v.tieArmed = true
		}
		return nil

	case mml.CmdHarmony:
		return r.playHarmony(v, cmd, -1)

	case mml.CmdGroupNotes:
		return r.playGroup(v, cmd)

	default:
		return fmt.Errorf("internal: unhandled command kind %v", cmd.Kind)
	}
}

func (r *run) velocityDelta(cmd mml.Command) int {
	if cmd.HasValue {
		return cmd.Value
	}
	return r.cfg.VelocityStep
}

// noteDuration resolves the inline length digits and dots of a note or
// rest against the voice's default length.
func (r *run) noteDuration(cmd mml.Command) (int, error) {
	if !cmd.HasValue {
		return r.ticks(r.active.length, cmd.Dots), nil
	}
	return r.ticksChecked(cmd.Value, cmd.Dots, cmd.Pos)
}

func (r *run) ticksChecked(denom, dots int, pos mml.Position) (int, error) {
	if denom <= 0 {
		return 0, &mml.InvalidParameterError{Pos: pos, Field: "note length", Value: denom}
	}
	return r.ticks(denom, dots), nil
}

// ticks converts a length denominator plus dots into ticks. Each dot adds
// half of the previous term.
func (r *run) ticks(denom, dots int) int {
	base := r.cfg.Resolution / denom
	dur, term := base, base
	for k := 0; k < dots; k++ {
		term >>= 1
		dur += term
	}
	return dur
}

func (r *run) voiceSelect(cmd mml.Command) error {
	if cmd.Value < 0 || cmd.Value > 127 {
		return &mml.VoiceReferenceError{Pos: cmd.Pos, Field: "voice", Value: cmd.Value}
	}
	v := r.voice(cmd.Value)
	if prog, ok := cmd.Param(0); ok {
		if prog < 0 || prog > 127 {
			return &mml.VoiceReferenceError{Pos: cmd.Pos, Field: "program", Value: prog}
		}
		v.program = prog
	}
	if bank, ok := cmd.Param(1); ok {
		if bank < 0 || bank > 127 {
			return &mml.VoiceReferenceError{Pos: cmd.Pos, Field: "bank", Value: bank}
		}
		v.cc[0] = bank
		r.emit(mml.Event{Tick: v.tick, Voice: v.id, Kind: mml.EventControlChange, Controller: 0, Value: bank})
	}
	r.active = v
	return nil
}

func (r *run) controlChange(v *voice, cmd mml.Command) error {
	ctrl := cmd.Value
	if ctrl < 0 || ctrl > 127 {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "controller", Value: ctrl}
	}
	val, ok := cmd.Param(0)
	if !ok {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "control-change value", Value: 0}
	}
	if val < 0 || val > 127 {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "control-change value", Value: val}
	}
	low, hasLow := cmd.Param(1)
	high, hasHigh := cmd.Param(2)
	span, hasSpan := cmd.Param(3)
	if !hasLow && !hasHigh && !hasSpan {
		v.cc[ctrl] = val
		r.emit(mml.Event{Tick: v.tick, Voice: v.id, Kind: mml.EventControlChange, Controller: ctrl, Value: val})
		return nil
	}
	if !hasLow || !hasHigh || !hasSpan {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "control-change ramp", Value: 0}
	}
	if span <= 0 {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "control-change ramp span", Value: span}
	}
	if low < 0 || low > 127 || high < 0 || high > 127 {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "control-change ramp value", Value: low}
	}
	steps := span
	if steps > 16 {
		steps = 16
	}
	for s := 0; s <= steps; s++ {
		tick := v.tick + s*span/steps
		value := low + (high-low)*s/steps
		r.emit(mml.Event{Tick: tick, Voice: v.id, Kind: mml.EventControlChange, Controller: ctrl, Value: value})
	}
	v.cc[ctrl] = high
	return nil
}

// findLoopEnd locates the ']' matching the '[' at begin, honoring nesting.
func findLoopEnd(cmds []mml.Command, begin int) (int, error) {
	depth := 0
	for i := begin; i < len(cmds); i++ {
		switch cmds[i].Kind {
		case mml.CmdLoopBegin:
			depth++
		case mml.CmdLoopEnd:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, &mml.UnbalancedLoopError{Pos: cmds[begin].Pos, Msg: "'[' never closed"}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

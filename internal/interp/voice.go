package interp

import (
	"github.com/mmlc-dev/mmlc/mml"
)

// voice is the mutable performance state of one logical channel. It is
// created on first reference and lives for the whole pass.
type voice struct {
	id   int
	tick int

	octave     int
	length     int
	velocity   int
	gate       int
	timing     int
	velRand    int
	timingRand int
	bend       int
	program    int
	cc         map[int]int

	// onceShift is the pending one-shot octave shift from ` or ",
	// consumed by the next note.
	onceShift int

	// lastNote references the most recent sounding event so a tie can
	// extend it; tieArmed is set by '&' and consumed by the next note.
	lastNote *noteRef
	tieArmed bool
}

// noteRef remembers where the NoteOff of the last emitted note lives so a
// tie can move it.
type noteRef struct {
	offIndex int
	onTick   int
	nominal  int
	note     int
}

func (v *voice) takeOnceShift() int {
	s := v.onceShift
	v.onceShift = 0
	return s
}

func (v *voice) clearTie() {
	v.lastNote = nil
	v.tieArmed = false
}

func (r *run) voice(id int) *voice {
	if v, ok := r.voices[id]; ok {
		return v
	}
	v := &voice{
		id:       id,
		octave:   r.cfg.DefaultOctave,
		length:   r.cfg.DefaultLength,
		velocity: r.cfg.DefaultVelocity,
		gate:     r.cfg.DefaultGate,
		timing:   r.cfg.DefaultTiming,
		cc:       make(map[int]int),
	}
	if d, ok := r.cfg.Voices[id]; ok {
		if d.Octave != 0 {
			v.octave = d.Octave
		}
		if d.Length != 0 {
			v.length = d.Length
		}
		if d.Velocity != 0 {
			v.velocity = d.Velocity
		}
		if d.Gate != 0 {
			v.gate = d.Gate
		}
		if d.Timing != 0 {
			v.timing = d.Timing
		}
	}
	r.voices[id] = v
	return v
}

func (r *run) emit(e mml.Event) {
	r.seq.Events = append(r.seq.Events, e)
}

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

func pitchOf(cmd mml.Command, octave int) int {
	return clamp(octave*12+noteOffsets[cmd.Note]+cmd.Accidental, 0, 127)
}

// playNote resolves one note against the voice's current state snapshot
// and advances the time cursor by the nominal duration. paramBase shifts
// the trailing-slot positions: a plain note's first slot is a velocity
// override, an 'n' note spends its first slot on the length.
func (r *run) playNote(v *voice, cmd mml.Command, nn, dur, paramBase int) error {
	if v.tieArmed && v.lastNote != nil {
		// Tied: stretch the previous sounding event instead of emitting
		// a new pair. The first note's pitch wins.
		ref := v.lastNote
		ref.nominal += dur
		r.seq.Events[ref.offIndex].Tick = ref.onTick + gateDuration(ref.nominal, v.gate)
		v.tick += dur
		v.tieArmed = false
		return nil
	}

	vel := v.velocity
	if ov, ok := cmd.Param(paramBase); ok {
		if ov < 0 || ov > 127 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "velocity", Value: ov}
		}
		vel = ov
	}
	if v.velRand > 0 {
		vel = clamp(vel+r.rng.Intn(2*v.velRand+1)-v.velRand, 0, 127)
	}

	gate := v.gate
	if ov, ok := cmd.Param(paramBase + 1); ok {
		if ov < 1 || ov > 100 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "gate", Value: ov}
		}
		gate = ov
	}

	timing := v.timing
	if ov, ok := cmd.Param(paramBase + 2); ok {
		timing = ov
	}
	if v.timingRand > 0 {
		timing += r.rng.Intn(2*v.timingRand+1) - v.timingRand
	}

	start := v.tick + timing
	if start < 0 {
		start = 0
	}
	r.emit(mml.Event{Tick: start, Voice: v.id, Kind: mml.EventNoteOn, Note: nn, Velocity: vel, Program: v.program})
	r.emit(mml.Event{Tick: start + gateDuration(dur, gate), Voice: v.id, Kind: mml.EventNoteOff, Note: nn})
	v.lastNote = &noteRef{offIndex: len(r.seq.Events) - 1, onTick: start, nominal: dur, note: nn}
	v.tick += dur
	return nil
}

// playHarmony emits every chord note at one shared start time and advances
// the cursor exactly once. durOverride < 0 means resolve the chord's own
// length; a group passes the member's slice of the subdivided span.
func (r *run) playHarmony(v *voice, cmd mml.Command, durOverride int) error {
	if len(cmd.Body) == 0 {
		return &mml.EmptyGroupError{Pos: cmd.Pos}
	}
	dur := durOverride
	if dur < 0 {
		if cmd.HasValue {
			var err error
			if dur, err = r.ticksChecked(cmd.Value, cmd.Dots, cmd.Pos); err != nil {
				return err
			}
		} else {
			dur = r.ticks(v.length, cmd.Dots)
		}
	}
	gate := v.gate
	if ov, ok := cmd.Param(0); ok {
		if ov < 1 || ov > 100 {
			return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "gate", Value: ov}
		}
		gate = ov
	}

	once := v.takeOnceShift()
	timing := v.timing
	if v.timingRand > 0 {
		// One draw for the whole chord; its notes stay simultaneous.
		timing += r.rng.Intn(2*v.timingRand+1) - v.timingRand
	}
	start := v.tick + timing
	if start < 0 {
		start = 0
	}
	sounded := gateDuration(dur, gate)
	for _, note := range cmd.Body {
		nn := pitchOf(note, v.octave+once)
		vel := v.velocity
		if v.velRand > 0 {
			vel = clamp(vel+r.rng.Intn(2*v.velRand+1)-v.velRand, 0, 127)
		}
		r.emit(mml.Event{Tick: start, Voice: v.id, Kind: mml.EventNoteOn, Note: nn, Velocity: vel, Program: v.program})
		r.emit(mml.Event{Tick: start + sounded, Voice: v.id, Kind: mml.EventNoteOff, Note: nn})
	}
	v.tick += dur
	v.clearTie()
	return nil
}

// playGroup divides the voice's nominal duration among the group members
// and advances the cursor per member. The trailing number, when present,
// overrides the member count as the divisor.
func (r *run) playGroup(v *voice, cmd mml.Command) error {
	sounding := 0
	for _, m := range cmd.Body {
		if m.Kind != mml.CmdTieSlur {
			sounding++
		}
	}
	if sounding == 0 {
		return &mml.EmptyGroupError{Pos: cmd.Pos}
	}
	div := sounding
	if cmd.HasValue {
		div = cmd.Value
	}
	if div <= 0 {
		return &mml.InvalidParameterError{Pos: cmd.Pos, Field: "group divisor", Value: div}
	}
	per := r.ticks(v.length, 0) / div
	for _, m := range cmd.Body {
		switch m.Kind {
		case mml.CmdNote:
			if err := r.playNote(v, m, pitchOf(m, v.octave+v.takeOnceShift()), per, 0); err != nil {
				return err
			}
		case mml.CmdNNote:
			nn := clamp(m.Value+12*v.takeOnceShift(), 0, 127)
			if err := r.playNote(v, m, nn, per, 1); err != nil {
				return err
			}
		case mml.CmdRest:
			v.tick += per
			v.clearTie()
		case mml.CmdTieSlur:
			if v.lastNote != nil {
				v.tieArmed = true
			}
		case mml.CmdHarmony:
			if err := r.playHarmony(v, m, per); err != nil {
				return err
			}
		default:
			return &mml.SyntaxError{Pos: m.Pos, Msg: "command not allowed inside a group"}
		}
	}
	return nil
}

// gateDuration is the sounded portion of a nominal duration: never zero
// for a non-empty note so a NoteOff always trails its NoteOn.
func gateDuration(dur, gatePercent int) int {
	if gatePercent <= 0 {
		return 0
	}
	gated := (dur * gatePercent) / 100
	if gated <= 0 && dur > 0 {
		return 1
	}
	return gated
}

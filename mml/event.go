package mml

import "sort"

// EventKind identifies the performance actions emitted by the interpreter.
type EventKind int

const (
	EventNoteOn EventKind = iota + 1
	EventNoteOff
	EventPitchBend
	EventControlChange
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	case EventPitchBend:
		return "pitch-bend"
	case EventControlChange:
		return "control-change"
	default:
		return "unknown"
	}
}

// Event is one absolute-time performance action. Events are plain
// serializable values so a downstream sink can map them to MIDI or another
// protocol without re-deriving timing.
type Event struct {
	Tick  int       `json:"tick"`
	Voice int       `json:"voice"`
	Kind  EventKind `json:"kind"`

	Note     int `json:"note,omitempty"`
	Velocity int `json:"velocity,omitempty"`
	Program  int `json:"program,omitempty"`

	Controller int `json:"controller,omitempty"`
	Value      int `json:"value,omitempty"`
}

// Sequence is the compiled output: every voice's events merged into one
// list, stable-sorted by (Tick, Voice, emission order).
type Sequence struct {
	Resolution int     `json:"resolution"`
	TempoBPM   float64 `json:"tempo_bpm"`

	// RenderFrom is the tick recorded by the last play-from-here marker,
	// or 0 when the stream had none.
	RenderFrom int `json:"render_from"`

	Events []Event `json:"events"`
}

// Sort orders Events by (Tick, Voice), preserving emission order within
// equal keys.
func (s *Sequence) Sort() {
	sort.SliceStable(s.Events, func(i, j int) bool {
		if s.Events[i].Tick != s.Events[j].Tick {
			return s.Events[i].Tick < s.Events[j].Tick
		}
		return s.Events[i].Voice < s.Events[j].Voice
	})
}

// EventsFrom returns the suffix of Events starting at RenderFrom. With no
// play-from-here marker in the source this is the whole sequence.
func (s *Sequence) EventsFrom() []Event {
	if s.RenderFrom <= 0 {
		return s.Events
	}
	for i, e := range s.Events {
		if e.Tick >= s.RenderFrom {
			return s.Events[i:]
		}
	}
	return nil
}

// EndTick returns the tick just past the last event.
func (s *Sequence) EndTick() int {
	end := 0
	for _, e := range s.Events {
		if e.Tick > end {
			end = e.Tick
		}
	}
	return end
}

package mml

import (
	"strings"
	"testing"
)

func TestSequenceSortIsStable(t *testing.T) {
	s := &Sequence{Events: []Event{
		{Tick: 480, Voice: 0, Kind: EventNoteOn, Note: 1},
		{Tick: 0, Voice: 1, Kind: EventNoteOn, Note: 2},
		{Tick: 0, Voice: 0, Kind: EventNoteOn, Note: 3},
		{Tick: 0, Voice: 0, Kind: EventNoteOff, Note: 3},
	}}
	s.Sort()
	wantNotes := []int{3, 3, 2, 1}
	for i, w := range wantNotes {
		if s.Events[i].Note != w {
			t.Fatalf("event %d note = %d, want %d (order %+v)", i, s.Events[i].Note, w, s.Events)
		}
	}
}

func TestEventsFrom(t *testing.T) {
	s := &Sequence{Events: []Event{
		{Tick: 0, Kind: EventNoteOn},
		{Tick: 384, Kind: EventNoteOff},
		{Tick: 480, Kind: EventNoteOn},
		{Tick: 864, Kind: EventNoteOff},
	}}
	if got := s.EventsFrom(); len(got) != 4 {
		t.Fatalf("no marker: expected whole sequence, got %d events", len(got))
	}
	s.RenderFrom = 480
	got := s.EventsFrom()
	if len(got) != 2 || got[0].Tick != 480 {
		t.Fatalf("expected suffix from tick 480, got %+v", got)
	}
	s.RenderFrom = 10000
	if got := s.EventsFrom(); len(got) != 0 {
		t.Fatalf("marker past the end should leave nothing, got %+v", got)
	}
}

func TestEndTick(t *testing.T) {
	s := &Sequence{}
	if s.EndTick() != 0 {
		t.Fatal("empty sequence should end at 0")
	}
	s.Events = []Event{{Tick: 480}, {Tick: 100}}
	if s.EndTick() != 480 {
		t.Fatalf("EndTick = %d, want 480", s.EndTick())
	}
}

func TestErrorsCarryPosition(t *testing.T) {
	errs := []error{
		&SyntaxError{Pos: Position{Line: 3, Col: 7}, Msg: "boom"},
		&UnbalancedLoopError{Pos: Position{Line: 3, Col: 7}, Msg: "boom"},
		&MacroRecursionError{Pos: Position{Line: 3, Col: 7}, Name: "A"},
		&UndefinedMacroError{Pos: Position{Line: 3, Col: 7}, Name: "A"},
		&EmptyGroupError{Pos: Position{Line: 3, Col: 7}},
		&InvalidParameterError{Pos: Position{Line: 3, Col: 7}, Field: "octave", Value: 99},
		&VoiceReferenceError{Pos: Position{Line: 3, Col: 7}, Field: "voice", Value: 200},
	}
	for _, err := range errs {
		if !strings.Contains(err.Error(), "3:7") {
			t.Errorf("%T message lacks position: %q", err, err.Error())
		}
	}
}

func TestCommandParam(t *testing.T) {
	c := Command{Params: []Param{{Set: true, Value: 50}, {}}}
	if v, ok := c.Param(0); !ok || v != 50 {
		t.Fatalf("Param(0) = %d, %v", v, ok)
	}
	if _, ok := c.Param(1); ok {
		t.Fatal("unset slot reported as set")
	}
	if _, ok := c.Param(5); ok {
		t.Fatal("out-of-range slot reported as set")
	}
}

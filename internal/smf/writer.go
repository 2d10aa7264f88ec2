// Package smf renders a compiled sequence as a format-0 Standard MIDI
// File. It is an output sink for the compiler, not part of the
// interpreter core.
package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mmlc-dev/mmlc/mml"
)

const (
	noteOffStatus       = 0x80
	noteOnStatus        = 0x90
	controlChangeStatus = 0xB0
	programChangeStatus = 0xC0
	pitchWheelStatus    = 0xE0

	metaPrefix     = 0xFF
	metaTempo      = 0x51
	metaEndOfTrack = 0x2F
)

var (
	headerChunk = [4]byte{'M', 'T', 'h', 'd'}
	trackChunk  = [4]byte{'M', 'T', 'r', 'k'}
)

// Encode serializes seq as a single-track MIDI file. Voice ids map onto
// MIDI channels modulo 16.
func Encode(seq *mml.Sequence) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, seq); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Write(w io.Writer, seq *mml.Sequence) error {
	if seq.Resolution <= 0 || seq.Resolution%4 != 0 {
		return fmt.Errorf("smf: resolution %d is not a multiple of 4", seq.Resolution)
	}
	division := seq.Resolution / 4 // SMF division counts ticks per quarter note

	track, err := encodeTrack(seq)
	if err != nil {
		return err
	}

	if _, err := w.Write(headerChunk[:]); err != nil {
		return err
	}
	header := []uint16{0, 1, uint16(division)}
	if err := binary.Write(w, binary.BigEndian, uint32(6)); err != nil {
		return err
	}
	for _, v := range header {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.Write(trackChunk[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(track))); err != nil {
		return err
	}
	_, err = w.Write(track)
	return err
}

func encodeTrack(seq *mml.Sequence) ([]byte, error) {
	var out bytes.Buffer

	// Tempo meta event at tick 0.
	bpm := seq.TempoBPM
	if bpm <= 0 {
		bpm = 120
	}
	usPerQuarter := uint32(60000000 / bpm)
	out.WriteByte(0)
	out.Write([]byte{metaPrefix, metaTempo, 3,
		byte(usPerQuarter >> 16), byte(usPerQuarter >> 8), byte(usPerQuarter)})

	lastProgram := map[int]int{}
	prevTick := 0
	for _, e := range seq.Events {
		if e.Tick < prevTick {
			return nil, fmt.Errorf("smf: events not sorted (tick %d after %d)", e.Tick, prevTick)
		}
		delta := e.Tick - prevTick
		ch := byte(e.Voice % 16)
		switch e.Kind {
		case mml.EventNoteOn:
			if prog, ok := lastProgram[e.Voice]; !ok || prog != e.Program {
				writeVLQ(&out, uint32(delta))
				delta = 0
				out.Write([]byte{programChangeStatus | ch, byte(e.Program & 0x7F)})
				lastProgram[e.Voice] = e.Program
			}
			writeVLQ(&out, uint32(delta))
			out.Write([]byte{noteOnStatus | ch, byte(e.Note & 0x7F), byte(e.Velocity & 0x7F)})
		case mml.EventNoteOff:
			writeVLQ(&out, uint32(delta))
			out.Write([]byte{noteOffStatus | ch, byte(e.Note & 0x7F), 0x40})
		case mml.EventControlChange:
			writeVLQ(&out, uint32(delta))
			out.Write([]byte{controlChangeStatus | ch, byte(e.Controller & 0x7F), byte(e.Value & 0x7F)})
		case mml.EventPitchBend:
			bend := e.Value + 8192
			if bend < 0 {
				bend = 0
			}
			if bend > 0x3FFF {
				bend = 0x3FFF
			}
			writeVLQ(&out, uint32(delta))
			out.Write([]byte{pitchWheelStatus | ch, byte(bend & 0x7F), byte(bend >> 7)})
		default:
			return nil, fmt.Errorf("smf: unknown event kind %v", e.Kind)
		}
		prevTick = e.Tick
	}

	out.Write([]byte{0, metaPrefix, metaEndOfTrack, 0})
	return out.Bytes(), nil
}

// writeVLQ emits a MIDI variable-length quantity: every byte but the last
// carries a 1 in its most significant bit.
func writeVLQ(out *bytes.Buffer, v uint32) {
	var stack [5]byte
	n := 0
	for {
		stack[n] = byte(v & 0x7F)
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	for i := n - 1; i > 0; i-- {
		out.WriteByte(stack[i] | 0x80)
	}
	out.WriteByte(stack[0])
}

// Package synth renders a compiled sequence to stereo float32 samples with
// a minimal sine voice, enough to audition a compilation. It is a preview
// sink; fidelity is not a goal.
package synth

import (
	"math"

	"github.com/mmlc-dev/mmlc/mml"
)

const releaseTailSeconds = 0.25

type span struct {
	start int
	end   int
	freq  float64
	amp   float64
}

// Renderer produces interleaved stereo float32 buffers. It implements the
// audio package's Source and Finisher interfaces.
type Renderer struct {
	sampleRate int
	spans      []span
	head       int
	pos        int
	end        int
	gain       float64
	attack     int
}

// New schedules every note of seq at the sequence tempo. Events before
// seq.RenderFrom are skipped when from is true.
func New(seq *mml.Sequence, sampleRate int, from bool) *Renderer {
	bpm := seq.TempoBPM
	if bpm <= 0 {
		bpm = 120
	}
	ticksPerQuarter := seq.Resolution / 4
	if ticksPerQuarter <= 0 {
		ticksPerQuarter = 480
	}
	samplesPerTick := float64(sampleRate) * 60.0 / (bpm * float64(ticksPerQuarter))

	events := seq.Events
	baseTick := 0
	if from {
		events = seq.EventsFrom()
		baseTick = seq.RenderFrom
	}

	r := &Renderer{
		sampleRate: sampleRate,
		gain:       0.5,
		attack:     sampleRate * 5 / 1000,
	}
	type openKey struct{ voice, note int }
	open := map[openKey]int{}
	for _, e := range events {
		at := int(float64(e.Tick-baseTick) * samplesPerTick)
		switch e.Kind {
		case mml.EventNoteOn:
			open[openKey{e.Voice, e.Note}] = len(r.spans)
			r.spans = append(r.spans, span{
				start: at,
				end:   at, // fixed up by the matching NoteOff
				freq:  440.0 * math.Pow(2, float64(e.Note-69)/12.0),
				amp:   float64(e.Velocity) / 127.0,
			})
		case mml.EventNoteOff:
			if idx, ok := open[openKey{e.Voice, e.Note}]; ok {
				r.spans[idx].end = at
				delete(open, openKey{e.Voice, e.Note})
			}
		}
	}
	for _, s := range r.spans {
		if s.end > r.end {
			r.end = s.end
		}
	}
	r.end += int(releaseTailSeconds * float64(sampleRate))
	return r
}

func (r *Renderer) SetGain(gain float64) { r.gain = gain }

// TotalFrames returns the number of stereo frames until silence.
func (r *Renderer) TotalFrames() int { return r.end }

// Done reports whether every scheduled note has finished sounding.
func (r *Renderer) Done() bool { return r.pos >= r.end }

// Process fills dst with interleaved stereo samples, advancing the
// renderer's position. Past the end it writes silence.
func (r *Renderer) Process(dst []float32) {
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		var sum float64
		for r.head < len(r.spans) && r.spans[r.head].end <= r.pos {
			r.head++
		}
		for i := r.head; i < len(r.spans); i++ {
			s := r.spans[i]
			if s.start > r.pos {
				break
			}
			if s.end <= r.pos {
				continue
			}
			t := r.pos - s.start
			env := 1.0
			if r.attack > 0 && t < r.attack {
				env = float64(t) / float64(r.attack)
			}
			length := s.end - s.start
			if length > 0 {
				env *= math.Exp(-2.0 * float64(t) / float64(length))
			}
			phase := 2 * math.Pi * s.freq * float64(t) / float64(r.sampleRate)
			sum += math.Sin(phase) * s.amp * env
		}
		v := float32(sum * r.gain)
		dst[f*2] = v
		dst[f*2+1] = v
		r.pos++
	}
}

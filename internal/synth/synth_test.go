package synth

import (
	"testing"

	"github.com/mmlc-dev/mmlc/mml"
)

// 48 kHz at 120 bpm over a 1920-tick resolution gives exactly 50 samples
// per tick, which keeps the expected frame counts integral.
const testRate = 48000

func testSeq() *mml.Sequence {
	return &mml.Sequence{
		Resolution: 1920,
		TempoBPM:   120,
		Events: []mml.Event{
			{Tick: 0, Kind: mml.EventNoteOn, Note: 69, Velocity: 127},
			{Tick: 480, Kind: mml.EventNoteOff, Note: 69},
			{Tick: 960, Kind: mml.EventNoteOn, Note: 60, Velocity: 100},
			{Tick: 1440, Kind: mml.EventNoteOff, Note: 60},
		},
	}
}

func TestTotalFrames(t *testing.T) {
	r := New(testSeq(), testRate, false)
	// last note-off at tick 1440 plus the release tail
	want := 1440*50 + testRate/4
	if got := r.TotalFrames(); got != want {
		t.Fatalf("TotalFrames = %d, want %d", got, want)
	}
}

func TestProcessProducesAudio(t *testing.T) {
	r := New(testSeq(), testRate, false)
	buf := make([]float32, 4096)
	r.Process(buf)
	nonzero := 0
	for i, v := range buf {
		if v != 0 {
			nonzero++
		}
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
	}
	if nonzero == 0 {
		t.Fatal("expected audible samples in the first buffer")
	}
	// stereo: both channels carry the same signal
	for f := 0; f < len(buf)/2; f++ {
		if buf[f*2] != buf[f*2+1] {
			t.Fatalf("frame %d channels differ: %f vs %f", f, buf[f*2], buf[f*2+1])
		}
	}
}

func TestProcessRunsToDone(t *testing.T) {
	r := New(testSeq(), testRate, false)
	if r.Done() {
		t.Fatal("renderer done before processing")
	}
	buf := make([]float32, 2*testRate) // one second per call
	for i := 0; i < 10 && !r.Done(); i++ {
		r.Process(buf)
	}
	if !r.Done() {
		t.Fatal("renderer never finished")
	}
	// past the end only silence remains
	r.Process(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d not silent after end: %f", i, v)
		}
	}
}

func TestZeroGainSilences(t *testing.T) {
	r := New(testSeq(), testRate, false)
	r.SetGain(0)
	buf := make([]float32, 4096)
	r.Process(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d not silent at zero gain: %f", i, v)
		}
	}
}

func TestRenderFromSkipsPrefix(t *testing.T) {
	seq := testSeq()
	seq.RenderFrom = 960
	r := New(seq, testRate, true)
	want := 480*50 + testRate/4
	if got := r.TotalFrames(); got != want {
		t.Fatalf("TotalFrames = %d, want %d", got, want)
	}
}

func TestEmptySequence(t *testing.T) {
	r := New(&mml.Sequence{Resolution: 1920, TempoBPM: 120}, testRate, false)
	if got := r.TotalFrames(); got != testRate/4 {
		t.Fatalf("TotalFrames = %d, want just the release tail", got)
	}
	buf := make([]float32, 256)
	r.Process(buf)
	for _, v := range buf {
		if v != 0 {
			t.Fatal("empty sequence produced audio")
		}
	}
}

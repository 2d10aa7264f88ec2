package mml

// VoiceDefaults overrides the starting performance parameters for one voice.
type VoiceDefaults struct {
	Octave   int
	Length   int
	Velocity int
	Gate     int
	Timing   int
}

// Config carries every knob the caller may tune. Zero values are not usable
// directly; start from DefaultConfig.
type Config struct {
	// Resolution is the number of ticks per whole note.
	Resolution int
	// TempoBPM is consumed by the SMF and audio sinks only; the
	// interpreter itself works in ticks.
	TempoBPM float64

	DefaultOctave   int
	MinOctave       int
	MaxOctave       int
	DefaultLength   int
	DefaultVelocity int
	// DefaultGate is the percentage of a note's nominal duration that
	// actually sounds.
	DefaultGate      int
	DefaultTiming    int
	DefaultLoopCount int
	MaxMacroDepth    int
	// VelocityStep is the delta applied by the ')' and '(' shorthands
	// when they carry no explicit amount.
	VelocityStep int
	// RandomSeed drives the v/t randomization widths; a fixed seed keeps
	// compilation reproducible.
	RandomSeed int64

	// Voices overrides the starting state of individual voices; voices
	// not present here start from the Default* fields.
	Voices map[int]VoiceDefaults
}

func DefaultConfig() Config {
	return Config{
		Resolution:       1920,
		TempoBPM:         120,
		DefaultOctave:    5,
		MinOctave:        0,
		MaxOctave:        9,
		DefaultLength:    4,
		DefaultVelocity:  100,
		DefaultGate:      80,
		DefaultTiming:    0,
		DefaultLoopCount: 2,
		MaxMacroDepth:    64,
		VelocityStep:     8,
		RandomSeed:       1,
	}
}

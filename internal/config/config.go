// Package config loads compiler defaults from an HCL file. Every attribute
// is optional; absent attributes keep the values from mml.DefaultConfig.
//
//	resolution = 960
//	tempo_bpm  = 140
//	octave     = 4
//
//	voice "1" {
//	  velocity = 80
//	  gate     = 60
//	}
package config

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/mmlc-dev/mmlc/mml"
)

type fileSchema struct {
	Resolution    *int     `hcl:"resolution,optional"`
	TempoBPM      *float64 `hcl:"tempo_bpm,optional"`
	Octave        *int     `hcl:"octave,optional"`
	MinOctave     *int     `hcl:"min_octave,optional"`
	MaxOctave     *int     `hcl:"max_octave,optional"`
	Length        *int     `hcl:"length,optional"`
	Velocity      *int     `hcl:"velocity,optional"`
	Gate          *int     `hcl:"gate,optional"`
	Timing        *int     `hcl:"timing,optional"`
	LoopCount     *int     `hcl:"loop_count,optional"`
	MacroDepth    *int     `hcl:"macro_depth,optional"`
	VelocityStep  *int     `hcl:"velocity_step,optional"`
	RandomSeed    *int64   `hcl:"random_seed,optional"`
	Voices        []voiceBlock `hcl:"voice,block"`
}

type voiceBlock struct {
	ID       string `hcl:"id,label"`
	Octave   *int   `hcl:"octave,optional"`
	Length   *int   `hcl:"length,optional"`
	Velocity *int   `hcl:"velocity,optional"`
	Gate     *int   `hcl:"gate,optional"`
	Timing   *int   `hcl:"timing,optional"`
}

// Load reads path and overlays it onto mml.DefaultConfig.
func Load(path string) (mml.Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return mml.Config{}, fmt.Errorf("parsing %s: %w", path, diags)
	}
	return decode(file.Body)
}

// LoadBytes is Load for in-memory configuration, used by tests.
func LoadBytes(src []byte, filename string) (mml.Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return mml.Config{}, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (mml.Config, error) {
	cfg := mml.DefaultConfig()

	// Expose the built-in defaults to expressions, so a file can write
	// e.g. resolution = defaults.resolution * 2.
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"defaults": cty.ObjectVal(map[string]cty.Value{
				"resolution": cty.NumberIntVal(int64(cfg.Resolution)),
				"octave":     cty.NumberIntVal(int64(cfg.DefaultOctave)),
				"length":     cty.NumberIntVal(int64(cfg.DefaultLength)),
				"velocity":   cty.NumberIntVal(int64(cfg.DefaultVelocity)),
				"gate":       cty.NumberIntVal(int64(cfg.DefaultGate)),
			}),
		},
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(body, evalCtx, &schema); diags.HasErrors() {
		return mml.Config{}, fmt.Errorf("decoding config: %w", diags)
	}

	setInt(&cfg.Resolution, schema.Resolution)
	if schema.TempoBPM != nil {
		cfg.TempoBPM = *schema.TempoBPM
	}
	setInt(&cfg.DefaultOctave, schema.Octave)
	setInt(&cfg.MinOctave, schema.MinOctave)
	setInt(&cfg.MaxOctave, schema.MaxOctave)
	setInt(&cfg.DefaultLength, schema.Length)
	setInt(&cfg.DefaultVelocity, schema.Velocity)
	setInt(&cfg.DefaultGate, schema.Gate)
	setInt(&cfg.DefaultTiming, schema.Timing)
	setInt(&cfg.DefaultLoopCount, schema.LoopCount)
	setInt(&cfg.MaxMacroDepth, schema.MacroDepth)
	setInt(&cfg.VelocityStep, schema.VelocityStep)
	if schema.RandomSeed != nil {
		cfg.RandomSeed = *schema.RandomSeed
	}

	if len(schema.Voices) > 0 {
		cfg.Voices = make(map[int]mml.VoiceDefaults, len(schema.Voices))
		for _, vb := range schema.Voices {
			id, err := strconv.Atoi(vb.ID)
			if err != nil || id < 0 {
				return mml.Config{}, fmt.Errorf("voice block label %q: not a voice id", vb.ID)
			}
			var d mml.VoiceDefaults
			setInt(&d.Octave, vb.Octave)
			setInt(&d.Length, vb.Length)
			setInt(&d.Velocity, vb.Velocity)
			setInt(&d.Gate, vb.Gate)
			setInt(&d.Timing, vb.Timing)
			cfg.Voices[id] = d
		}
	}
	return cfg, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

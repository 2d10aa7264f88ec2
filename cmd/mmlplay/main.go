// mmlplay compiles an MML source and auditions it through a small sine
// synth, either on the audio device or offline into a WAV file.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mmlc-dev/mmlc"
	"github.com/mmlc-dev/mmlc/internal/audio"
	"github.com/mmlc-dev/mmlc/internal/config"
	"github.com/mmlc-dev/mmlc/internal/ctxlog"
	"github.com/mmlc-dev/mmlc/internal/synth"
	"github.com/mmlc-dev/mmlc/mml"
)

const defaultMML = "o5 l8 c d e f g a b > c"

func main() {
	var (
		mmlPath    = flag.String("file", "", "path to an MML file")
		mmlInline  = flag.String("mml", "", "inline MML string")
		configPath = flag.String("config", "", "path to an HCL config file")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		volume     = flag.Float64("volume", 0.5, "master volume scalar")
		wavPath    = flag.String("wav", "", "render offline to a WAV file instead of playing")
		fromMarker = flag.Bool("from", false, "start at the '?' play-from-here marker")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	src := defaultMML
	if strings.TrimSpace(*mmlInline) != "" {
		src = *mmlInline
	} else if strings.TrimSpace(*mmlPath) != "" {
		data, err := os.ReadFile(*mmlPath)
		if err != nil {
			log.Fatal(err)
		}
		src = string(data)
	}

	cfg := mml.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	seq, err := mmlc.Compile(ctx, src, cfg)
	if err != nil {
		log.Fatal(err)
	}
	renderer := synth.New(seq, *sampleRate, *fromMarker)
	renderer.SetGain(*volume)

	if *wavPath != "" {
		if err := offlineRender(renderer, *sampleRate, *wavPath); err != nil {
			log.Fatal(err)
		}
		logger.Info("rendered", "path", *wavPath)
		return
	}

	player, err := audio.NewPlayer(*sampleRate, renderer)
	if err != nil {
		log.Fatal(err)
	}
	player.Play()
	for !renderer.Done() {
		time.Sleep(50 * time.Millisecond)
	}
	if err := player.Stop(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("playback completed")
}

func offlineRender(renderer *synth.Renderer, sampleRate int, path string) error {
	samples := make([]float32, renderer.TotalFrames()*2)
	renderer.Process(samples)
	return os.WriteFile(path, encodeWAVFloat32LE(samples, sampleRate, 2), 0o644)
}

func encodeWAVFloat32LE(samples []float32, sampleRate, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

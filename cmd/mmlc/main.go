// mmlc compiles an MML source file to a JSON event dump or a standard
// MIDI file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mmlc-dev/mmlc"
	"github.com/mmlc-dev/mmlc/internal/config"
	"github.com/mmlc-dev/mmlc/internal/ctxlog"
	"github.com/mmlc-dev/mmlc/internal/smf"
	"github.com/mmlc-dev/mmlc/mml"
)

func main() {
	var (
		mmlPath    = flag.String("file", "", "path to an MML file")
		mmlInline  = flag.String("mml", "", "inline MML string")
		configPath = flag.String("config", "", "path to an HCL config file")
		outPath    = flag.String("o", "-", "output path ('-' = stdout)")
		format     = flag.String("format", "json", "output format: json|midi")
		fromMarker = flag.Bool("from", false, "emit only events after the '?' play-from-here marker")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	src, err := resolveInput(*mmlPath, *mmlInline)
	if err != nil {
		log.Fatal(err)
	}

	cfg := mml.DefaultConfig()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	seq, err := mmlc.Compile(ctx, src, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if *fromMarker {
		trimmed := *seq
		trimmed.Events = seq.EventsFrom()
		seq = &trimmed
	}

	var data []byte
	switch strings.ToLower(*format) {
	case "json":
		if data, err = json.MarshalIndent(seq, "", "  "); err != nil {
			log.Fatal(err)
		}
		data = append(data, '\n')
	case "midi":
		if data, err = smf.Encode(seq); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("invalid -format %q (expected json|midi)", *format)
	}

	if *outPath == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatal(err)
	}
	logger.Info("wrote output", "path", *outPath, "bytes", len(data), "events", len(seq.Events))
}

func resolveInput(path, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("provide -file or -mml")
}

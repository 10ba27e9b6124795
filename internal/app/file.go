package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Car-Role/Whisper-dictation/internal/asr"
	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/audio/ffmpeg"
	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/dispatch"
)

// FileOptions configures RunFile.
type FileOptions struct {
	Input string
	// Output is the transcript path. Empty writes <input>.txt next to the
	// input; "-" writes to Stdout.
	Output string
	Stdout io.Writer
	// Engine overrides the configured engine. RunFile closes it.
	Engine asr.Engine
}

// RunFile transcribes an existing recording. Inputs other than WAV are
// converted with ffmpeg first.
func RunFile(ctx context.Context, cfg config.Config, opts FileOptions, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "app")

	if _, err := os.Stat(opts.Input); err != nil {
		return "", fmt.Errorf("input %q: %w", opts.Input, err)
	}
	tempDir, err := config.ResolveTempDir(&cfg)
	if err != nil {
		return "", err
	}

	engine := opts.Engine
	if engine == nil {
		if engine, err = LoadEngine(ctx, cfg.Engine, cfg.Model, asr.Options{TempDir: tempDir, Logger: logger}); err != nil {
			return "", err
		}
	}
	d := dispatch.New(engine, nil, nil, dispatch.Config{Language: cfg.Language}, nil, logger)
	defer d.Close()

	wavPath := opts.Input
	if !strings.EqualFold(filepath.Ext(opts.Input), ".wav") {
		wavPath = audio.NewArtifactPath(tempDir)
		defer os.Remove(wavPath)
		conv := ffmpeg.Options{Codec: "pcm", Channels: 1, SampleRate: cfg.Audio.Rate}
		if err := ffmpeg.Convert(ctx, log, conv, opts.Input, wavPath); err != nil {
			return "", err
		}
	}

	res, err := d.Transcribe(ctx, wavPath)
	if err != nil {
		return "", err
	}
	log.Info("file transcribed", "input", opts.Input, "audio", res.AudioDuration, "chars", len(res.Text))

	switch opts.Output {
	case "-":
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		_, err = fmt.Fprintln(w, res.Text)
		return res.Text, err
	case "":
		opts.Output = strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input)) + ".txt"
	}
	if err := os.WriteFile(opts.Output, []byte(res.Text), 0o644); err != nil {
		return res.Text, fmt.Errorf("write transcript: %w", err)
	}
	log.Info("transcript written", "path", opts.Output)
	return res.Text, nil
}

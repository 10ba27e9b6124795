// Package ffmpeg transcodes WAV artifacts for upload backends that want a
// compressed container.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Options selects the output encoding.
type Options struct {
	Codec      string
	Channels   int
	SampleRate int
	BitRate    int // kbps
}

// Binary is the ffmpeg executable looked up on PATH.
var Binary = "ffmpeg"

// Args builds the ffmpeg command line for inPath -> outPath.
func Args(opts Options, inPath, outPath string) ([]string, error) {
	ffCodec, codecHasBitrate := codecFor(opts.Codec)
	if ffCodec == "" {
		return nil, fmt.Errorf("unsupported codec: %s", opts.Codec)
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = 1
	}
	bitrate := opts.BitRate
	if bitrate <= 0 {
		bitrate = 128
	}

	args := []string{"-y", "-loglevel", "error", "-i", inPath, "-ac", strconv.Itoa(channels)}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	args = append(args, "-c:a", ffCodec)
	if codecHasBitrate {
		args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate))
	}
	return append(args, outPath), nil
}

// Convert runs ffmpeg to produce outPath.
func Convert(ctx context.Context, logger *slog.Logger, opts Options, inPath, outPath string) error {
	args, err := Args(opts, inPath, outPath)
	if err != nil {
		return err
	}
	logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func codecFor(key string) (string, bool) {
	k := strings.ToLower(key)
	switch k {
	case "opus", "libopus":
		return "libopus", true
	case "aac":
		return "aac", true
	case "mp3":
		return "libmp3lame", true
	case "flac":
		return "flac", false
	case "pcm", "":
		return "pcm_s16le", false
	case "vorbis", "libvorbis":
		return "libvorbis", true
	case "pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_f32le":
		return k, false
	default:
		return "", false
	}
}

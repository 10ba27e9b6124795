package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
)

// WhisperSampleRate is the only rate whisper.cpp accepts.
const WhisperSampleRate = 16000

// ModelURL is the download location for ggml model files.
var ModelURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-%s.bin"

var binaryCandidates = []string{"whisper-cli", "whisper-cpp", "whisper"}

// WhisperCLIConfig configures the whisper.cpp command line engine.
type WhisperCLIConfig struct {
	Model     string
	ModelsDir string
	Binary    string
	Threads   int
	Prompt    string
	TempDir   string
}

// WhisperCLI runs the whisper.cpp CLI once per transcription.
type WhisperCLI struct {
	cfg       WhisperCLIConfig
	modelPath string
	log       *slog.Logger
}

// NewWhisperCLI resolves the model path and binary. The model file may be
// missing; call EnsureModel to fetch it.
func NewWhisperCLI(cfg WhisperCLIConfig, logger *slog.Logger) (*WhisperCLI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "tiny"
	}
	if cfg.ModelsDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve models dir: %w", err)
		}
		cfg.ModelsDir = filepath.Join(dir, "whisper-dictation", "models")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = min(runtime.NumCPU(), 4)
	}
	if cfg.Binary == "" {
		cfg.Binary = findBinary()
	}
	return &WhisperCLI{
		cfg:       cfg,
		modelPath: ModelPath(cfg.ModelsDir, cfg.Model),
		log:       logger.With("component", "asr.whisper", "model", cfg.Model),
	}, nil
}

// ModelPath returns the ggml file for model inside dir.
func ModelPath(dir, model string) string {
	return filepath.Join(dir, fmt.Sprintf("ggml-%s.bin", model))
}

func findBinary() string {
	for _, name := range binaryCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func (w *WhisperCLI) Name() string { return "whisper-cli:" + w.cfg.Model }

// ModelFile returns the resolved ggml model path.
func (w *WhisperCLI) ModelFile() string { return w.modelPath }

// EnsureModel downloads the model file when it is not present yet.
func (w *WhisperCLI) EnsureModel(ctx context.Context) error {
	if _, err := os.Stat(w.modelPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.modelPath), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	url := fmt.Sprintf(ModelURL, w.cfg.Model)
	w.log.Info("downloading model", "url", url, "path", w.modelPath)
	return download(ctx, url, w.modelPath, w.log)
}

func download(ctx context.Context, url, dest string, log *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	pw := &progressWriter{total: resp.ContentLength, log: log, last: time.Now()}
	if _, err := io.Copy(f, io.TeeReader(resp.Body, pw)); err != nil {
		_ = f.Close()
		return fmt.Errorf("download: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("model downloaded", "bytes", pw.written)
	return os.Rename(tmpPath, dest)
}

type progressWriter struct {
	total   int64
	written int64
	last    time.Time
	log     *slog.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.last) >= 2*time.Second {
		p.last = time.Now()
		if p.total > 0 {
			p.log.Info("download progress", "percent", p.written*100/p.total)
		} else {
			p.log.Info("download progress", "bytes", p.written)
		}
	}
	return len(b), nil
}

// Args returns the whisper.cpp arguments for one run.
func (w *WhisperCLI) Args(wavPath, outBase, language string) []string {
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-t", strconv.Itoa(w.cfg.Threads),
		"-oj", "-of", outBase,
		"-nt", "-np",
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	if w.cfg.Prompt != "" {
		args = append(args, "--prompt", w.cfg.Prompt)
	}
	return args
}

func (w *WhisperCLI) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	if w.cfg.Binary == "" {
		return Result{}, errors.New("whisper.cpp binary not found (set engine.binary)")
	}
	if sampleRate != WhisperSampleRate {
		return Result{}, fmt.Errorf("whisper.cpp needs %d Hz audio, got %d Hz", WhisperSampleRate, sampleRate)
	}
	if _, err := os.Stat(w.modelPath); err != nil {
		return Result{}, fmt.Errorf("model %s: %w", w.cfg.Model, err)
	}

	wavBytes, err := audio.EncodeMonoWAV(samples, sampleRate)
	if err != nil {
		return Result{}, err
	}
	wavPath := audio.NewArtifactPath(w.cfg.TempDir)
	outBase := strings.TrimSuffix(wavPath, ".wav")
	jsonPath := outBase + ".json"
	defer os.Remove(wavPath)
	defer os.Remove(jsonPath)
	if err := os.WriteFile(wavPath, wavBytes, 0o644); err != nil {
		return Result{}, fmt.Errorf("write whisper input: %w", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, w.cfg.Binary, w.Args(wavPath, outBase, language)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("whisper.cpp failed: %w: %s", err, lastLine(stderr.String()))
	}

	out, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}
	text := ParseWhisperJSON(out)
	w.log.Debug("whisper finished", "duration", time.Since(start), "chars", len(text))
	return Result{Text: text, Language: language, Elapsed: time.Since(start)}, nil
}

// ParseWhisperJSON joins the segment texts of a whisper.cpp -oj document.
func ParseWhisperJSON(doc []byte) string {
	var sb strings.Builder
	for _, seg := range gjson.GetBytes(doc, "transcription.#.text").Array() {
		sb.WriteString(seg.String())
	}
	return strings.TrimSpace(sb.String())
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (w *WhisperCLI) Close() error { return nil }

package asr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"golang.org/x/net/http2"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/audio/ffmpeg"
	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// RetryExhaustedError is returned once every upload attempt failed.
type RetryExhaustedError struct {
	Attempts int
	MaxRetry int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("exceeded max retries (%d/%d): %v", e.Attempts, e.MaxRetry, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// StatusError is a non-200 response from the endpoint.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, formatResponse(e.Body))
}

// HTTPEngine uploads audio as multipart form data to an OpenAI-compatible or
// custom transcription endpoint.
type HTTPEngine struct {
	cfg        config.EngineConfig
	model      string
	httpClient *http.Client
	extra      map[string]any
	tempDir    string
	log        *slog.Logger
}

// NewHTTP creates the engine and parses cfg.Extra.
func NewHTTP(cfg config.EngineConfig, model string, httpClient *http.Client, tempDir string, logger *slog.Logger) (*HTTPEngine, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("API endpoint is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &HTTPEngine{
		cfg:        cfg,
		model:      model,
		httpClient: httpClient,
		tempDir:    tempDir,
		log:        logger.With("component", "asr.http"),
	}
	if cfg.Extra != "" {
		e.extra = make(map[string]any)
		if err := sonic.UnmarshalString(cfg.Extra, &e.extra); err != nil {
			return nil, fmt.Errorf("invalid extra JSON: %w", err)
		}
	}
	if e.httpClient == nil {
		e.httpClient = newHTTPClient(cfg)
	}
	return e, nil
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// Transcribe encodes samples, transcodes them when a container other than wav
// is configured, and uploads with exponential backoff.
func (e *HTTPEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	start := time.Now()
	payload, filename, err := e.encode(ctx, samples, sampleRate)
	if err != nil {
		return Result{}, err
	}
	body, err := e.uploadWithRetry(ctx, payload, filename, language)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:     ExtractText(body, e.cfg.TextPath),
		Language: language,
		Elapsed:  time.Since(start),
	}, nil
}

func (e *HTTPEngine) encode(ctx context.Context, samples []float32, sampleRate int) ([]byte, string, error) {
	wavBytes, err := audio.EncodeMonoWAV(samples, sampleRate)
	if err != nil {
		return nil, "", err
	}
	ext := config.ContainerExt(e.cfg.Container)
	if ext == "wav" {
		return wavBytes, "audio.wav", nil
	}

	inPath := audio.NewArtifactPath(e.tempDir)
	outPath := strings.TrimSuffix(inPath, ".wav") + "." + ext
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, wavBytes, 0o644); err != nil {
		return nil, "", fmt.Errorf("write transcode input: %w", err)
	}
	opts := ffmpeg.Options{Codec: e.cfg.Codec, Channels: 1, SampleRate: sampleRate, BitRate: e.cfg.BitRate}
	if err := ffmpeg.Convert(ctx, e.log, opts, inPath, outPath); err != nil {
		return nil, "", err
	}
	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, "", fmt.Errorf("read transcoded audio: %w", err)
	}
	return out, "audio." + ext, nil
}

func (e *HTTPEngine) uploadWithRetry(ctx context.Context, payload []byte, filename, language string) ([]byte, error) {
	maxRetry := max(e.cfg.MaxRetry, 1)
	delay := time.Duration(e.cfg.RetryBaseDelay * float64(time.Second))

	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := e.doUpload(ctx, payload, filename, language)
		if err == nil {
			return body, nil
		}
		lastErr = err
		e.log.Warn("upload attempt failed", "attempt", attempt, "error", err)

		if attempt >= maxRetry {
			return nil, &RetryExhaustedError{Attempts: attempt, MaxRetry: maxRetry, Last: lastErr}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (e *HTTPEngine) doUpload(ctx context.Context, payload []byte, filename, language string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}

	fields := make(map[string]any, len(e.extra)+3)
	if e.model != "" {
		fields["model"] = e.model
	}
	if language != "" {
		fields["language"] = language
	}
	if e.cfg.Prompt != "" {
		fields["prompt"] = e.cfg.Prompt
	}
	for k, v := range e.extra {
		fields[k] = v
	}
	for k, v := range fields {
		if err := writer.WriteField(k, formValue(v)); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	req.Header.Set("User-Agent", "whisper-dictation/1.0")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	e.log.Debug("upload finished", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(payload))
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

func formValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", val)
	default:
		if b, err := sonic.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	}
}

func newHTTPClient(cfg config.EngineConfig) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30
	}
	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(timeout) * time.Second,
	}
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}
	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}

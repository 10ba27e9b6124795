package asr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// OpenAIEngine calls the audio transcription endpoint of OpenAI or a
// compatible server.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	prompt string
	log    *slog.Logger
}

// NewOpenAI creates the engine. BaseURL redirects to compatible servers.
func NewOpenAI(cfg config.EngineConfig, model string, logger *slog.Logger) (*OpenAIEngine, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai engine needs an api key or a base url")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = newHTTPClient(cfg)

	if model == "" || !isRemoteModel(model) {
		model = openai.Whisper1
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		prompt: cfg.Prompt,
		log:    logger.With("component", "asr.openai"),
	}, nil
}

// Local whisper variants have no remote counterpart.
func isRemoteModel(model string) bool {
	for _, m := range config.Models {
		if m == model {
			return false
		}
	}
	return true
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	wavBytes, err := audio.EncodeMonoWAV(samples, sampleRate)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wavBytes),
		Prompt:   e.prompt,
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Result{}, err
	}
	e.log.Debug("transcription received", "model", e.model, "duration", time.Since(start))
	lang := resp.Language
	if lang == "" {
		lang = language
	}
	return Result{Text: resp.Text, Language: lang, Elapsed: time.Since(start)}, nil
}

func (e *OpenAIEngine) Close() error { return nil }

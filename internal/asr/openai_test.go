package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

func TestOpenAIEngineTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer server.Close()

	ec := config.DefaultConfig().Engine
	ec.APIKey = "sk-test"
	ec.BaseURL = server.URL + "/v1"
	// local variant names fall back to whisper-1
	engine, err := NewOpenAI(ec, "tiny", logging.Discard())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	res, err := engine.Transcribe(context.Background(), []float32{0.1, 0.2}, 16000, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Language != "en" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewOpenAIRequiresCredentials(t *testing.T) {
	if _, err := NewOpenAI(config.EngineConfig{}, "", logging.Discard()); err == nil {
		t.Fatalf("expected error without api key or base url")
	}
}

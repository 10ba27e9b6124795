package asr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

func testEngineConfig(url string) config.EngineConfig {
	cfg := config.DefaultConfig().Engine
	cfg.Kind = config.EngineHTTP
	cfg.Endpoint = url
	cfg.TextPath = "text"
	cfg.MaxRetry = 2
	cfg.RetryBaseDelay = 0
	cfg.RequestTimeout = 2
	return cfg
}

func TestTranscribeRetryExhaustedError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("fail"))
	}))
	defer server.Close()

	cfg := testEngineConfig(server.URL)
	engine, err := NewHTTP(cfg, "whisper-1", &http.Client{Timeout: time.Second}, t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}

	_, err = engine.Transcribe(context.Background(), []float32{0, 0.1}, 16000, "en")
	if err == nil {
		t.Fatalf("expected error")
	}

	var re *RetryExhaustedError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetryExhaustedError, got %T: %v", err, err)
	}
	if re.Attempts != cfg.MaxRetry {
		t.Fatalf("expected attempts %d, got %d", cfg.MaxRetry, re.Attempts)
	}
	if re.MaxRetry != cfg.MaxRetry {
		t.Fatalf("expected MaxRetry %d, got %d", cfg.MaxRetry, re.MaxRetry)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped StatusError 500, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hit %d times, want 2", hits.Load())
	}
}

func TestTranscribeSendsFormAndExtractsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "fr" || r.FormValue("temperature") != "0.2" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		clip, err := audio.DecodeReader(bytes.NewReader(data))
		if err != nil || hdr.Filename != "audio.wav" || len(clip.Samples) != 3 {
			t.Errorf("bad upload: name=%s err=%v", hdr.Filename, err)
		}
		_, _ = w.Write([]byte(`{"results":[{"transcript":"bonjour"}]}`))
	}))
	defer server.Close()

	cfg := testEngineConfig(server.URL)
	cfg.APIKey = "secret"
	cfg.TextPath = "results[0].transcript"
	cfg.Extra = `{"temperature": 0.2}`
	engine, err := NewHTTP(cfg, "whisper-1", nil, t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}

	res, err := engine.Transcribe(context.Background(), []float32{0, 0.5, -0.5}, 16000, "fr")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if res.Text != "bonjour" {
		t.Fatalf("Text = %q", res.Text)
	}
}

func TestNewHTTPRejectsBadExtra(t *testing.T) {
	cfg := testEngineConfig("http://localhost")
	cfg.Extra = "{not json"
	if _, err := NewHTTP(cfg, "", nil, "", logging.Discard()); err == nil {
		t.Fatalf("expected error for invalid extra JSON")
	}
}

func TestNewForModelSelectsKind(t *testing.T) {
	ec := config.DefaultConfig().Engine
	ec.Kind = config.EngineStub
	ec.StubText = "hi"
	e, err := NewForModel(ec, "tiny", Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewForModel: %v", err)
	}
	if e.Name() != "stub" {
		t.Fatalf("Name() = %q", e.Name())
	}
	ec.Kind = "vosk"
	if _, err := NewForModel(ec, "tiny", Options{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

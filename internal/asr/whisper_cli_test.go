package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

func TestParseWhisperJSON(t *testing.T) {
	doc := []byte(`{"transcription":[{"text":" hello"},{"text":" world "}]}`)
	if got := ParseWhisperJSON(doc); got != "hello world" {
		t.Fatalf("ParseWhisperJSON = %q", got)
	}
	if got := ParseWhisperJSON([]byte(`{}`)); got != "" {
		t.Fatalf("empty document = %q", got)
	}
}

func TestWhisperCLIArgs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWhisperCLI(WhisperCLIConfig{Model: "base", ModelsDir: dir, Binary: "whisper-cli", Threads: 2}, logging.Discard())
	if err != nil {
		t.Fatalf("NewWhisperCLI: %v", err)
	}
	if w.ModelFile() != filepath.Join(dir, "ggml-base.bin") {
		t.Fatalf("ModelFile = %q", w.ModelFile())
	}
	got := strings.Join(w.Args("in.wav", "out", "en"), " ")
	want := "-m " + filepath.Join(dir, "ggml-base.bin") + " -f in.wav -t 2 -oj -of out -nt -np -l en"
	if got != want {
		t.Fatalf("Args = %q\nwant   %q", got, want)
	}
}

func TestWhisperCLIRejectsWrongRate(t *testing.T) {
	w, _ := NewWhisperCLI(WhisperCLIConfig{ModelsDir: t.TempDir(), Binary: "whisper-cli"}, logging.Discard())
	if _, err := w.Transcribe(context.Background(), []float32{0}, 44100, "en"); err == nil {
		t.Fatalf("expected error for 44.1 kHz input")
	}
}

func TestEnsureModelDownloadsOnce(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if !strings.HasSuffix(r.URL.Path, "/ggml-tiny.bin") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer server.Close()

	orig := ModelURL
	ModelURL = server.URL + "/ggml-%s.bin"
	defer func() { ModelURL = orig }()

	w, _ := NewWhisperCLI(WhisperCLIConfig{Model: "tiny", ModelsDir: filepath.Join(t.TempDir(), "models")}, logging.Discard())
	for i := 0; i < 2; i++ {
		if err := w.EnsureModel(context.Background()); err != nil {
			t.Fatalf("EnsureModel: %v", err)
		}
	}
	data, err := os.ReadFile(w.ModelFile())
	if err != nil || string(data) != "model-bytes" {
		t.Fatalf("model file = %q err=%v", data, err)
	}
	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}
}

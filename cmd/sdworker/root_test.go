package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sdworker/internal/config"
	"sdworker/pkg/types"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestResolveConfigLayers(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "cfg.yaml")
	if err := os.WriteFile(p, []byte("local_url: http://file:1/sdapi/v1\naddr: :9000\nconcurrency: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--config", p, "--addr", ":9100", "--cors-origins", "http://a, http://b"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	f := cliFlags{configPath: p, addr: ":9100", corsOrigins: "http://a, http://b"}
	env := map[string]string{"SDWORKER_CONCURRENCY": "3"}
	cfg, err := resolveConfig(cmd, f, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.LocalURL != "http://file:1/sdapi/v1" {
		t.Fatalf("file value lost: %q", cfg.LocalURL)
	}
	if cfg.Concurrency != 3 {
		t.Fatalf("env should override file: %d", cfg.Concurrency)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("flag should override file: %q", cfg.Addr)
	}
	if !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("cors flags: %+v", cfg)
	}
	if cfg.MaxRetries != config.DefaultMaxRetries {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestResolveConfigInvalid(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--local-url", "ftp://nope"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := resolveConfig(cmd, cliFlags{localURL: "ftp://nope"}, func(string) string { return "" }); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level not applied: %s", buf.String())
	}
	if _, err := newLogger(config.Config{LogLevel: "loud"}, io.Discard); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("version output=%q", out.String())
	}
}

// fakeWebUI mimics the local image API: GET probes, /options and /txt2img.
type fakeWebUI struct {
	probes  int32
	options atomic.Value
	prompts chan string
}

func (f *fakeWebUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/sdapi/v1/txt2img":
		atomic.AddInt32(&f.probes, 1)
		w.WriteHeader(http.StatusMethodNotAllowed)
	case r.Method == http.MethodPost && r.URL.Path == "/sdapi/v1/options":
		var o types.Options
		_ = json.NewDecoder(r.Body).Decode(&o)
		f.options.Store(o)
		_, _ = io.WriteString(w, "null")
	case r.Method == http.MethodPost && r.URL.Path == "/sdapi/v1/txt2img":
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		p, _ := req["prompt"].(string)
		f.prompts <- p
		_, _ = io.WriteString(w, `{"images":["aW1n"],"info":"ok"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRunStartupSequenceWithTestInput(t *testing.T) {
	ui := &fakeWebUI{prompts: make(chan string, 1)}
	srv := httptest.NewServer(ui)
	defer srv.Close()

	cfg := config.Config{LocalURL: srv.URL + "/sdapi/v1", Checkpoint: "other.safetensors"}.WithDefaults()
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := run(ctx, cfg, runOptions{testInput: `{"input":{"prompt":"a cat"}}`, stdout: &out}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if atomic.LoadInt32(&ui.probes) != 1 {
		t.Fatalf("expected one readiness probe, got %d", ui.probes)
	}
	o, ok := ui.options.Load().(types.Options)
	if !ok || o.SDModelCheckpoint != "other.safetensors" || o.CLIPStopAtLastLayers != 2 {
		t.Fatalf("settings push: %+v", o)
	}
	if got := <-ui.prompts; got != "a cat" {
		t.Fatalf("prompt=%q", got)
	}
	if strings.TrimSpace(out.String()) != `{"output":{"images":["aW1n"],"info":"ok"}}` {
		t.Fatalf("stdout=%q", out.String())
	}
}

func TestRunCanceledWhileProbing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.Config{LocalURL: url, ProbeIntervalSec: 0.01}.WithDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	if err := run(ctx, cfg, runOptions{testInput: `{"input":{}}`, stdout: io.Discard}, zerolog.New(io.Discard)); err != nil {
		t.Fatalf("canceled startup should exit cleanly: %v", err)
	}
}

func TestRunProbeMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.Config{LocalURL: url, ProbeIntervalSec: 0.01, ProbeMaxWaitSec: 0.05}.WithDefaults()
	if err := run(context.Background(), cfg, runOptions{testInput: `{"input":{}}`, stdout: io.Discard}, zerolog.New(io.Discard)); err == nil {
		t.Fatalf("expected error when the local API never comes up")
	}
}

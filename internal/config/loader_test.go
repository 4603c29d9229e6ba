package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "local_url: http://sd:7860/sdapi/v1\nmax_retries: 3\nretry_statuses: [503]\nconcurrency: 2\nsd_model_checkpoint: m.safetensors\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LocalURL != "http://sd:7860/sdapi/v1" || cfg.MaxRetries != 3 || len(cfg.RetryStatuses) != 1 || cfg.Concurrency != 2 || cfg.Checkpoint != "m.safetensors" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","infer_timeout_sec":30,"probe_interval_sec":0.5,"log_level":"debug"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.InferTimeout() != 30*time.Second || cfg.ProbeInterval() != 500*time.Millisecond || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nbackoff_factor_sec=0.25\ncors_enabled=true\ncors_allowed_origins=[\"*\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.BackoffFactor() != 250*time.Millisecond || !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := writeTempFile(t, d, "bad.json", "{")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.LocalURL != DefaultLocalURL {
		t.Fatalf("local url=%q", cfg.LocalURL)
	}
	if cfg.ProbeTimeout() != 120*time.Second || cfg.ProbeInterval() != 200*time.Millisecond {
		t.Fatalf("probe timings: %v %v", cfg.ProbeTimeout(), cfg.ProbeInterval())
	}
	if cfg.ProbeMaxWait() != 0 {
		t.Fatalf("probe max wait should default to unlimited, got %v", cfg.ProbeMaxWait())
	}
	if cfg.InferTimeout() != 600*time.Second {
		t.Fatalf("infer timeout=%v", cfg.InferTimeout())
	}
	if cfg.MaxRetries != 10 || cfg.BackoffFactor() != 100*time.Millisecond {
		t.Fatalf("retry policy: %d %v", cfg.MaxRetries, cfg.BackoffFactor())
	}
	if len(cfg.RetryStatuses) != 3 || cfg.RetryStatuses[0] != 502 || cfg.RetryStatuses[2] != 504 {
		t.Fatalf("retry statuses=%v", cfg.RetryStatuses)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{LocalURL: "http://h:1/api/", MaxRetries: -1, Concurrency: 4}.WithDefaults()
	if cfg.LocalURL != "http://h:1/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.LocalURL)
	}
	if cfg.MaxRetries != -1 || cfg.Concurrency != 4 {
		t.Fatalf("explicit values replaced: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"bad url", Config{LocalURL: "127.0.0.1:3000"}},
		{"bad status", Config{RetryStatuses: []int{42}}},
		{"bad log format", Config{LogFormat: "xml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.WithDefaults().Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SDWORKER_LOCAL_URL":          "http://other:3000/sdapi/v1",
		"SDWORKER_CONCURRENCY":        "3",
		"SDWORKER_MAX_RETRIES":        "5",
		"SDWORKER_PROBE_MAX_WAIT_SEC": "60",
	}
	cfg := Config{}
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.LocalURL != "http://other:3000/sdapi/v1" || cfg.Concurrency != 3 || cfg.MaxRetries != 5 || cfg.ProbeMaxWaitSec != 60 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	env["SDWORKER_CONCURRENCY"] = "many"
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected error for non-numeric concurrency")
	}
}

func TestLoadDotEnv(t *testing.T) {
	d := t.TempDir()
	if err := LoadDotEnv(filepath.Join(d, "absent.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	p := writeTempFile(t, d, "test.env", "SDWORKER_DOTENV_PROBE=yes\n")
	t.Setenv("SDWORKER_DOTENV_PROBE", "")
	os.Unsetenv("SDWORKER_DOTENV_PROBE")
	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("SDWORKER_DOTENV_PROBE"); got != "yes" {
		t.Fatalf("expected variable from dotenv, got %q", got)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sdworker/internal/config"
	"sdworker/internal/httpapi"
	"sdworker/internal/sdapi"
	"sdworker/internal/serverless"
	"sdworker/internal/worker"
	"sdworker/pkg/types"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type cliFlags struct {
	configPath   string
	localURL     string
	addr         string
	testInput    string
	logLevel     string
	logFormat    string
	corsOrigins  string
	serveAPI     bool
	concurrency  int
	probeMaxWait float64
}

func newRootCmd() *cobra.Command {
	var f cliFlags
	root := &cobra.Command{
		Use:           "sdworker",
		Short:         "Serverless txt2img worker in front of a local Stable Diffusion API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, runOptions{testInput: f.testInput, serveAPI: f.serveAPI, stdout: os.Stdout}, log)
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	fl.StringVar(&f.localURL, "local-url", "", "Base URL of the local image API (default "+config.DefaultLocalURL+")")
	fl.BoolVar(&f.serveAPI, "serve-api", false, "Serve the local test API instead of polling the platform")
	fl.StringVar(&f.addr, "addr", "", "Listen address for --serve-api (default "+config.DefaultAddr+")")
	fl.StringVar(&f.testInput, "test-input", "", `Run one job from a JSON event, e.g. '{"input":{"prompt":"a cat"}}'`)
	fl.IntVar(&f.concurrency, "concurrency", 0, "Parallel job pollers (default 1)")
	fl.Float64Var(&f.probeMaxWait, "probe-max-wait", 0, "Give up waiting for the local API after this many seconds (0 waits forever)")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: json|console")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated CORS origins for --serve-api (enables CORS)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// resolveConfig layers defaults < file < environment < flags.
func resolveConfig(cmd *cobra.Command, f cliFlags, getenv func(string) string) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("local-url") {
		cfg.LocalURL = f.localURL
	}
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("probe-max-wait") {
		cfg.ProbeMaxWaitSec = f.probeMaxWait
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("cors-origins") {
		cfg.CORSEnabled = true
		cfg.CORSAllowedOrigins = splitCSV(f.corsOrigins)
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "sdworker").Logger(), nil
}

type runOptions struct {
	testInput string
	serveAPI  bool
	stdout    io.Writer
	getenv    func(string) string
}

// run waits for the local API, pushes default settings and then hands jobs
// to the handler until ctx is done.
func run(ctx context.Context, cfg config.Config, opts runOptions, log zerolog.Logger) error {
	client := sdapi.NewClient(sdapi.Config{
		BaseURL:        cfg.LocalURL,
		InferTimeout:   cfg.InferTimeout(),
		OptionsTimeout: cfg.OptionsTimeout(),
		Retry: sdapi.RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor(),
			StatusCodes:   cfg.RetryStatuses,
		},
		Logger: log.With().Str("component", "sdapi").Logger(),
	})

	prober := &sdapi.Prober{
		Timeout:  cfg.ProbeTimeout(),
		Interval: cfg.ProbeInterval(),
		MaxWait:  cfg.ProbeMaxWait(),
		Logger:   log.With().Str("component", "probe").Logger(),
	}
	if err := prober.Wait(ctx, client.URL("/txt2img")); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	settings := types.DefaultOptions()
	if cfg.Checkpoint != "" {
		settings.SDModelCheckpoint = cfg.Checkpoint
	}
	worker.ApplyDefaultSettings(ctx, client, settings, log)
	log.Info().Str("local_url", cfg.LocalURL).Msg("local image API is ready, starting worker")

	httpapi.SetLogger(log.With().Str("component", "httpapi").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	h := worker.NewHandler(worker.NewForwarder(client, log.With().Str("component", "forwarder").Logger()), log)
	return serverless.Start(ctx, h, serverless.Options{
		TestInput:   opts.testInput,
		ServeAPI:    opts.serveAPI,
		Addr:        cfg.Addr,
		Concurrency: cfg.Concurrency,
		Getenv:      opts.getenv,
		Stdout:      opts.stdout,
		Logger:      log.With().Str("component", "runtime").Logger(),
	})
}

// splitCSV splits a comma-separated list, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Command emotion-engine is the main entry point for the emotion engine
// server: speech-to-text transcription plus multimodal emotion classification
// with blended modulation output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sainte-ai/emotion-engine/internal/config"
	"github.com/sainte-ai/emotion-engine/internal/health"
	"github.com/sainte-ai/emotion-engine/internal/observe"
	"github.com/sainte-ai/emotion-engine/internal/resilience"
	"github.com/sainte-ai/emotion-engine/internal/server"
	"github.com/sainte-ai/emotion-engine/internal/session"
	sessionpg "github.com/sainte-ai/emotion-engine/internal/session/postgres"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
	llmscorer "github.com/sainte-ai/emotion-engine/pkg/provider/scorer/llm"
	scorermock "github.com/sainte-ai/emotion-engine/pkg/provider/scorer/mock"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer/remote"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer/rule"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt"
	sttmock "github.com/sainte-ai/emotion-engine/pkg/provider/stt/mock"
	sttopenai "github.com/sainte-ai/emotion-engine/pkg/provider/stt/openai"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt/whisper"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "emotion-engine: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "emotion-engine: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("emotion-engine starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "emotion-engine",
		ServiceVersion: "1.0",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	transcriber, sc, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Session trajectory store ──────────────────────────────────────────────
	store, checkers, err := buildSessionStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise session store", "err", err)
		return 1
	}
	defer store.Close()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(transcriber, sc,
		server.WithSessionStore(store),
		server.WithTuning(cfg.Blend.Tuning()),
	)

	mux := http.NewServeMux()
	srv.Register(mux)
	health.New(checkers).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := observe.Middleware(observe.DefaultMetrics())(server.CORS(mux))

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.BlendChanged {
			srv.SetTuning(d.NewTuning)
		}
		if d.ProvidersChanged {
			slog.Warn("provider configuration changed — restart required to apply")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.Server.TLS != nil {
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		return sttmock.New(optString(entry.Options, "text")), nil
	})

	// ── Scorer ────────────────────────────────────────────────────────────────

	reg.RegisterScorer("rule", func(entry config.ProviderEntry) (scorer.Provider, error) {
		var opts []rule.Option
		if th := optFloat(entry.Options, "fuzzy_threshold"); th > 0 {
			opts = append(opts, rule.WithFuzzyThreshold(th))
		}
		return rule.New(opts...), nil
	})

	reg.RegisterScorer("llm", func(entry config.ProviderEntry) (scorer.Provider, error) {
		backend := optString(entry.Options, "backend")
		if backend == "" {
			backend = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return llmscorer.New(backend, entry.Model, opts...)
	})

	reg.RegisterScorer("remote", func(entry config.ProviderEntry) (scorer.Provider, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("remote scorer requires base_url")
		}
		return remote.New(entry.BaseURL), nil
	})

	reg.RegisterScorer("mock", func(entry config.ProviderEntry) (scorer.Provider, error) {
		return scorermock.New([3]float64{1, 1, 1}), nil
	})
}

// buildProviders instantiates the configured transcriber and scorer.
// The transcriber is optional. The scorer falls back to the local rule scorer
// when unconfigured; a configured non-rule scorer is wrapped in a fallback
// group with the rule scorer as the last resort, since the rule scorer is
// local and cannot fail for operational reasons.
func buildProviders(cfg *config.Config, reg *config.Registry) (stt.Transcriber, scorer.Provider, error) {
	var transcriber stt.Transcriber
	if name := cfg.Providers.STT.Name; name != "" {
		t, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		// A single-backend fallback group still circuit-breaks a flapping
		// transcriber instead of hammering it on every upload.
		transcriber = resilience.NewSTTFallback(t, name, resilience.FallbackConfig{})
		slog.Info("provider created", "kind", "stt", "name", name)
	} else {
		slog.Warn("no stt provider configured — /api/transcribe will be unavailable")
	}

	name := cfg.Providers.Scorer.Name
	if name == "" {
		slog.Warn("no scorer provider configured — using the rule scorer")
		return transcriber, rule.New(), nil
	}

	sc, err := reg.CreateScorer(cfg.Providers.Scorer)
	if err != nil {
		return nil, nil, fmt.Errorf("create scorer provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "scorer", "name", name)

	if name != "rule" {
		fb := resilience.NewScorerFallback(sc, name, resilience.FallbackConfig{})
		fb.AddFallback("rule", rule.New())
		return transcriber, fb, nil
	}
	return transcriber, sc, nil
}

// buildSessionStore creates the trajectory store and the readiness checkers
// that probe it.
func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, []health.Checker, error) {
	if dsn := cfg.Session.PostgresDSN; dsn != "" {
		store, err := sessionpg.NewStore(ctx, dsn, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("session store connected", "backend", "postgres")
		return store, []health.Checker{
			{Name: "session_store", Check: store.Ping},
		}, nil
	}

	opts := []session.MemoryOption{session.WithMetrics(observe.DefaultMetrics())}
	if cfg.Session.TTL > 0 {
		opts = append(opts, session.WithTTL(cfg.Session.TTL))
	}
	slog.Info("session store initialised", "backend", "memory")
	return session.NewMemory(opts...), nil, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     emotion-engine — startup summary  ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Scorer", cfg.Providers.Scorer.Name, cfg.Providers.Scorer.Model)
	tuning := cfg.Blend.Tuning()
	fmt.Printf("║  Sharpness       : %-19.2f ║\n", tuning.Sharpness)
	fmt.Printf("║  Retention       : %-19.2f ║\n", tuning.Retention)
	if cfg.Session.PostgresDSN != "" {
		fmt.Printf("║  Sessions        : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Sessions        : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// slogLevel converts a config.LogLevel to a slog.Level.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// bare numbers as int or float64 depending on their spelling, so both are
// accepted. Returns 0 when absent or non-numeric.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

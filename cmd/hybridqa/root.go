package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dataloom/hybridqa/agent"
	"github.com/dataloom/hybridqa/batch"
	"github.com/dataloom/hybridqa/corpus"
	"github.com/dataloom/hybridqa/graph"
	"github.com/dataloom/hybridqa/graph/emit"
	"github.com/dataloom/hybridqa/graph/model"
	"github.com/dataloom/hybridqa/graph/model/anthropic"
	"github.com/dataloom/hybridqa/graph/model/google"
	"github.com/dataloom/hybridqa/graph/model/openai"
	"github.com/dataloom/hybridqa/graph/store"
	"github.com/dataloom/hybridqa/sqldata"
)

var (
	batchPath  string
	outPath    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "hybridqa",
	Short: "Answer questions over documents and a SQL database",
	Long: `hybridqa reads newline-delimited JSON questions, routes each one
to document retrieval, SQL generation, or both, and writes one answer
record per question with citations.`,
	RunE: runBatch,
}

func init() {
	rootCmd.Flags().StringVar(&batchPath, "batch", "questions.jsonl", "input NDJSON file of questions")
	rootCmd.Flags().StringVar(&outPath, "out", "outputs.jsonl", "output NDJSON file of answer records")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	docs, err := corpus.LoadDir(cfg.CorpusDir)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	source, err := sqldata.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer source.Close()

	chat, err := newChatModel(ctx, cfg)
	if err != nil {
		return err
	}

	st, cleanup, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	emitter := newEmitter(cfg)

	var metrics *graph.Metrics
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = graph.NewMetrics(registry)
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	workflow, err := agent.New(ctx, agent.Config{
		Model:       chat,
		Source:      source,
		Docs:        docs,
		Store:       st,
		Emitter:     emitter,
		Metrics:     metrics,
		NodeTimeout: cfg.nodeTimeout(),
	})
	if err != nil {
		return fmt.Errorf("build workflow: %w", err)
	}

	fallbacks, err := batch.LoadFallbacks(cfg.Fallbacks)
	if err != nil {
		return err
	}

	runner := batch.NewRunner(workflow, fallbacks, cfg.Concurrency, emitter)
	count, err := runner.RunFile(ctx, batchPath, outPath)
	if err != nil {
		return err
	}

	cmd.Printf("Done: wrote %d answers to %s\n", count, outPath)
	return nil
}

// newChatModel builds the configured provider client. API keys come
// from the environment, never from the config file.
func newChatModel(ctx context.Context, cfg config) (model.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(os.Getenv("OPENAI_API_KEY"), cfg.Model, int64(cfg.MaxTokens))
	case "anthropic":
		return anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), cfg.Model, int64(cfg.MaxTokens))
	case "google":
		return google.New(ctx, os.Getenv("GOOGLE_API_KEY"), cfg.Model, int32(cfg.MaxTokens))
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}

func newStore(cfg config) (store.Store[agent.QAState], func(), error) {
	noop := func() {}
	switch cfg.Store {
	case "", "memory":
		return store.NewMemStore[agent.QAState](), noop, nil
	case "sqlite":
		path := cfg.StorePath
		if path == "" {
			path = "hybridqa_state.db"
		}
		st, err := store.NewSQLiteStore[agent.QAState](path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, func() { st.Close() }, nil
	case "mysql":
		st, err := store.NewMySQLStore[agent.QAState](cfg.MySQLDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open mysql store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store: %q", cfg.Store)
	}
}

// newEmitter builds the configured event sink. The otel mode installs
// a tracer provider so spans reach whatever exporter the embedding
// environment configures.
func newEmitter(cfg config) emit.Emitter {
	switch cfg.Emitter {
	case "json":
		return emit.NewLogEmitter(os.Stderr, true)
	case "otel":
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return emit.NewOTelEmitter(tp.Tracer("hybridqa"))
	case "none":
		return emit.NewNullEmitter()
	default:
		return emit.NewLogEmitter(os.Stderr, false)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}

// Command memoriad runs memoria's HTTP server: a Core wired from
// environment configuration and served over httpapi (spec.md §6).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/httpapi"
	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/memcore"
	"github.com/kestrelai/memoria/moderation"
	"github.com/kestrelai/memoria/queue/natsqueue"
	"github.com/kestrelai/memoria/vectorstore/chromem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memoriad: %v\n", err)
		os.Exit(-1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	core, err := buildCore(logger)
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}

	addr := envOr("MEMORIA_ADDR", ":8080")
	server := httpapi.New(core, logger,
		os.Getenv("MEMORIA_ACCESS_KEY_HEADER"),
		os.Getenv("MEMORIA_ACCESS_KEY_1"),
		os.Getenv("MEMORIA_ACCESS_KEY_2"),
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if core.Config.QueueAdapter != nil {
			if err := core.Orchestrator.RunWorkers(ctx); err != nil && ctx.Err() == nil {
				logger.Error("worker loop exited", "error", err)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("memoriad listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}

// buildCore wires a memcore.Core entirely from environment variables,
// matching spec.md §6's "configuration loading... a competent engineer
// reimplements trivially" scoping — this is that trivial reimplementation,
// grounded on the teacher's cli/config.go env-var-with-default convention.
func buildCore(logger *slog.Logger) (*memcore.Core, error) {
	store, err := chromem.New(envOr("MEMORIA_CHROMEM_PATH", ""))
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	client := openai.NewClient(os.Getenv("OPENAI_API_KEY"))
	embedder := embedding.NewOpenAIProviderWithClient(client, os.Getenv("MEMORIA_EMBED_MODEL"))
	generator := llm.NewOpenAITextGeneratorWithClient(client, envOr("MEMORIA_LLM_MODEL", ""))

	opts := []memcore.Option{
		memcore.WithContentStoreDir(envOr("MEMORIA_DATA_DIR", "./data")),
		memcore.WithVectorStores(store),
		memcore.WithEmbedder("openai", embedder),
		memcore.WithGenerator(generator),
		memcore.WithLogger(logger),
		memcore.WithSensitiveLog(envBool("MEMORIA_SENSITIVE_LOG")),
		memcore.WithSummaryMaxTokens(envIntOr("MEMORIA_SUMMARY_MAX_TOKENS", memcore.DefaultSummaryMaxTokens)),
		memcore.WithPartitionSizes(
			envIntOr("MEMORIA_MAX_TOKENS_PER_LINE", 300),
			envIntOr("MEMORIA_MAX_TOKENS_PER_PARAGRAPH", 1000),
			envIntOr("MEMORIA_OVERLAPPING_TOKENS", 100),
		),
	}

	if envBool("MEMORIA_MODERATION_ENABLED") {
		opts = append(opts, memcore.WithModerator(moderation.NewOpenAIModeratorWithClient(client)))
	}

	if natsURL := os.Getenv("MEMORIA_NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		adapter, err := natsqueue.New(nc, envOr("MEMORIA_NATS_STREAM", "memoria"))
		if err != nil {
			return nil, fmt.Errorf("build nats queue adapter: %w", err)
		}
		opts = append(opts, memcore.WithQueueAdapter(adapter))
	}

	return memcore.New(opts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

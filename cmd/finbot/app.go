package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/finflow/pkg/finbot/assistant"
	"github.com/randalmurphal/finflow/pkg/finbot/config"
	"github.com/randalmurphal/finflow/pkg/finbot/intent"
	"github.com/randalmurphal/finflow/pkg/finbot/llm"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/finbot/search"
	"github.com/randalmurphal/finflow/pkg/finbot/session"
	"github.com/randalmurphal/finflow/pkg/finbot/slots"
	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
	wferrors "github.com/randalmurphal/finflow/pkg/workflow/errors"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// app holds everything a command may need. Fields are filled in stages:
// loadApp sets the configuration and tables, withSearch the index and
// withSession the graph and store.
type app struct {
	env      config.Env
	logger   *slog.Logger
	registry *slots.Registry
	labels   intent.Sets
	prompts  *prompt.Catalog
	metrics  observability.MetricsRecorder

	embedder *search.HashEmbedder
	index    *search.Index

	session *session.Session
	closers []func() error
}

func loadApp(cmd *cobra.Command) (*app, error) {
	env, err := config.Load(envFile(cmd))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(os.Stderr, env.Log)
	if err != nil {
		return nil, err
	}

	tables := config.DefaultTables()
	if env.Tables != "" {
		if tables, err = config.LoadTables(env.Tables); err != nil {
			return nil, err
		}
	}
	registry, err := slots.NewRegistry(tables)
	if err != nil {
		return nil, fmt.Errorf("slot tables: %w", err)
	}
	labels, err := intent.NewSets(tables)
	if err != nil {
		return nil, fmt.Errorf("label tables: %w", err)
	}
	prompts, err := prompt.NewCatalog(tables.Prompts)
	if err != nil {
		return nil, fmt.Errorf("prompt tables: %w", err)
	}

	return &app{
		env:      env,
		logger:   logger,
		registry: registry,
		labels:   labels,
		prompts:  prompts,
		metrics:  observability.NewMetricsRecorder(),
	}, nil
}

// withSearch indexes the product catalog, if one is configured.
func (a *app) withSearch(ctx context.Context) error {
	a.embedder = search.NewHashEmbedder(search.DefaultDimension)
	a.index = search.NewIndex(a.embedder)
	if a.env.Products == "" {
		a.logger.Warn("no product catalog configured; recommendations will find nothing")
		return nil
	}

	catalog, err := search.ReadCatalog(a.env.Products)
	if err != nil {
		return err
	}
	n, err := a.index.Load(ctx, catalog)
	if err != nil {
		return fmt.Errorf("index products: %w", err)
	}
	a.logger.Info("product catalog indexed",
		slog.String("path", a.env.Products),
		slog.Int("products", n),
	)
	return nil
}

// withSession builds the language model client, the graph and the store.
func (a *app) withSession(ctx context.Context) error {
	if a.env.Anthropic.APIKey == "" {
		return errors.New("FINBOT_ANTHROPIC_API_KEY is required")
	}
	if err := a.withSearch(ctx); err != nil {
		return err
	}

	client := a.newClient()
	graph, err := assistant.NewGraph(assistant.Deps{
		Reasoner:  client,
		Extractor: client,
		Embedder:  a.embedder,
		Searcher:  a.index,
		Registry:  a.registry,
		Labels:    &a.labels,
		Prompts:   a.prompts,
		Metrics:   a.metrics,
		Logger:    a.logger,
		TopK:      a.env.Conversation.SearchTopK,
	})
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithMetrics(a.metrics),
		session.WithTracing(observability.NewSpanManager()),
		session.WithPrompts(a.prompts),
		session.WithHistorySize(a.env.Conversation.HistorySize),
		session.WithNodeTimeout(a.env.Conversation.NodeTimeout),
		session.WithTurnTimeout(a.env.Conversation.TurnTimeout),
	}
	store, locker, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	a.session = session.New(graph, store, opts...)
	return nil
}

func (a *app) newClient() *llm.AnthropicClient {
	cfg := a.env.Anthropic
	opts := []llm.AnthropicOption{
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithRetry(wferrors.NewRetryConfig(wferrors.WithMaxAttempts(cfg.MaxRetries + 1))),
		llm.WithExtractionSystem(a.prompts.Text(prompt.ExtractSystem)),
		llm.WithLogger(a.logger),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewAnthropicClient(cfg.APIKey, opts...)
}

// openStore opens the configured checkpoint backend. Only the Redis backend
// comes with a distributed lock.
func (a *app) openStore(ctx context.Context) (checkpoint.Store, checkpoint.Locker, error) {
	switch a.env.Store.Kind {
	case config.StoreSQLite:
		store, err := checkpoint.NewSQLiteStore(a.env.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	case config.StoreRedis:
		rc := a.env.Redis
		client, err := rc.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		store := checkpoint.NewRedisStore(client,
			checkpoint.WithRedisTTL(rc.SessionTTL),
			checkpoint.WithRedisPrefix(rc.Prefix),
		)
		a.closers = append(a.closers, store.Close)
		return store, checkpoint.NewRedisLocker(client, rc.Prefix), nil
	default:
		store := checkpoint.NewMemoryStore()
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// openSession loads the configuration and builds a ready Session.
func openSession(cmd *cobra.Command) (*app, error) {
	a, err := loadApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.withSession(cmd.Context()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

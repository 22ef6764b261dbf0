package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"relogic/internal/config"
	"relogic/internal/decompose"
	"relogic/internal/oracle"
	"relogic/internal/perception"
	"relogic/internal/store"
)

// openStore is cached for the duration of one command.
var openStore *store.LocalStore

// getStore opens the configured database, or returns nil when the store is disabled.
func getStore() (*store.LocalStore, error) {
	if openStore != nil {
		return openStore, nil
	}
	if !cfg.Store.Enabled {
		return nil, nil
	}
	path := config.ResolvePath(workspace, cfg.Store.DatabasePath)
	s, err := store.NewLocalStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug("Store opened", zap.String("path", path))
	openStore = s
	return s, nil
}

// requireStore is getStore for commands that cannot run without one.
func requireStore() (*store.LocalStore, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("store is disabled (store.enabled: false)")
	}
	return s, nil
}

func closeApp() {
	if openStore != nil {
		if err := openStore.Close(); err != nil && logger != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
		openStore = nil
	}
}

// newClient builds the LLM client for model (empty = configured model), wrapped
// with call tracing when the store is enabled.
func newClient(ctx context.Context, model string, templates map[string]string) (perception.StructuredClient, *perception.TracingClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cc, err := perception.ClientConfigFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if model != "" {
		cc.Model = model
	}
	client, err := perception.NewClient(ctx, cc)
	if err != nil {
		return nil, nil, err
	}

	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		return client, nil, nil
	}
	tc := perception.NewTracingClient(client, s.GetTraceStore(), cc.Provider).WithTemplates(templates)
	return tc, tc, nil
}

// pipeline is everything a command needs to decompose text.
type pipeline struct {
	engine *decompose.Engine
	tracer *perception.TracingClient
}

func newPipeline(ctx context.Context, trace io.Writer, rephrase bool) (*pipeline, error) {
	prompts, err := oracle.LoadPrompts(config.ResolvePath(workspace, cfg.Prompts.Dir))
	if err != nil {
		return nil, err
	}

	client, tracer, err := newClient(ctx, "", prompts.Bodies())
	if err != nil {
		return nil, err
	}

	opts := []decompose.Option{
		decompose.WithMaxDepth(cfg.GetMaxDepth()),
		decompose.WithRephrase(rephrase && cfg.Decompose.Rephrase),
	}
	if trace != nil {
		opts = append(opts, decompose.WithTrace(trace))
	}

	decider := oracle.NewDecider(oracle.NewLLMOracle(client), prompts)
	return &pipeline{engine: decompose.New(decider, opts...), tracer: tracer}, nil
}

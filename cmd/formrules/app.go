package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/goliatone/go-formrules/internal/storage/badger"
	"github.com/goliatone/go-formrules/pkg/assist"
	"github.com/goliatone/go-formrules/pkg/assist/openai"
	"github.com/goliatone/go-formrules/pkg/definitions"
	"github.com/goliatone/go-formrules/pkg/options"
	"github.com/goliatone/go-formrules/pkg/repository"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/store"
)

// app holds the wired collaborators of one command run.
type app struct {
	db        *badger.Store
	forms     *repository.Forms
	rules     *repository.Rules
	resolver  *options.Resolver
	assistant *assist.Assistant
	engine    *rules.Engine
}

// openApp opens storage and wires repositories, the option resolver, and the
// optional AI assistant. With seed set and an empty store, the configured
// definitions, or the bundled samples, are installed.
func openApp(ctx context.Context, seed bool) (*app, error) {
	dbCfg := badger.DefaultConfig()
	dbCfg.Path = cfg.Storage.DataDir
	if cfg.Storage.InMemory {
		dbCfg = badger.InMemoryConfig()
	}
	dbCfg.Logger = logger
	db, err := badger.Open(dbCfg)
	if err != nil {
		return nil, err
	}

	a := &app{db: db, engine: rules.NewEngine(rules.WithLogger(logger))}
	scopes := store.Scopes{Durable: db, Session: store.NewMemory()}

	a.forms, err = repository.NewForms(ctx, scopes, repository.WithFormsLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.rules = repository.NewRules(db, repository.WithCountSink(a.forms), repository.WithRulesLogger(logger))

	cache := options.NewCache(
		options.WithTTL(cfg.Options.CacheTTL),
		options.WithStore(db),
		options.WithCacheLogger(logger),
	)
	if err := cache.Load(ctx); err != nil {
		logger.Warn("option cache not restored", "error", err)
	}
	resolverOpts := []options.ResolverOption{
		options.WithCache(cache),
		options.WithHTTPClient(&http.Client{}),
		options.WithTimeout(cfg.Options.HTTPTimeout),
		options.WithLogger(logger),
	}
	if cfg.Options.RateLimit > 0 {
		resolverOpts = append(resolverOpts, options.WithRateLimit(cfg.Options.RateLimit, cfg.Options.RateBurst))
	}
	a.resolver = options.NewResolver(resolverOpts...)

	if cfg.OpenAI.APIKey != "" {
		client, err := openai.New(
			openai.WithAPIKey(cfg.OpenAI.APIKey),
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithVisionModel(cfg.OpenAI.VisionModel),
			openai.WithMaxTokens(cfg.OpenAI.MaxTokens),
			openai.WithLogger(logger),
		)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.assistant = assist.New(client, assist.WithQualityChecker(client), assist.WithLogger(logger))
	}

	if seed && len(a.forms.List()) == 0 {
		if err := a.seed(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) seed(ctx context.Context) error {
	catalog, err := definitions.LoadFS(definitionsFS(cfg.Definitions.Dir))
	if err != nil {
		return err
	}
	for _, key := range catalog.Names() {
		def, _ := catalog.Form(key)
		form, err := definitions.Install(ctx, a.forms, a.rules, def)
		if err != nil {
			return err
		}
		logger.Info("definition installed", "key", def.Key, "form", form.ID, "source", def.Source)
	}
	return nil
}

// lookupForm finds a form by id or name.
func (a *app) lookupForm(ref string) (string, error) {
	form, ok := a.forms.Find(ref, ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", repository.ErrFormNotFound, ref)
	}
	return form.ID, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// definitionsFS reads dir, or the bundled samples when dir is empty.
func definitionsFS(dir string) fs.FS {
	if dir == "" {
		return definitions.SamplesFS()
	}
	return os.DirFS(dir)
}

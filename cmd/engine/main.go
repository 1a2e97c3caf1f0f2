package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"go.temporal.io/sdk/client"

	"github.com/glimmerchat/engine/internal/agents"
	"github.com/glimmerchat/engine/internal/api"
	"github.com/glimmerchat/engine/internal/auth"
	"github.com/glimmerchat/engine/internal/cache"
	"github.com/glimmerchat/engine/internal/chat"
	"github.com/glimmerchat/engine/internal/config"
	"github.com/glimmerchat/engine/internal/events"
	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/search"
	"github.com/glimmerchat/engine/internal/secrets"
	"github.com/glimmerchat/engine/internal/store"
	"github.com/glimmerchat/engine/internal/store/postgres"
	"github.com/glimmerchat/engine/internal/titles"
	"github.com/glimmerchat/engine/internal/tools"
	"github.com/glimmerchat/engine/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(conn string) (store.Store, error) {
		return postgres.New(conn)
	}
	newProvider  = llm.NewProvider
	dialTemporal = client.Dial
	newServer    = func(deps api.Deps) server {
		return api.NewServer(deps)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}
	broker := newBroker()

	provider, err := newProvider(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
	})
	if err != nil {
		return err
	}

	resultCache := cache.NewMemory()
	searchClient := search.NewClient(search.Config{
		APIKey:  cfg.SearchAPIKey,
		BaseURL: cfg.SearchBaseURL,
		Model:   cfg.SearchModel,
		TTL:     cfg.SearchCacheTTL,
	}, resultCache, logger)

	toolDeps := tools.Deps{Store: st, Search: searchClient, Logger: logger}
	detector := agents.NewDetector(provider, cfg.ClassifierTimeout, logger)
	setup := chat.NewSetup(detector, toolDeps, cfg.WidgetModel, logger)
	titleService := titles.NewService(st, provider, resultCache, logger)

	trigger, closeTemporal, err := titleTrigger(cfg, titleService)
	if err != nil {
		return err
	}
	if closeTemporal != nil {
		defer closeTemporal()
	}

	runner := chat.NewRunner(provider, st, broker, trigger, logger)

	var secret *secrets.ServiceSecret
	if cfg.InternalSecret != "" {
		secret, err = secrets.ParseServiceSecret(cfg.InternalSecret)
		if err != nil {
			return err
		}
	}
	authChain := auth.NewChain(secret, []byte(cfg.JWTSigningKey), st, logger)

	srv := newServer(api.Deps{
		Store:     st,
		Broker:    broker,
		Setup:     setup,
		Runner:    runner,
		Titles:    titleService,
		AuthChain: authChain,
		SearchOK:  searchClient.Ready,
		Config:    cfg,
		Logger:    logger,
	})

	addr := fmt.Sprintf(":%s", cfg.EnginePort)
	logger.Info("glimmer engine listening", "addr", addr)
	return srv.Start(ctx, addr)
}

// titleTrigger picks the workflow path when Temporal is configured and the
// in-process path otherwise.
func titleTrigger(cfg config.Config, titleService *titles.Service) (chat.TitleTrigger, func(), error) {
	if cfg.TemporalAddress == "" {
		return workflows.NewDirectTrigger(titleService), nil, nil
	}
	temporalClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return nil, nil, err
	}
	return workflows.NewService(temporalClient, cfg.TemporalTaskQueue), temporalClient.Close, nil
}

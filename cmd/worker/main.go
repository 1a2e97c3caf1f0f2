package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/glimmerchat/engine/internal/cache"
	"github.com/glimmerchat/engine/internal/config"
	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/store"
	"github.com/glimmerchat/engine/internal/store/postgres"
	"github.com/glimmerchat/engine/internal/titles"
	"github.com/glimmerchat/engine/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(conn string) (store.Store, error) {
		return postgres.New(conn)
	}
	newProvider     = llm.NewProvider
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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

	temporalClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	provider, err := newProvider(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
	})
	if err != nil {
		return err
	}

	titleService := titles.NewService(st, provider, cache.NewMemory(), logger)
	activities := workflows.NewTitleActivities(titleService)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.TitleWorkflow)
	w.RegisterActivity(activities)

	logger.Info("glimmer title worker started", "task_queue", cfg.TemporalTaskQueue)
	return w.Run(workerInterrupt())
}

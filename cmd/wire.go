package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/ctxforge/ctxcache/internal/adapters/engine/sim"
	contextviewadapter "github.com/ctxforge/ctxcache/internal/adapters/render/contextview"
	promptadapter "github.com/ctxforge/ctxcache/internal/adapters/render/prompt"
	tomlrepo "github.com/ctxforge/ctxcache/internal/adapters/repo/toml"
	"github.com/ctxforge/ctxcache/internal/application"
	"github.com/ctxforge/ctxcache/internal/ports"
)

type app struct {
	service        *application.Service
	engine         *sim.Engine
	transcripts    ports.TranscriptRepository
	config         tomlrepo.Config
	windowRenderer func(application.WindowReport) (string, error)
	logLevel       *slog.LevelVar
	now            func() time.Time
}

func wireApp() (*app, error) {
	config, err := tomlrepo.LoadConfig(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	transcripts, err := tomlrepo.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire transcript repository: %w", err)
	}

	engine := sim.New(sim.Config{
		ContextCapacity: config.ContextCapacity,
		MaxBatchSize:    config.MaxBatchSize,
	})

	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	return &app{
		service:        application.NewService(engine, promptadapter.NewRenderer(), ports.SystemClock{}, logger),
		engine:         engine,
		transcripts:    transcripts,
		config:         config,
		windowRenderer: contextviewadapter.Render,
		logLevel:       logLevel,
		now:            time.Now,
	}, nil
}

func (a *app) close() error {
	return a.engine.Close()
}

func (a *app) requestFromConfig() application.GenerationRequest {
	return application.GenerationRequest{
		SystemText:          a.config.SystemText,
		Template:            a.config.Template,
		MaxGenerationTokens: a.config.MaxTokens,
		ReservedRunway:      a.config.ReservedRunway,
		PerTurnOverhead:     a.config.PerTurnOverhead,
	}
}

package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kopihq/kopi/internal/config"
	"github.com/kopihq/kopi/internal/events"
	"github.com/kopihq/kopi/internal/gateway"
	"github.com/kopihq/kopi/internal/models"
	"github.com/kopihq/kopi/internal/orchestrator"
	"github.com/kopihq/kopi/internal/outlets"
	"github.com/kopihq/kopi/internal/products"
	"github.com/kopihq/kopi/internal/sessions"
	"github.com/kopihq/kopi/internal/tools"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Kopi gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	unsub := bus.Subscribe(func(e events.Event) {
		slog.Debug("event", "type", e.Type, "source", e.Source, "session", e.SessionID)
	})
	defer unsub()

	store := sessions.NewStore(cfg.Sessions.Window, cfg.Sessions.MaxSessions)

	service, err := outlets.NewService()
	if err != nil {
		return err
	}

	// Chat model: optional. Without it text-to-SQL and RAG answers are off
	// and the LLM fallback degrades to static help.
	registry := models.NewRegistry(cfg.Models)
	if names := registry.Names(); len(names) > 0 {
		slog.Info("model providers configured", "default", registry.DefaultName(), "providers", names)
	}
	chat, err := registry.Default(ctx)
	if err != nil {
		slog.Warn("no chat model available, LLM-backed features disabled", "error", err)
		chat = nil
	}

	// Outlets database for natural-language search.
	var text2sql tools.OutletQuerier
	if chat != nil {
		db, err := outlets.OpenDB(cfg.Outlets.DBPath)
		if err != nil {
			slog.Warn("outlets database unavailable", "path", cfg.Outlets.DBPath, "error", err)
		} else {
			defer db.Close()
			text2sql = outlets.NewText2SQL(chat, db)
		}
	}

	// Product knowledge base.
	var kb tools.ProductAnswerer
	if embedder, err := products.NewEmbedder(ctx, cfg.Embedding); err != nil {
		slog.Warn("no embedding model available, product search disabled", "error", err)
	} else {
		catalog, err := products.LoadCatalog()
		if err != nil {
			return err
		}
		vs, err := products.NewVectorStore(ctx, cfg.Products.Dir, embedder, catalog)
		if err != nil {
			slog.Warn("product vector store unavailable", "dir", cfg.Products.Dir, "error", err)
		} else {
			kb = products.NewKnowledgeBase(vs, chat, cfg.Products.MaxResults, cfg.Products.SimilarityFloor)
		}
	}

	timeouts := tools.Timeouts{
		LLM:       cfg.Timeouts.LLM.Duration(),
		Embedding: cfg.Timeouts.Embedding.Duration(),
		Database:  cfg.Timeouts.Database.Duration(),
	}
	exec := tools.NewExecutor(slog.Default(), service, text2sql, kb, chat, timeouts)
	orch := orchestrator.New(slog.Default(), store, exec, bus)

	server := gateway.NewServer(gateway.Options{
		Orch:     orch,
		Store:    store,
		Service:  service,
		Text2SQL: text2sql,
		KB:       kb,
		Bus:      bus,
		Host:     cfg.Gateway.Host,
		Port:     cfg.Gateway.Port,
		Timeouts: timeouts,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

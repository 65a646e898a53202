package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blacktokki/notesearcher/internal/adapter/gemini"
	"github.com/blacktokki/notesearcher/internal/app"
	"github.com/blacktokki/notesearcher/internal/config"
	"github.com/blacktokki/notesearcher/internal/logger"

	"github.com/nsqio/go-nsq"
)

func main() {
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.PassagePrefix, cfg.QueryPrefix)
	if err != nil {
		return err
	}
	defer embedder.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, embedder, deps.NSQProducer, slog.Default())
	if err != nil {
		return err
	}

	if cfg.EnableSyncLoop {
		a.Orchestrator.Start()
		defer a.Orchestrator.Stop()
	} else {
		slog.Info("sync loop disabled")
	}

	if cfg.EnableReindexWorker {
		consumer, err := nsq.NewConsumer(config.TopicNoteReindex, "backend", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer for reindex", "error", err)
		} else {
			consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
				return a.ReindexConsumer.HandleMessage(m)
			}))
			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				slog.Error("failed to connect to NSQLookupd", "error", err)
			} else {
				slog.Info("NSQ reindex consumer connected")
				defer consumer.Stop()
			}
		}
	}

	return a.Run(ctx)
}

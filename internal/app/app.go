package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/blacktokki/notesearcher/features/card"
	"github.com/blacktokki/notesearcher/features/history"
	"github.com/blacktokki/notesearcher/features/mcp"
	"github.com/blacktokki/notesearcher/features/notes"
	"github.com/blacktokki/notesearcher/features/search"
	"github.com/blacktokki/notesearcher/features/stats"
	"github.com/blacktokki/notesearcher/internal/auth"
	"github.com/blacktokki/notesearcher/internal/chunk"
	"github.com/blacktokki/notesearcher/internal/config"
	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/note"
	"github.com/blacktokki/notesearcher/internal/notebook"
	syncer "github.com/blacktokki/notesearcher/internal/sync"
	"github.com/blacktokki/notesearcher/internal/worker"
)

// Database is satisfied by *sql.DB. It exists so tests can hand in a
// sqlmock connection through the same signature.
type Database interface {
	PingContext(ctx context.Context) error
	Close() error
}

// VectorStore is the chunk index as the application sees it: replace,
// query, count.
type VectorStore interface {
	UpsertBatch(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	DeleteByOriginalID(ctx context.Context, originalID int64) error
	Query(ctx context.Context, vec []float32, filter search.IndexFilter) ([]search.Result, error)
	CountChunks(ctx context.Context) (int, error)
}

// Embedder turns text into vectors, with distinct passage and query modes.
type Embedder interface {
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TaskPublisher is satisfied by *nsq.Producer.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	Orchestrator    *syncer.Orchestrator
	ReindexConsumer *worker.ReindexConsumer

	addr string
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	embedder Embedder,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {

	// Repositories need the concrete connection. The interface in the
	// signature keeps New mockable with sqlmock.
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("db must be a *sql.DB, got %T", db)
	}

	noteRepo := note.NewPostgresRepo(sqlDB)
	watermarkRepo := note.NewWatermarkRepo(sqlDB)

	// Auth
	tokenRepo := auth.NewPostgresRepo(sqlDB)
	authenticator := auth.NewAuthenticator(tokenRepo, cfg.JWTSecret)
	requireAuth := auth.Middleware(authenticator)

	// Notebook API client. Each request gets a copy bound to the caller's
	// Authorization header so the notebook sees the caller's identity.
	nbClient := notebook.NewClient(cfg.NotebookAPIURL)

	// Indexing pipeline
	conv := markdown.NewConverter()
	chunker := chunk.New(conv, cfg.ChunkSize, cfg.ChunkOverlap)
	indexer := syncer.NewIndexer(chunker, embedder, vecStore, cfg.UpsertBatchSize)
	orchestrator := syncer.NewOrchestrator(
		noteRepo, watermarkRepo, indexer,
		time.Duration(cfg.SyncIntervalSeconds)*time.Second,
	)
	reindexConsumer := worker.NewReindexConsumer(noteRepo, indexer)

	// Feature: Search
	queryLogger, err := search.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = search.NewQueryLogger(os.Stdout)
	}
	searchService := search.NewService(embedder, vecStore, noteRepo, queryLogger)
	searchHandler := search.NewHandler(searchService)

	// Feature: History
	historyService := history.NewService(conv)
	historyHandler := history.NewHandler(historyService, func(authHeader string) history.DocumentStore {
		return nbClient.WithAuthorization(authHeader)
	})

	// Feature: Card
	cardService := card.NewService(taskPub)
	cardHandler := card.NewHandler(cardService, func(authHeader string) card.DocumentStore {
		return nbClient.WithAuthorization(authHeader)
	})

	// Feature: Notes
	notesService := notes.NewService(taskPub)
	notesHandler := notes.NewHandler(notesService, func(authHeader string) notes.DocumentStore {
		return nbClient.WithAuthorization(authHeader)
	})

	// Feature: Stats
	statsHandler := stats.NewHandler(noteRepo, vecStore, watermarkRepo)

	// Feature: MCP
	mcpHandler := mcp.NewHandler(searchService, historyService, cardService, notesService,
		func(authHeader string) mcp.DocumentStore {
			return nbClient.WithAuthorization(authHeader)
		})

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// CORS answers preflight before auth runs.
	protected := func(next http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(enableCORS(requireAuth(next).ServeHTTP))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /search", protected(searchHandler.Search))

	mux.Handle("GET /notes", protected(notesHandler.List))
	mux.Handle("POST /notes", protected(notesHandler.Write))
	mux.Handle("POST /notes/rename", protected(notesHandler.Rename))
	mux.Handle("GET /notes/history", protected(historyHandler.Resolve))
	mux.Handle("GET /boards", protected(notesHandler.Boards))

	mux.Handle("POST /cards/move", protected(cardHandler.Move))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("/mcp", middleware.CorrelationID(requireAuth(mcpHandler)))
	mux.Handle("GET /mcp/sse", protected(mcpHandler.HandleSSE))
	mux.Handle("POST /mcp/messages", protected(mcpHandler.HandleMessage))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:         mux,
		Orchestrator:    orchestrator,
		ReindexConsumer: reindexConsumer,
		addr:            fmt.Sprintf(":%d", cfg.ServerPort),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.addr,
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "addr", a.addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

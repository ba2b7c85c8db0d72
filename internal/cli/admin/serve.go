package admin

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyanNg1403/tieplm/internal/api/handlers"
	"github.com/RyanNg1403/tieplm/internal/cli"
	"github.com/RyanNg1403/tieplm/internal/config"
	"github.com/RyanNg1403/tieplm/internal/jobs"
	"github.com/RyanNg1403/tieplm/internal/repository"
	"github.com/RyanNg1403/tieplm/internal/rerank"
	"github.com/RyanNg1403/tieplm/internal/server"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the tieplm API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides TIEPLM_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cli.BindEnv(cmd, "port", config.EnvPrefix+"_PORT")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defer initTelemetry()()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := applyMigrations(cfg); err != nil {
			return err
		}
	}

	llm, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	videoRepo := repository.NewVideoRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	snapshots, err := loadSnapshot(ctx, pool)
	if err != nil {
		return err
	}
	log.Printf("lexical snapshot ready: %d chunks", snapshots.Current().DocCount())

	snapshotWorker := jobs.NewWorker("snapshot", snapshots, cfg.SnapshotRefreshInterval)
	go snapshotWorker.Start(ctx)

	retriever := service.NewRetriever(llm, vectorRepo, snapshots, service.RetrievalConfig{
		DenseK:   cfg.DenseK,
		LexicalK: cfg.LexicalK,
		RRFK:     cfg.RRFK,
	})

	var crossEncoder rerank.Reranker
	if cfg.HasReranker() {
		crossEncoder = rerank.NewHTTPReranker(rerank.HTTPConfig{
			Endpoint: cfg.RerankerURL,
			Model:    cfg.RerankerModel,
		})
		log.Printf("reranking enabled: %s (%s)", cfg.RerankerURL, cfg.RerankerModel)
	} else {
		log.Println("reranking disabled: using fused order")
	}
	ranker := service.NewCandidateReranker(crossEncoder, cfg.FinalContextChunks, cfg.HasReranker())

	orchestrator := service.NewOrchestrator(
		retriever,
		ranker,
		llm.WithChatModel(cfg.ChatModel),
		sessionRepo,
		messageRepo,
		repository.NewTxRunner(pool),
		service.OrchestratorConfig{
			InitialK:          cfg.RetrievalInitialK,
			QuizContextChunks: cfg.QuizContextChunks,
		},
	)
	sessionSvc := service.NewSessionService(sessionRepo, messageRepo)

	router := server.NewRouter(server.RouterConfig{
		AskHandler:     handlers.NewAskHandler(orchestrator),
		SessionHandler: handlers.NewSessionHandler(sessionSvc),
		VideoHandler:   handlers.NewVideoHandler(videoRepo),
	})

	// No WriteTimeout: answers are streamed for as long as the model runs.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// SIGHUP rebuilds the lexical snapshot, e.g. after `tieplmd ingest`.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range quit {
		if sig != syscall.SIGHUP {
			break
		}
		log.Println("SIGHUP received: refreshing lexical snapshot")
		snapshotWorker.Trigger()
	}
	log.Println("shutting down...")

	snapshotWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		cancel()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

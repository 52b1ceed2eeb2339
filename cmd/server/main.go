// Career Agent - ATS scoring and spoken mock interview server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/career-agent/internal/api"
	"github.com/ashureev/career-agent/internal/ats"
	"github.com/ashureev/career-agent/internal/config"
	"github.com/ashureev/career-agent/internal/convlog"
	"github.com/ashureev/career-agent/internal/documents"
	"github.com/ashureev/career-agent/internal/identity"
	"github.com/ashureev/career-agent/internal/integrations/gemini"
	"github.com/ashureev/career-agent/internal/integrations/openai"
	"github.com/ashureev/career-agent/internal/integrations/paramstore"
	"github.com/ashureev/career-agent/internal/interview"
	"github.com/ashureev/career-agent/internal/llm"
	"github.com/ashureev/career-agent/internal/middleware"
	"github.com/ashureev/career-agent/internal/secrets"
	"github.com/ashureev/career-agent/internal/store"
	"github.com/ashureev/career-agent/internal/vectorindex"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var awsCfg *aws.Config
	if cfg.ResumeBucket != "" || cfg.ParamPrefix != "" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("Failed to load AWS configuration", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	var params secrets.Getter
	if cfg.ParamPrefix != "" {
		client, err := paramstore.New(ssm.NewFromConfig(*awsCfg), cfg.ParamPrefix)
		if err != nil {
			slog.Error("Failed to initialize parameter store", "error", err)
			os.Exit(1)
		}
		params = client
		slog.Info("Parameter store enabled", "prefix", cfg.ParamPrefix)
	}

	docs, err := openDocuments(cfg, awsCfg)
	if err != nil {
		slog.Error("Failed to initialize document storage", "error", err)
		os.Exit(1)
	}

	openAIKey, err := secrets.Resolve(ctx, secrets.Source{
		Name:  "OPENAI_API_KEY",
		Value: cfg.LLM.OpenAIAPIKey,
		File:  cfg.LLM.OpenAIAPIKeyFile,
		Param: cfg.LLM.OpenAIAPIKeyParam,
	}, params)
	if err != nil {
		slog.Error("OpenAI credentials are required for narration", "error", err)
		os.Exit(1)
	}
	openAIClient, err := openai.NewClient(openAIKey,
		openai.WithBaseURL(cfg.LLM.OpenAIBaseURL),
		openai.WithChatModel(cfg.LLM.OpenAIModel),
		openai.WithSpeech(cfg.LLM.TTSModel, cfg.LLM.TTSVoice, cfg.LLM.TTSFormat),
		openai.WithVoiceInstructions(cfg.LLM.TTSInstructions),
	)
	if err != nil {
		slog.Error("Failed to initialize OpenAI client", "error", err)
		os.Exit(1)
	}

	completer, err := newCompleter(ctx, cfg, params, openAIClient)
	if err != nil {
		slog.Error("Failed to initialize text generation", "error", err)
		os.Exit(1)
	}

	// Vector index is optional; scoring falls back to keyword overlap without it.
	var index vectorindex.Index
	if cfg.VectorIndexAddr != "" {
		grpcClient, err := vectorindex.NewGrpcClient(vectorindex.DefaultGrpcClientConfig(cfg.VectorIndexAddr), logger)
		if err != nil {
			slog.Warn("Vector index unavailable, using keyword similarity", "error", err)
		} else {
			defer grpcClient.Close()
			index = grpcClient
			slog.Info("Vector index connected", "address", cfg.VectorIndexAddr)
		}
	}

	conversationLog, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	pipeline := ats.NewPipeline(repo, docs, index, completer, logger)
	orchestrator := interview.NewOrchestrator(interview.Deps{
		Transcript: repo,
		Feedback:   repo,
		Resolver:   interview.NewResolver(repo, docs),
		Engine:     interview.NewEngine(completer),
		Narrator:   openAIClient,
		Evaluator:  interview.NewSynthesizer(completer),
		ConvLog:    conversationLog,
		Logger:     logger,
	}, interview.Config{
		MaxQuestions: cfg.Interview.MaxQuestions,
		HistoryLimit: cfg.Interview.HistoryLimit,
	})
	registry := interview.NewRegistry()
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	limiter.StartEviction(ctx)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	sessionHandler := api.NewSessionHandler(baseHandler)
	resumeHandler := api.NewResumeHandler(pipeline, cfg.MaxUploadBytes)
	wsHandler := interview.NewWebSocketHandler(orchestrator, registry, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware)

	baseHandler.RegisterRoutes(r)

	// Model-backed endpoints are rate limited per caller.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		resumeHandler.RegisterRoutes(r)
		sessionHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint.
	r.Get("/api/v1/interview/session/{sessionID}", wsHandler.ServeHTTP)

	// Create server.
	// Interviews hold the connection for minutes, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start guest cleanup worker.
	pipeline.StartGuestSweeper(ctx, cfg.GuestRetention, cfg.GuestSweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "live_interviews", registry.Len())

	// Hijacked websocket connections are not tracked by Shutdown.
	registry.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLite(cfg.DBPath)
}

func openDocuments(cfg *config.Config, awsCfg *aws.Config) (documents.Store, error) {
	if cfg.ResumeBucket != "" {
		slog.Info("Storing resumes in S3", "bucket", cfg.ResumeBucket)
		return documents.NewS3Store(s3.NewFromConfig(*awsCfg), cfg.ResumeBucket)
	}
	slog.Info("Storing resumes on disk", "dir", cfg.DocumentsDir)
	return documents.NewFSStore(cfg.DocumentsDir)
}

func newCompleter(ctx context.Context, cfg *config.Config, params secrets.Getter, openAIClient *openai.Client) (llm.Completer, error) {
	if cfg.LLM.Provider != config.ProviderGemini {
		return openAIClient, nil
	}
	key, err := secrets.Resolve(ctx, secrets.Source{
		Name:  "GEMINI_API_KEY",
		Value: cfg.LLM.GeminiAPIKey,
		File:  cfg.LLM.GeminiAPIKeyFile,
		Param: cfg.LLM.GeminiAPIKeyParam,
	}, params)
	if err != nil {
		return nil, err
	}
	return gemini.NewGenerator(ctx, key, cfg.LLM.GeminiModel)
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

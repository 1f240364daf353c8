package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/justinas/alice"

	"github.com/silentwatch/case-engine/internal/config"
	"github.com/silentwatch/case-engine/internal/handlers"
	"github.com/silentwatch/case-engine/internal/logger"
	"github.com/silentwatch/case-engine/internal/middleware"
	"github.com/silentwatch/case-engine/internal/services"
	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/dialogue"
	"github.com/silentwatch/case-engine/pkg/evidence"
	"github.com/silentwatch/case-engine/pkg/locker"
	"github.com/silentwatch/case-engine/pkg/script"
	"github.com/silentwatch/case-engine/pkg/solver"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	slogger := logger.Setup(cfg)

	slogger.Info("Starting Case Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider)

	store := storage.NewRedisStorage(cfg.RedisURL, slogger)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		slogger.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	slogger.Info("Storage connection established successfully")

	llmService, err := buildLLMService(storageCtx, cfg, store)
	if err != nil {
		slogger.Error("Failed to configure LLM provider", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	slogger.Info("LLM provider configured", "provider", cfg.LLMProvider, "model", llmService.ModelName())

	registry := suspect.Blackwood()
	cooldowns := suspect.NewManager()
	keypad := locker.NewKeypad(locker.New())
	tracker := evidence.NewTracker()
	engine := dialogue.NewEngine(llmService, registry, cooldowns, solver.NewFlow(), slogger)
	runner := script.NewRunner()

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, llmService, slogger))

	caseHandler := handlers.NewCaseHandler(store, registry, cooldowns, keypad, slogger)
	mux.Handle("POST /v1/cases/{caseID}/accept", caseHandler)
	mux.Handle("GET /v1/cases/{caseID}/progress", caseHandler)

	evidenceHandler := handlers.NewEvidenceHandler(store, tracker, slogger)
	mux.HandleFunc("POST /v1/cases/{caseID}/evidence/{item}/view", evidenceHandler.View)
	mux.HandleFunc("POST /v1/cases/{caseID}/cctv/access", evidenceHandler.Access)
	mux.HandleFunc("POST /v1/cases/{caseID}/cctv/unlock", evidenceHandler.Unlock)

	mux.Handle("POST /v1/cases/{caseID}/locker", handlers.NewLockerHandler(store, keypad, slogger))

	chatHandler := handlers.NewChatHandler(store, engine, registry, slogger)
	mux.Handle("GET /v1/cases/{caseID}/suspects/{suspectID}/chat", chatHandler)
	mux.Handle("POST /v1/cases/{caseID}/suspects/{suspectID}/chat", chatHandler)

	// Literal segments outrank {caseID}, so the scenario routes shadow the
	// generic case routes for its id.
	voiceless := handlers.NewVoicelessHandler(store, runner, slogger)
	mux.HandleFunc("GET /v1/cases/"+script.CaseID+"/progress", voiceless.Restore)
	mux.HandleFunc("POST /v1/cases/"+script.CaseID+"/actions", voiceless.Action)
	mux.HandleFunc("POST /v1/cases/"+script.CaseID+"/chat", voiceless.Chat)

	chain := alice.New(
		middleware.RecoverPanic(slogger),
		middleware.RequestID,
		middleware.Identity,
		middleware.LogRequests(slogger),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      chain.Then(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slogger.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		slogger.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	slogger.Info("Server exited")
}

// buildLLMService picks the dialogue backend. Keys from the environment win;
// keys stored at config:api_keys in Redis are the fallback so a deployment
// can rotate them without a restart of the whole fleet.
func buildLLMService(ctx context.Context, cfg *config.Config, store storage.Storage) (services.LLMService, error) {
	keys, err := store.GetAPIKeys(ctx)
	if err != nil {
		keys = map[string]string{}
	}

	switch cfg.LLMProvider {
	case "openai":
		key := cfg.OpenAIAPIKey
		if key == "" {
			key = keys["openai"]
		}
		return services.NewOpenAIService(key, cfg.OpenAIModel), nil
	case "gemini":
		key := cfg.GeminiAPIKey
		if key == "" {
			key = keys["gemini"]
		}
		return services.NewGeminiService(key, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: gemini, openai)", cfg.LLMProvider)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/atlasbank/mailtriage/internal/adapter/events"
	"github.com/atlasbank/mailtriage/internal/adapter/handler"
	"github.com/atlasbank/mailtriage/internal/adapter/llm"
	"github.com/atlasbank/mailtriage/internal/adapter/notifier"
	"github.com/atlasbank/mailtriage/internal/adapter/repository"
	"github.com/atlasbank/mailtriage/internal/config"
	"github.com/atlasbank/mailtriage/internal/core/ports"
)

func main() {
	// Load .env file if it exists (optional - containerized deploys use real env)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine if env vars are set)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		log.Fatalf("❌ Invalid scoring catalog: %v", err)
	}
	log.Printf("✅ Scoring catalog loaded (%d indicators, threshold %d)", catalog.Len(), cfg.Scoring.Threshold)

	ctx := context.Background()

	// Database connection
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	// Repository
	repo := repository.NewPostgresRepository(dbPool)

	// Slack notifier (optional - only if token configured)
	var agentNotifier ports.Notifier
	if cfg.Slack.BotToken != "" {
		agentNotifier = notifier.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel, cfg.Slack.MentionTeam)
		log.Println("✅ Slack notifier enabled")
	} else {
		log.Println("⚠️  Slack notifier disabled (no SLACK_BOT_TOKEN)")
	}

	// Kafka decision publisher (optional)
	var publisher ports.DecisionPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.DecisionsTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Printf("✅ Kafka decision publisher enabled (topic %s)", cfg.Kafka.DecisionsTopic)
	} else {
		log.Println("⚠️  Kafka decision publisher disabled")
	}

	// Initialize pipeline metrics
	llm.InitMetrics()
	log.Println("✅ Prometheus metrics initialized")

	// LLM classifier (optional - only if enabled and API key configured)
	classifier := buildClassifier(cfg)
	if classifier.IsEnabled() {
		log.Printf("✅ Email classification enabled (%s / %s)", cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		log.Println("⚠️  Email classification disabled (set LLM_CLASSIFIER_ENABLED=true and LLM_API_KEY) - all emails fall back to agent review")
	}

	// Retention purge (the storage-TTL analog)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Retention.PurgeSchedule, func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		deleted, err := repo.DeleteExpired(purgeCtx, time.Now().UTC())
		if err != nil {
			log.Printf("⚠️  Retention purge failed: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("🧹 Retention purge removed %d expired analyses", deleted)
		}
	}); err != nil {
		log.Fatalf("❌ Invalid purge schedule %q: %v", cfg.Retention.PurgeSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP router
	router := mux.NewRouter()

	// REST handler
	restHandler := handler.NewRestHandler(repo, classifier, agentNotifier, publisher, catalog, cfg.Scoring.Threshold, cfg.Retention.TTL)

	// Health check
	router.HandleFunc("/api/v1/health", restHandler.Health).Methods("GET")

	// Triage endpoints
	router.HandleFunc("/api/v1/emails/analyze", restHandler.AnalyzeEmail).Methods("POST")
	router.HandleFunc("/api/v1/analyses/{contactId}", restHandler.GetAnalysis).Methods("GET")
	router.HandleFunc("/api/v1/analyses", restHandler.GetAnalysisFeed).Methods("GET")

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Middleware
	router.Use(loggingMiddleware)
	router.Use(authMiddleware(cfg.Server.AuthToken))

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second, // classification can take a while
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("🚀 Mailtriage REST API listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

func buildClassifier(cfg *config.Config) ports.Classifier {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	switch cfg.LLM.Provider {
	case "anthropic":
		return llm.NewAnthropicClassifier(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.FallbackModels, timeout, cfg.LLM.Enabled)
	default:
		resilience := llm.ResilientClientConfig{
			BreakerEnabled:  cfg.LLM.Resilience.CircuitBreaker,
			BreakerFailures: uint32(cfg.LLM.Resilience.MaxFailures),
			BreakerCooldown: cfg.LLM.Resilience.BreakerCooldown,
			MaxRetries:      cfg.LLM.Resilience.MaxRetries,
			RetryBaseDelay:  cfg.LLM.Resilience.RetryBaseDelay,
			RetryMaxDelay:   cfg.LLM.Resilience.RetryMaxDelay,
		}
		return llm.NewOpenAIClassifier(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, timeout, resilience, cfg.LLM.Enabled)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("→ %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		log.Printf("← %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func authMiddleware(expectedToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check
			if r.URL.Path == "/api/v1/health" {
				next.ServeHTTP(w, r)
				return
			}

			// If no token configured, allow all requests (development mode)
			if expectedToken == "" {
				log.Println("⚠️  Warning: REST_API_AUTH_TOKEN not set - auth disabled")
				next.ServeHTTP(w, r)
				return
			}

			// Validate Bearer token
			token := r.Header.Get("Authorization")
			if token != "Bearer "+expectedToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

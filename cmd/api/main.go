package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/castrolabs/osbot/internal/api/router"
	"github.com/castrolabs/osbot/internal/automation"
	"github.com/castrolabs/osbot/internal/chat"
	"github.com/castrolabs/osbot/internal/config"
	"github.com/castrolabs/osbot/internal/contacts"
	"github.com/castrolabs/osbot/internal/engine"
	"github.com/castrolabs/osbot/internal/http/handlers"
	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/internal/llm"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/notify"
	"github.com/castrolabs/osbot/internal/observability/metrics"
	"github.com/castrolabs/osbot/internal/orders"
	"github.com/castrolabs/osbot/internal/pdf"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting osbot API server", "env", cfg.Env, "port", cfg.Port)

	if err := cfg.Validate(); err != nil {
		if cfg.IsProduction() {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		logger.Warn("running with degraded configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		orderRepo   orders.Repository
		contactRepo contacts.Repository
		notifRepo   notifications.Repository
		autoRepo    automation.Repository
		leadRepo    leads.Repository
		chatStore   chat.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		orderRepo = orders.NewPostgresRepository(pool)
		contactRepo = contacts.NewPostgresRepository(pool)
		notifRepo = notifications.NewPostgresRepository(pool)
		autoRepo = automation.NewPostgresRepository(pool)
		leadRepo = leads.NewPostgresRepository(pool)
		chatStore = chat.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		orderRepo = orders.NewInMemoryRepository()
		contactRepo = contacts.NewInMemoryRepository()
		notifRepo = notifications.NewInMemoryRepository()
		autoRepo = automation.NewInMemoryRepository()
		leadRepo = leads.NewInMemoryRepository()
		chatStore = chat.NewInMemoryStore()
	}

	gateway := whatsapp.NewClient(cfg.EvolutionAPIURL, cfg.EvolutionAPIKey, cfg.EvolutionInstance, logger)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		ChatModel:       cfg.OpenAIModel,
		TranscribeModel: cfg.TranscribeModel,
		Timeout:         cfg.LLMTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}

	renderer, err := pdf.NewRenderer(cfg.PDFDir, cfg.PublicBaseURL)
	if err != nil {
		logger.Error("failed to create PDF renderer", "error", err)
		os.Exit(1)
	}
	janitor := pdf.NewJanitor(renderer.Dir(), cfg.PDFTTL, logger)
	go janitor.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	botMetrics := metrics.NewBotMetrics(reg)

	// Conversation history: Redis when configured, in-memory otherwise.
	var history engine.History
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory history", "error", err)
		} else {
			history = engine.NewRedisHistory(rdb, cfg.HistoryTTL)
		}
	}

	evaluator := automation.NewEvaluator(autoRepo, notifications.NewAutomationScheduler(notifRepo), gateway, logger)

	toolset := &engine.Toolset{
		Orders:        orderRepo,
		Contacts:      contactRepo,
		Notifications: notifRepo,
		Chat:          chatStore,
		Gateway:       gateway,
		Renderer:      renderer,
		Automation:    evaluator,
		Logger:        logger,
	}
	eng, err := engine.NewEngine(llmClient, toolset, history, botMetrics, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	webhook := handlers.NewEvolutionWebhookHandler(handlers.EvolutionWebhookConfig{
		Engine:        eng,
		Gateway:       gateway,
		Transcriber:   llmClient,
		APIKey:        cfg.WebhookAPIKey,
		PublicBaseURL: cfg.PublicBaseURL,
		AllowedPhones: cfg.AllowedPhones,
		BlockedPhones: cfg.BlockedPhones,
		Logger:        logger,
		Metrics:       botMetrics,
	})

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, cfg.OperatorEmail, logger)

	leadsHandler := leads.NewHandler(leadRepo, gateway, notifier, logger)
	ordersAPI := handlers.NewOrdersAPIHandler(orderRepo, chatStore, logger)
	admin := handlers.NewAdminHandler(leadRepo, notifRepo, gateway, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhook,
		OrdersAPI:          ordersAPI,
		Admin:              admin,
		LeadsHandler:       leadsHandler,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		FilesDir:           renderer.Dir(),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LeadRatePerMinute:  cfg.LeadRatePerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/waqtor/waqtor-server/internal/api"
	"github.com/waqtor/waqtor-server/internal/campaign"
	"github.com/waqtor/waqtor-server/internal/config"
	"github.com/waqtor/waqtor-server/internal/pkg/logger"
	"github.com/waqtor/waqtor-server/internal/rules"
	"github.com/waqtor/waqtor-server/internal/smartbot"
	"github.com/waqtor/waqtor-server/internal/throttle"
	"github.com/waqtor/waqtor-server/internal/wa"
	"github.com/waqtor/waqtor-server/internal/webhook"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII == nil || *cfg.Logging.RedactPII)
	logger.Info("starting waqtor server")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	// SQLite backs webhooks and campaigns; the WhatsApp session store
	// keeps its own file.
	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", cfg.Storage.Database))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ruleStore, err := rules.NewStore(cfg.SmartBot.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	history, err := rules.NewHistoryStore(cfg.SmartBot.HistoryFile)
	if err != nil {
		log.Fatalf("Failed to load reply history: %v", err)
	}

	lex, err := smartbot.LoadLexicon(cfg.SmartBot.LexiconDir)
	if err != nil {
		log.Fatalf("Failed to load lexicon: %v", err)
	}

	webhookStore, err := webhook.NewStore(db)
	if err != nil {
		log.Fatalf("Failed to init webhook store: %v", err)
	}
	logs := webhook.NewBuffer(cfg.Webhook.LogCapacity)
	dispatcher := webhook.NewDispatcher(webhookStore, logs, webhook.Options{
		Timeout:         cfg.Webhook.Timeout(),
		DefaultAttempts: cfg.Webhook.RetryAttempts,
		DefaultDelay:    cfg.Webhook.RetryDelay(),
	})

	limiter, err := throttle.NewFromConfig(cfg.Throttle)
	if err != nil {
		log.Fatalf("Failed to connect send throttle: %v", err)
	}
	if limiter != nil {
		defer limiter.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waClient, err := wa.NewClient(ctx, cfg.WhatsApp)
	if err != nil {
		log.Fatalf("Failed to init WhatsApp client: %v", err)
	}

	var bot *smartbot.Orchestrator
	if cfg.SmartBot.Enabled {
		bot = smartbot.NewOrchestrator(ruleStore, history,
			smartbot.NewMatcher(lex, cfg.SmartBot.FuzzyThreshold),
			smartbot.NewComposer(lex),
			smartbot.NewProfanityFilter(lex),
			waClient)
		logger.Info("smartbot enabled", "rules", fmt.Sprintf("%d", len(ruleStore.List())))
	} else {
		logger.Info("smartbot disabled by config")
	}

	var replies wa.MessageHandler
	if bot != nil {
		replies = bot
	}
	bridge := wa.NewBridge(dispatcher, replies)
	bridge.Start(func() wa.EventSource { return waClient })
	defer bridge.Stop()

	if err := waClient.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect WhatsApp session: %v", err)
	}
	defer waClient.Disconnect()

	campaignStore, err := campaign.NewStore(db)
	if err != nil {
		log.Fatalf("Failed to init campaign store: %v", err)
	}
	runner := campaign.NewRunner(campaignStore, campaign.NewRenderer(), waClient, limiter,
		time.Duration(cfg.Campaign.MinDelaySeconds)*time.Second,
		time.Duration(cfg.Campaign.MaxDelaySeconds)*time.Second)

	handlers := api.NewHandlers(ruleStore, history, bot, webhookStore, logs, dispatcher,
		waClient, limiter, campaignStore, runner)
	server := api.NewServer(cfg.Server, cfg.Auth, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		logger.Info("admin API listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	cancel()
	runner.Shutdown()
	dispatcher.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}

	logger.Info("server stopped")
}

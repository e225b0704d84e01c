package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wavestack/automod/internal/api"
	"github.com/wavestack/automod/internal/audit"
	"github.com/wavestack/automod/internal/classifier"
	"github.com/wavestack/automod/internal/config"
	"github.com/wavestack/automod/internal/ledger"
	"github.com/wavestack/automod/internal/messaging"
	"github.com/wavestack/automod/internal/moderation"
	"github.com/wavestack/automod/internal/ratelimit"
)

func main() {
	log.Println("Starting WaveStack auto-moderation service...")

	cfg := config.Load()

	// --- Redis (ledger backend and rate limiter) ---
	var rdb *redis.Client
	needRedis := cfg.LedgerBackend == "redis" || cfg.RateLimitEnabled
	if needRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()
	}

	var violationLedger ledger.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		violationLedger = ledger.NewRedis(rdb)
	case "memory", "":
		violationLedger = ledger.NewMemory()
	default:
		log.Fatalf("unknown ledger backend %q (want memory or redis)", cfg.LedgerBackend)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewLimiter(rdb)
	}

	// --- Detection capabilities ---
	var toxicityClassifier classifier.Classifier = classifier.NullClassifier{}
	if cfg.UseClassifier {
		toxicityClassifier = classifier.NewHTTPClassifier(cfg.ToxicityAPIURL)
	}
	var contextual classifier.ContextualModerator = classifier.NullModerator{}
	if cfg.UseAIModeration {
		contextual = classifier.NewPersonalityModerator(cfg.AIPersonalityURL)
	}

	// --- Engine ---
	filter := moderation.NewFilter(cfg.BannedWords, cfg.BannedPhrases)
	toxicity := moderation.NewToxicityDetector(toxicityClassifier, contextual, cfg.ToxicityThreshold)
	spam := moderation.NewSpamDetector(cfg)
	engine := moderation.NewEngine(cfg, filter, toxicity, spam, violationLedger)

	// --- Audit log (optional) ---
	var auditStore *audit.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		if err := audit.Migrate(cfg.DatabaseURL, "file://migrations"); err != nil {
			log.Fatalf("failed to migrate audit schema: %v", err)
		}

		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open Postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		cancel()
		auditStore = audit.NewStore(db)
	}

	// --- Flagged-decision sink shared by the HTTP and NATS paths ---
	hub := api.NewStreamHub()
	onFlagged := func(req moderation.Request, decision moderation.Decision) {
		hub.Broadcast(api.NewStreamEvent(req, decision))

		if auditStore == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry := &audit.Entry{
			UserID:     req.UserID,
			Username:   req.Username,
			Platform:   req.Platform,
			ChannelID:  req.ChannelID,
			Message:    req.Message,
			Violations: decision.Violations,
			Scores:     decision.Scores,
			Actions:    decision.Actions,
		}
		if err := auditStore.Create(ctx, entry); err != nil {
			log.Printf("[main] audit write failed: %v", err)
		}
	}

	// --- NATS worker (optional) ---
	var natsClient *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL

		var err error
		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}

		err = natsClient.SubscribeModerationCheck(func(data []byte) {
			var req moderation.Request
			if err := json.Unmarshal(data, &req); err != nil {
				log.Printf("[worker] failed to unmarshal request: %v", err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			decision := engine.ModerateMessage(ctx, req)
			cancel()

			if len(decision.Violations) > 0 {
				onFlagged(req, decision)
			}

			respData, err := json.Marshal(decision)
			if err != nil {
				log.Printf("[worker] failed to marshal decision: %v", err)
				return
			}
			if err := natsClient.PublishModerationResult(req.Platform, req.ChannelID, respData); err != nil {
				log.Printf("[worker] failed to publish decision: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("failed to subscribe to moderation checks: %v", err)
		}
	}

	// --- HTTP API ---
	server := api.NewServer(cfg, engine, limiter, auditStore, hub)
	server.OnFlagged = onFlagged

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	log.Printf("WaveStack auto-moderation service running")
	log.Printf("  listen_addr:        %s", cfg.ListenAddr)
	log.Printf("  ledger_backend:     %s", cfg.LedgerBackend)
	log.Printf("  toxicity_threshold: %.2f", cfg.ToxicityThreshold)
	log.Printf("  spam_threshold:     %.2f", cfg.SpamThreshold)
	log.Printf("  classifier:         %v", cfg.UseClassifier)
	log.Printf("  ai_moderation:      %v", cfg.UseAIModeration)
	log.Printf("  auto_delete:        %v", cfg.AutoDelete)
	log.Printf("  auto_timeout:       %v", cfg.AutoTimeout)
	log.Printf("  auto_ban:           %v", cfg.AutoBan)
	log.Printf("  audit_log:          %v", auditStore != nil)
	log.Printf("  nats_worker:        %v", natsClient != nil)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}

	if natsClient != nil {
		natsClient.Close()
	}
	if db != nil {
		db.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
}

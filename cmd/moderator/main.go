// moderator is the moderation service: it consumes transcript and report
// events from the chat server over NATS, persists them in PostgreSQL,
// applies the escalating auto-ban policy, and serves the moderation
// console HTTP API.
package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/driftchat/drift/internal/ban"
	"github.com/driftchat/drift/internal/config"
	"github.com/driftchat/drift/internal/messaging"
	"github.com/driftchat/drift/internal/report"
	"github.com/driftchat/drift/internal/transcript"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies pending schema migrations from the embedded files.
func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func main() {
	var cfg config.Moderator
	if err := config.Parse(&cfg); err != nil {
		log.Fatalf("moderator: %v", err)
	}

	log.Println("Starting Drift moderation service...")

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("moderator: failed to connect to Redis: %v", err)
	}
	pingCancel()

	banStore := ban.NewStore(rdb)

	// --- PostgreSQL ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("moderator: failed to open postgres: %v", err)
	}
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(dbCtx); err != nil {
		dbCancel()
		log.Fatalf("moderator: failed to connect to postgres: %v", err)
	}
	dbCancel()

	if err := runMigrations(db); err != nil {
		log.Fatalf("moderator: migrations failed: %v", err)
	}
	log.Println("[moderator] schema migrations applied")

	transcriptStore := transcript.NewStore(db)
	reportStore := report.NewStore(db)

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "drift-moderator"
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("moderator: failed to connect to NATS: %v", err)
	}

	// Persist transcript lifecycle events.
	err = natsClient.SubscribeTranscript(func(data []byte) {
		var ev transcript.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[moderator] bad transcript event: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch ev.Type {
		case transcript.EventOpen:
			if err := transcriptStore.OpenRoom(ctx, ev.RoomID, ev.MemberA, ev.MemberB); err != nil {
				log.Printf("[moderator] %v", err)
			}
		case transcript.EventAppend:
			msg := transcript.Message{From: ev.From, Text: ev.Text, Ts: ev.Ts}
			if err := transcriptStore.Append(ctx, ev.RoomID, msg); err != nil {
				log.Printf("[moderator] %v", err)
			}
		case transcript.EventClose:
			if err := transcriptStore.CloseRoom(ctx, ev.RoomID); err != nil {
				log.Printf("[moderator] %v", err)
			}
		default:
			log.Printf("[moderator] unknown transcript event type %q", ev.Type)
		}
	})
	if err != nil {
		log.Fatalf("moderator: failed to subscribe to transcripts: %v", err)
	}

	// Persist filed reports and apply the escalating auto-ban.
	err = natsClient.SubscribeReport(func(data []byte) {
		var ev messaging.ReportEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[moderator] bad report event: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := reportStore.Create(ctx, &report.Report{
			ReporterIdentity: ev.Reporter,
			ReportedIdentity: ev.Reported,
			RoomID:           ev.RoomID,
			Reason:           ev.Reason,
			Messages:         ev.Messages,
		}); err != nil {
			log.Printf("[moderator] %v", err)
			return
		}

		banned, duration, err := banStore.ReportAndCheck(ctx, ev.Reported)
		if err != nil {
			log.Printf("[moderator] auto-ban check for %s: %v", ev.Reported, err)
			return
		}
		if banned {
			log.Printf("[moderator] AUTO-BAN identity=%s duration=%s", ev.Reported, duration)
		}
	})
	if err != nil {
		log.Fatalf("moderator: failed to subscribe to reports: %v", err)
	}

	// --- HTTP console API ---
	api := &API{
		Bans:        banStore,
		Reports:     reportStore,
		Transcripts: transcriptStore,
		AdminToken:  cfg.AdminToken,
		ReportLimit: cfg.ReportLimit,
	}

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Token"},
	}).Handler(api.Router())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("[moderator] console API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("moderator: http server error: %v", err)
		}
	}()

	log.Printf("Drift moderation service running")
	log.Printf("  listen_addr:  %s", cfg.ListenAddr)
	log.Printf("  redis_addr:   %s", cfg.RedisAddr)
	log.Printf("  nats_url:     %s", cfg.NATSURL)
	log.Printf("  report_limit: %d", cfg.ReportLimit)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := httpServer.Shutdown(shutCtx); err != nil {
		log.Printf("moderator: http shutdown error: %v", err)
	}

	natsClient.Close()
	if err := db.Close(); err != nil {
		log.Printf("moderator: postgres close error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("moderator: redis close error: %v", err)
	}
}

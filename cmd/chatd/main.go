// chatd is the WebSocket chat server: it accepts client connections,
// runs the in-process matchmaker, relays messages between paired clients,
// and publishes transcript and report events for the moderator service.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/driftchat/drift/internal/ban"
	"github.com/driftchat/drift/internal/config"
	"github.com/driftchat/drift/internal/matching"
	"github.com/driftchat/drift/internal/messaging"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/profile"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/ratelimit"
	"github.com/driftchat/drift/internal/ws"
)

// maxMessageLen caps relayed chat messages, in runes.
const maxMessageLen = 2000

// banGate adapts the Redis ban store to the hub's admission interface.
type banGate struct {
	store *ban.Store
}

func (g *banGate) Check(ctx context.Context, identity, addr string) (*matching.BanRecord, error) {
	rec, err := g.store.Check(ctx, identity, addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &matching.BanRecord{Reason: rec.Reason, Until: rec.Until}, nil
}

func main() {
	var cfg config.Chatd
	if err := config.Parse(&cfg); err != nil {
		log.Fatalf("chatd: %v", err)
	}

	serverConfig := ws.ServerConfig{
		ListenAddr:        cfg.ListenAddr,
		WorkerPoolSize:    cfg.WorkerPoolSize,
		MaxConnections:    cfg.MaxConnections,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		PollBatchSize:     cfg.PollBatchSize,
		HeartbeatInterval: cfg.PingInterval,
		HeartbeatTimeout:  cfg.PingTimeout,
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("chatd: failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}
	pingCancel()

	banStore := ban.NewStore(redisClient)
	limiter := ratelimit.NewLimiter(redisClient)

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "drift-chatd"
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("chatd: failed to connect to NATS: %v", err)
	}
	sink := messaging.NewSink(natsClient, cfg.Transcripts)

	log.Printf("Drift chat server starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  read_timeout:    %s", cfg.ReadTimeout)
	log.Printf("  write_timeout:   %s", cfg.WriteTimeout)
	log.Printf("  ping_interval:   %s", cfg.PingInterval)
	log.Printf("  ping_timeout:    %s", cfg.PingTimeout)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  nats_url:        %s", cfg.NATSURL)
	log.Printf("  adult_only:      %v", cfg.AdultOnly)
	log.Printf("  transcripts:     %v", cfg.Transcripts)

	// Declare server early so closures can capture it.
	var server *ws.Server

	notifier := &wsNotifier{}
	hub := matching.NewHub(notifier, &banGate{store: banStore}, sink, cfg.AdultOnly)

	dispatcher := ws.NewMessageDispatcher(nil)

	sendError := func(conn *ws.Connection, code, message string) {
		data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
			Code: code, Message: message,
		})
		if err != nil {
			return
		}
		_ = conn.WriteMessage(data)
	}

	// allow runs a rate limit rule and, on violation, tells the client how
	// long to back off. Limiter errors fail open inside Allow.
	allow := func(conn *ws.Connection, identifier string, rule ratelimit.Rule) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		ok, _ := limiter.Allow(ctx, identifier, rule)
		if ok {
			return true
		}
		data, err := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
			RetryAfter: limiter.RetryAfter(ctx, identifier, rule),
		})
		if err == nil {
			_ = conn.WriteMessage(data)
		}
		return false
	}

	// -----------------------------------------------------------------------
	// set_fingerprint — bind the ban/report identity to the connection
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSetFingerprint, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SetFingerprintMsg)
		if !ok || m.Fingerprint == "" {
			return
		}
		hub.SetIdentity(conn.ID, m.Fingerprint)
		log.Printf("set_fingerprint conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// set_profile — store the connection's own profile
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSetProfile, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SetProfileMsg)
		if !ok {
			return
		}
		p := hub.SetProfile(conn.ID, profile.Profile{
			Gender:  m.Profile.Gender,
			Age:     m.Profile.Age,
			Country: m.Profile.Country,
		})
		data, err := protocol.NewServerMessage(protocol.TypeProfileSet, protocol.ProfileSetMsg{
			Profile: protocol.Profile{Gender: p.Gender, Age: p.Age, Country: p.Country},
		})
		if err == nil {
			_ = conn.WriteMessage(data)
		}
		log.Printf("set_profile conn=%s gender=%s age=%d", conn.ID, p.Gender, p.Age)
	})

	// -----------------------------------------------------------------------
	// search — enter the waiting registry / match immediately
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSearch, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SearchMsg)
		if !ok {
			return
		}
		if !allow(conn, conn.ID, ratelimit.RuleSearch) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		admitted := hub.Search(ctx, conn.ID, profile.FilterSpec{
			Gender:     m.Gender,
			AgeBuckets: m.AgeBuckets,
			Country:    m.Country,
		})
		if !admitted {
			// Refused by a live ban; the banned notice has already been sent.
			server.CloseConnection(conn.ID)
			return
		}
		log.Printf("search from conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// cancel_search — leave the waiting registry
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeCancelSearch, func(conn *ws.Connection, msg interface{}) {
		hub.CancelSearch(conn.ID)
		log.Printf("cancel_search from conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// message — relay a chat message to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		if m.Text == "" || utf8.RuneCountInString(m.Text) > maxMessageLen {
			sendError(conn, "invalid_message", "message empty or too long")
			return
		}
		if !allow(conn, conn.ID, ratelimit.RuleMessage) {
			return
		}
		hub.Relay(conn.ID, m.Text)
	})

	// -----------------------------------------------------------------------
	// typing — relay the typing indicator to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.TypingMsg)
		if !ok {
			return
		}
		hub.Typing(conn.ID, m.IsTyping)
	})

	// -----------------------------------------------------------------------
	// end_chat — end the active chat
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeEndChat, func(conn *ws.Connection, msg interface{}) {
		hub.EndChat(conn.ID)
		log.Printf("end_chat from conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// report — file an abuse report against the current partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeReport, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ReportMsg)
		if !ok {
			return
		}
		hub.ReportPartner(conn.ID, m.Reason)
	})

	server = ws.NewServer(serverConfig, dispatcher.Dispatch)
	dispatcher.SetServer(server)
	notifier.server = server

	server.SetConnGate(func(remoteAddr string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, _ := limiter.Allow(ctx, remoteAddr, ratelimit.RuleConnect)
		return ok
	})

	server.SetOnConnect(func(conn *ws.Connection) {
		hub.Connect(conn.ID, conn.RemoteAddr)
	})

	server.SetOnDisconnect(func(connID string) {
		hub.Disconnect(connID)
	})

	server.Handle("/metrics", metrics.Handler())
	server.Handle("/debug/state", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		waiting, rooms, conns := hub.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Waiting     int `json:"waiting"`
			OpenRooms   int `json:"open_rooms"`
			Connections int `json:"connections"`
		}{waiting, rooms, conns})
	}))

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		natsClient.Close()
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

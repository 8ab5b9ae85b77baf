package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/complydesk/chat-server/internal/api"
	"github.com/complydesk/chat-server/internal/chat"
	"github.com/complydesk/chat-server/internal/config"
	"github.com/complydesk/chat-server/internal/sessioncache"
	"github.com/complydesk/chat-server/internal/stats"
	"github.com/complydesk/chat-server/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	mongoURI       string
	mongoDB        string
	redisAddr      string
	redisPassword  string
	redisDB        int
	sessionTTL     time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "mongodb connection URI")
	flag.StringVar(&mongoDB, "mongo-db", "chatdb", "mongodb database name")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address for the session cache (empty disables)")
	flag.StringVar(&redisPassword, "redis-password", "", "redis password")
	flag.IntVar(&redisDB, "redis-db", 0, "redis database number")
	flag.DurationVar(&sessionTTL, "session-ttl", time.Hour, "session cache record TTL")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat-server] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, mongoURI, mongoDB, redisAddr, redisPassword, redisDB, sessionTTL, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	msgStore, err := store.NewMongoMessageStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase, logger)
	cancel()
	if err != nil {
		logger.Fatal("mongo connect:", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := msgStore.Close(closeCtx); err != nil {
			logger.Println("mongo close:", err)
		}
	}()

	var sessions api.SessionCache
	if cfg.RedisAddr != "" {
		cache := sessioncache.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Printf("redis unavailable, continuing without session cache: %v", err)
			cache.Close()
		} else {
			defer cache.Close()
			sessions = cache
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux, logger)

	registry := chat.NewRegistry(logger, statsUpdater)
	broadcaster := chat.NewBroadcaster(registry, logger, statsUpdater)
	service := chat.NewService(msgStore, broadcaster, logger, statsUpdater)

	srv := api.NewChatApp(mux, logger, service, registry, broadcaster, sessions, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("closing client connections...")
	registry.CloseAll()

	logger.Println("shutdown complete")
}

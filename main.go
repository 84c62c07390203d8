package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"tracker-api/api"
	"tracker-api/storage"
	"tracker-api/store"
	"tracker-api/sync"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := storage.Tables{
		Projects: os.Getenv("PROJECTS_TABLE"),
		Tasks:    os.Getenv("TASKS_TABLE"),
		SubTasks: os.Getenv("SUBTASKS_TABLE"),
		Updates:  os.Getenv("UPDATES_TABLE"),
		Users:    os.Getenv("USERS_TABLE"),
	}
	eventsQueue := os.Getenv("EVENTS_QUEUE")
	if connStr == "" || tables.Projects == "" || tables.Tasks == "" ||
		tables.SubTasks == "" || tables.Updates == "" || tables.Users == "" || eventsQueue == "" {
		log.Fatal("missing storage config")
	}

	remote, err := storage.New(connStr, tables, eventsQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var backend sync.Remote = remote
	var publisher sync.Publisher = remote
	var dedup api.Deduper
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		cache := storage.NewCache(remote, rc, envDur("CACHE_TTL", 5*time.Minute))
		backend = cache
		publisher = cache
		dedup = api.NewRedisDeduper(rc, envDur("DEDUPER_TTL", 24*time.Hour))
	}

	cfg := sync.Config{
		Workers:        envInt("SYNC_WORKERS", 0),
		Buffer:         envInt("SYNC_BUFFER", 0),
		CallTimeout:    envDur("SYNC_CALL_TIMEOUT", 0),
		RefreshTimeout: envDur("SYNC_REFRESH_TIMEOUT", 0),
		MaxAttempts:    envInt("SYNC_MAX_ATTEMPTS", 0),
		OnError: func(serr *sync.SyncError) {
			logger.WithField("op", serr.Op).Warnf("persistence gave up: %v", serr)
		},
	}
	syncer := sync.New(backend, publisher, logger, cfg)
	st := store.New(store.WithPersister(syncer))
	syncer.Start(st)

	refreshCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := syncer.Refresh(refreshCtx); err != nil {
		logger.Warnf("startup refresh failed, starting empty: %v", err)
	}
	cancel()

	auth := buildAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, st, syncer, auth, dedup, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func buildAuth() *api.Auth {
	if os.Getenv("AUTH0_TEST_MODE") == "1" {
		return api.NewAuth(nil, "", "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
}

// redisOptions parses either a redis URL or an Azure style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}

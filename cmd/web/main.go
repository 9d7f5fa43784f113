// cmd/web/main.go
//
// Soundhouse – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (server-wide file → .env fallback).
//
//  2. Load config (YAML, env overrides, vault: secrets) and start the daily
//     rotating logger (tees to console when running in a TTY).
//
//  3. Open the optional GeoLite2 database and Redis client.
//
//  4. Build the content store, theme, and contact dispatcher.
//
//  5. Assemble the chi router:
//
//     • Recoverer + RealIP           – panics, client address behind
//                                      trusted proxies
//     • request logger               – access log
//     • requestinfo.Enrich           – client IP, UA, geo
//     • Security + ForceHTTPS        – headers and 308 redirect
//     • CacheImmutable               – long-lived image caching
//     • /metrics, /healthz           – ops endpoints
//     • registered components        – site pages and contact API
//
//  6. Serve until SIGINT/SIGTERM, then drain in-flight requests.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/soundhouse/internal/component"
	"github.com/yanizio/soundhouse/internal/config"
	"github.com/yanizio/soundhouse/internal/contact"
	"github.com/yanizio/soundhouse/internal/content"
	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/middleware"
	"github.com/yanizio/soundhouse/internal/requestinfo"
	"github.com/yanizio/soundhouse/internal/server"
	"github.com/yanizio/soundhouse/internal/theme"

	_ "github.com/yanizio/soundhouse/components/contact"
	_ "github.com/yanizio/soundhouse/components/site"
)

const serverEnvPath = "/usr/local/etc/soundhouse/global.env"

// loadEnv prefers the server-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWith(config.Options{Context: ctx})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	if err := requestinfo.InitGeo(cfg.GeoIP.DBPath); err != nil {
		logOut.Warnw("geoip disabled", "path", cfg.GeoIP.DBPath, "err", err)
	}
	defer requestinfo.CloseGeo()

	limiter, closeLimiter := newLimiter(cfg, logOut)
	defer closeLimiter()

	mgr := theme.Manager{BaseDir: cfg.Site.ThemesDir}
	th, err := mgr.Load(cfg.Site.Theme)
	if err != nil {
		logOut.Fatalw("load theme", "theme", cfg.Site.Theme, "err", err)
	}
	logOut.Infow("theme loaded", "theme", th.Name, "pages", th.Pages())

	deps := component.Deps{
		Config:     cfg,
		Log:        logOut,
		Content:    content.New(cfg.Site.DataDir),
		Theme:      th,
		Dispatcher: newDispatcher(cfg.Contact, logOut),
		Limiter:    limiter,
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		logOut.Fatalw("trusted proxies", "err", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RealIP(trusted))
	r.Use(middleware.RequestLogger(logOut))
	r.Use(requestinfo.Enrich)
	r.Use(middleware.Security)
	r.Use(middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS))
	r.Use(middleware.CacheImmutable(content.GalleryPrefix, "/artists/"))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	if err := component.Mount(r, deps); err != nil {
		logOut.Fatalw("mount components", "err", err)
	}

	if err := server.Run(ctx, server.New(cfg.HTTP, r), logOut); err != nil {
		logOut.Errorw("http server", "err", err)
	}
}

// newDispatcher builds the contact pipeline.  Without a webhook URL the
// Notifier stays nil and every verified submission is refused.
func newDispatcher(cfg config.Contact, log *zap.SugaredLogger) *contact.Dispatcher {
	var notifier contact.Notifier
	if cfg.WebhookURL != "" {
		notifier = contact.NewDiscord(cfg.WebhookURL, cfg.OutboundTimeout)
	} else {
		log.Warnw("contact webhook not configured; submissions will be refused")
	}
	if cfg.TurnstileSecret == "" {
		log.Warnw("turnstile secret not configured; submissions will be refused")
	}
	return contact.NewDispatcher(
		contact.NewTurnstile(cfg.TurnstileSecret, cfg.TurnstileVerifyURL, cfg.OutboundTimeout),
		notifier,
	)
}

// newLimiter returns the Redis-backed limiter when redis.addr is set and
// reachable, else an in-process one.  A per_minute of zero disables
// limiting.
func newLimiter(cfg *config.Config, log *zap.SugaredLogger) (middleware.Limiter, func()) {
	rl := cfg.Contact.RateLimit
	if rl.PerMinute == 0 {
		log.Infow("contact rate limiting disabled")
		return nil, func() {}
	}
	if cfg.Redis.Addr == "" {
		return middleware.NewMemoryLimiter(rl.PerMinute, rl.Burst), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnw("redis unreachable; using in-process rate limiter", "addr", cfg.Redis.Addr, "err", err)
		_ = client.Close()
		return middleware.NewMemoryLimiter(rl.PerMinute, rl.Burst), func() {}
	}
	log.Infow("redis rate limiter online", "addr", cfg.Redis.Addr)
	return middleware.NewRedisLimiter(client, rl.PerMinute), func() { _ = client.Close() }
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pingpoint/api/handlers"
	"pingpoint/api/middleware"
	"pingpoint/api/routes"
	domain "pingpoint/api/services"
	"pingpoint/config"
	"pingpoint/db"
	"pingpoint/logger"
	"pingpoint/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const serviceName = "pingpoint"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	conf, err := config.LoadConfig(configPath, explicit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(serviceName, conf.Logs.Level, conf.Logs.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, conf *config.ConfigSchema, log *slog.Logger) error {
	orm, err := db.ConnectDB(conf, log)
	if err != nil {
		return fmt.Errorf("connect to the database: %w", err)
	}
	defer func() {
		if err := db.Close(orm); err != nil {
			log.Warn("closing database", "error", err)
		}
	}()
	if err := db.Migrate(orm, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	env := domain.Env{DB: orm, Log: log}
	if conf.RabbitMQ.Enabled {
		publisher, err := services.NewEventPublisher(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		env.Events = publisher
	}

	if conf.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.PrometheusMiddleware(serviceName))
	router.Use(middleware.CORS(conf.Backend.CORSOrigins))

	if conf.RateLimit.Enabled {
		limiter, backend, closeLimiter, err := newLimiter(ctx, conf, log)
		if err != nil {
			return err
		}
		defer closeLimiter()
		router.Use(middleware.RateLimit(limiter, backend, log))
	}

	h := handlers.New(domain.New(env), orm, log, conf.IsProduction())
	routes.PublicApi(router, h, conf.Backend.BasePath)

	srv := &http.Server{
		Addr:         conf.ListenAddr(),
		Handler:      router,
		ReadTimeout:  conf.Backend.ReadTimeout,
		WriteTimeout: conf.Backend.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr, "env", conf.Backend.Env, "db", conf.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Backend.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", "timeout", conf.Backend.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter prefers the shared Redis counter and falls back to a per-process window.
func newLimiter(ctx context.Context, conf *config.ConfigSchema, log *slog.Logger) (middleware.Limiter, string, func(), error) {
	if !conf.Redis.Enabled {
		return middleware.NewMemoryLimiter(conf.RateLimit.Requests, conf.RateLimit.Window), "memory", func() {}, nil
	}
	client, err := services.NewRedisClient(ctx, conf)
	if err != nil {
		return nil, "", nil, err
	}
	log.Info("rate limiter backed by redis", "addr", conf.RedisAddr())
	closer := func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
	return middleware.NewRedisLimiter(client, conf.RateLimit.Requests, conf.RateLimit.Window), "redis", closer, nil
}

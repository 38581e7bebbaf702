package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/emi-calculator/internal/calculator"
	"github.com/iwvelando/emi-calculator/internal/config"
	"github.com/iwvelando/emi-calculator/internal/directory"
	"github.com/iwvelando/emi-calculator/internal/forum"
	"github.com/iwvelando/emi-calculator/internal/logging"
	"github.com/iwvelando/emi-calculator/internal/server"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"go.uber.org/zap"
)

var version = "dev"

func loadConfiguration(path string, explicit bool) (*config.Configuration, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.DefaultConfiguration(), nil
	}
	return config.LoadConfiguration(path)
}

func newLimiter(ctx context.Context, cfg server.RateLimitConfig) (server.Limiter, error) {
	if cfg.Requests <= 0 {
		return nil, nil
	}
	if cfg.RedisAddress != "" {
		limiter, err := server.NewRedisLimiter(ctx, cfg.RedisAddress, cfg.Requests, cfg.WindowDuration())
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}
	return server.NewMemoryLimiter(cfg.Requests, cfg.WindowDuration()), nil
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	addressFlag := flag.String("address", "", "listen address override, e.g. :8080")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	conf, err := loadConfiguration(*configLocation, set["config"])
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid configuration\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}

	serverCfg, err := server.LoadConfig(*serverConfigLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
		os.Exit(1)
	}

	loggingConfig := conf.Logging
	if serverCfg.Logging != (config.LoggingConfig{}) {
		loggingConfig = serverCfg.Logging
	}
	logger, err := logging.New(loggingConfig, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	catalog, err := directory.Load(logger, conf.Directory.File)
	if err != nil {
		logger.Fatal("failed to load loan directory",
			zap.String("op", "main"),
			zap.String("file", conf.Directory.File),
			zap.Error(err),
		)
	}

	ctx := context.Background()

	store, err := forum.OpenStore(ctx, logger, conf.Forum.Driver, conf.Forum.Path)
	if err != nil {
		logger.Fatal("failed to open forum store",
			zap.String("op", "main"),
			zap.String("driver", conf.Forum.Driver),
			zap.Error(err),
		)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close forum store",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	community := forum.NewService(logger, store)
	if conf.Forum.Seed {
		seeded, err := community.Seed(ctx)
		if err != nil {
			logger.Fatal("failed to seed forum",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		if seeded {
			logger.Info("seeded community forum with starter questions",
				zap.String("op", "main"),
			)
		}
	}

	limiter, err := newLimiter(ctx, serverCfg.RateLimit)
	if err != nil {
		logger.Fatal("failed to create rate limiter",
			zap.String("op", "main"),
			zap.String("redisAddress", serverCfg.RateLimit.RedisAddress),
			zap.Error(err),
		)
	}
	if limiter != nil {
		defer func() {
			_ = limiter.Close()
		}()
	}

	address := serverCfg.Address
	if *addressFlag != "" {
		address = *addressFlag
	}

	handler := server.NewHandler(logger, server.Options{
		Calculator:  calculator.New(logger, conf.CalculatorLimits()),
		Defaults:    conf.DefaultInput(),
		Catalog:     catalog,
		Forum:       community,
		Limiter:     limiter,
		MaxBodySize: serverCfg.BodySizeBytes(),
		Version:     version,
	})

	srv := &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting EMI calculator server",
			zap.String("op", "main"),
			zap.String("address", address),
			zap.String("version", version),
			zap.String("forumDriver", conf.Forum.Driver),
			zap.Int("rateLimitRequests", serverCfg.RateLimit.Requests),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return
	case sig := <-quit:
		logger.Info("shutting down server",
			zap.String("op", "main"),
			zap.String("signal", sig.String()),
		)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return
	}
	logger.Info("server exited",
		zap.String("op", "main"),
	)
}

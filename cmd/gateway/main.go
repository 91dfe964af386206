package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transit-gateway/config"
	"transit-gateway/gateway"
	"transit-gateway/metrics"
	"transit-gateway/middleware/ratelimit"
	"transit-gateway/middleware/ratelimit/domain"
	"transit-gateway/middleware/ratelimit/infra"
	"transit-gateway/upstream"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "arquivo YAML de configuração (seção proxy:)")
	flag.Parse()

	cfg, warnings := config.Load(*configPath)

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		// só acontece com combinação que a config já validou
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := upstream.New(upstream.Options{
		BaseURL:            cfg.MotisAddress,
		ConnectionsPerHost: cfg.ConnectionsPerHost,
		Timeout:            cfg.Timeout,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	m := metrics.New()

	counter, err := newCounter(ctx, cfg, m)
	if err != nil {
		return err
	}

	var statsStore domain.StatsStore
	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			// estatística é acessória: segue sem ela
			logger.Warn("redis stats unavailable, continuing without stats",
				zap.String("addr", cfg.Stats.RedisAddr), zap.Error(err))
		} else {
			statsStore = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.Stats.Prefix),
				infra.WithStatsTTL(cfg.Stats.TTL),
				infra.WithStatsBucket(cfg.Stats.Bucket),
				infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
		}
	}

	pipeline := gateway.NewPipeline(gateway.Options{
		Gate:               gateway.NewGate(cfg.AllowedEndpoints),
		Counter:            counter,
		RateLimitHeaders:   cfg.RateLimitHeaders,
		KeyFn:              ratelimit.DefaultKeyFunc(cfg.IPHeader, cfg.TrustXFF),
		Upstream:           client,
		Stats:              statsStore,
		Metrics:            m,
		Logger:             logger,
		ConcurrencyMax:     cfg.ConcurrencyMax,
		ConcurrencyTimeout: cfg.ConcurrencyTimeout,
	})

	ropts := gateway.RouterOptions{Pipeline: pipeline, Logger: logger}
	if cfg.ProxyAssets {
		ropts.Assets = client
	}

	servers := []*http.Server{newServer(cfg.ListenAddr, gateway.NewRouter(ropts), cfg.WriteTimeout())}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		servers = append(servers, newServer(cfg.MetricsAddr, mux, 30*time.Second))
	}

	logger.Info("gateway listening", append(cfg.Fields(),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Duration("write_timeout", cfg.WriteTimeout()))...)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		logger.Info("gateway stopped")
		return firstErr
	})

	return g.Wait()
}

func newCounter(ctx context.Context, cfg config.Config, m *metrics.Metrics) (domain.Counter, error) {
	if cfg.RateStrategy == config.StrategyTokenBucket {
		store, err := infra.NewTokenStorePerMinute(cfg.LRURateLimitEntries, cfg.RoutesPerMinuteLimit)
		if err != nil {
			return nil, err
		}
		store.StartJanitor(ctx)
		m.RegisterRateTableSize(store.Len)
		return store, nil
	}

	store, err := infra.NewWindowStore(cfg.LRURateLimitEntries, cfg.RoutesPerMinuteLimit)
	if err != nil {
		return nil, err
	}
	m.RegisterRateTableSize(store.Len)
	return store, nil
}

// newServer usa writeTimeout como prazo da resposta inteira; no servidor
// principal ele precisa ser maior que o timeout do upstream.
func newServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/txnrelay/internal/api"
	"github.com/punchamoorthee/txnrelay/internal/config"
	"github.com/punchamoorthee/txnrelay/internal/events"
	"github.com/punchamoorthee/txnrelay/internal/guard"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"github.com/punchamoorthee/txnrelay/internal/service"
	"github.com/punchamoorthee/txnrelay/internal/settlement"
	"github.com/punchamoorthee/txnrelay/internal/store"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var build = "develop"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	logger, err := zapConfig.Build()
	if err != nil {
		return errors.Wrap(err, "creating logger")
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	cfg, err := loadConfig()
	if err != nil || cfg == nil {
		return err
	}

	out, err := cfg.Render()
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	sLogger.Infof("main: Config :\n%v\n", out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := openBackends(ctx, cfg, sLogger)
	if err != nil {
		return err
	}
	defer backends.close()

	m := metrics.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	intakeGuard := guard.New()
	processor := settlement.NewProcessor(backends.transactions, intakeGuard,
		settlement.DelaySimulator{Delay: cfg.Settlement.Delay}, publisher, m, sLogger.Named("settlement"),
		settlement.Config{StoreTimeout: cfg.Settlement.StoreTimeout})

	intake := service.NewIntakeService(backends.transactions, intakeGuard, processor, m, sLogger.Named("intake"),
		service.IntakeConfig{RequeueStuck: cfg.Settlement.RequeueStuck})
	query := service.NewQueryService(backends.transactions)
	charts := service.NewChartService(backends.charts, nil)

	handler := api.NewHandler(intake, query, charts, []api.Pinger{backends.transactions, backends.charts}, sLogger.Named("api"))
	routerCfg := api.RouterConfig{
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Logger:         sLogger.Named("http"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.Server.WebhookRateLimit > 0 {
		limiter := api.NewRateLimiter(api.RateLimiterConfig{
			Rate:              rate.Limit(cfg.Server.WebhookRateLimit),
			Burst:             cfg.Server.WebhookBurst,
			IdleTTL:           cfg.Server.WebhookLimiterIdleTTL,
			TrustForwardedFor: cfg.Server.WebhookTrustForwardedFor,
		}, m)
		defer limiter.Stop()
		routerCfg.WebhookLimiter = limiter
	}

	server := &http.Server{
		Addr:              cfg.Server.HttpHost,
		Handler:           api.NewRouter(handler, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sLogger.Infof("main: Starting server on addr [%s].", server.Addr)
		return ignoreServerClosed(server.ListenAndServe())
	})
	group.Go(func() error {
		<-groupCtx.Done()
		sLogger.Info("main: Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			sLogger.Errorw("main: Server shutdown failed", "error", err)
		}
		if err := processor.Shutdown(shutdownCtx); err != nil {
			sLogger.Warnw("main: Settlement jobs still running at exit", "error", err)
		}
		return nil
	})

	sLogger.Info("main: Service started.")
	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "serving")
	}
	sLogger.Info("main: Service stopped.")
	return nil
}

// loadConfig returns a nil config without error when help or version output
// was requested.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(os.Args[1:], build)
	if err == nil {
		return cfg, nil
	}

	switch {
	case errors.Is(err, conf.ErrHelpWanted):
		usage, err := cfg.Usage()
		if err != nil {
			return nil, errors.Wrap(err, "generating config usage")
		}
		fmt.Println(usage)
		return nil, nil
	case errors.Is(err, conf.ErrVersionWanted):
		version, err := cfg.VersionString()
		if err != nil {
			return nil, errors.Wrap(err, "generating config version")
		}
		fmt.Println(version)
		return nil, nil
	}
	return nil, errors.Wrap(err, "parsing config")
}

type backends struct {
	transactions store.TransactionStore
	charts       store.ChartStore
	closers      []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*backends, error) {
	b := &backends{}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pgStore, err := store.NewStore(ctx, cfg.Store.DBSource)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to postgres")
		}
		b.closers = append(b.closers, pgStore.Close)
		if err := pgStore.Migrate(ctx); err != nil {
			b.close()
			return nil, err
		}
		b.transactions = pgStore
		if cfg.Chart.Backend == config.BackendPostgres {
			b.charts = pgStore.ChartStore()
		}
	case config.BackendPebble:
		pebbleStore, err := store.NewPebbleStore(cfg.Store.PebbleDir)
		if err != nil {
			return nil, errors.Wrap(err, "opening pebble store")
		}
		b.closers = append(b.closers, func() {
			if err := pebbleStore.Close(); err != nil {
				logger.Errorw("Closing pebble store", "error", err)
			}
		})
		b.transactions = pebbleStore
		if cfg.Chart.Backend == config.BackendPebble {
			b.charts = pebbleStore.ChartStore()
		}
	}

	if cfg.Chart.Backend == config.BackendRedis {
		redisStore := store.NewRedisChartStore(cfg.Chart.RedisAddr, cfg.Chart.RedisPassword, cfg.Chart.RedisDB)
		b.closers = append(b.closers, func() {
			if err := redisStore.Close(); err != nil {
				logger.Errorw("Closing redis client", "error", err)
			}
		})
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warnw("Redis is not reachable yet", "addr", cfg.Chart.RedisAddr, "error", err)
		}
		b.charts = redisStore
	}

	if cfg.Chart.CacheTTL > 0 {
		cached := store.NewCachedChartStore(b.charts, cfg.Chart.CacheTTL)
		b.closers = append(b.closers, cached.Stop)
		b.charts = cached
	}

	logger.Infow("Backends ready", "store", cfg.Store.Backend, "charts", cfg.Chart.Backend)
	return b, nil
}

func newPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NoopPublisher{}, func() {}, nil
	}

	m := kprom.NewMetrics(cfg.Metrics.Namespace,
		kprom.Registerer(prometheus.DefaultRegisterer),
		kprom.Gatherer(prometheus.DefaultGatherer))
	kcl, err := kgo.NewClient(
		kgo.WithHooks(m),
		kgo.SeedBrokers(cfg.Kafka.Brokers...),
		kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating kafka client")
	}
	return events.NewKafkaPublisher(kcl, cfg.Kafka.Topic), kcl.Close, nil
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

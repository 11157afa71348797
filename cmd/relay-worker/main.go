package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	relay "github.com/goliatone/go-relay"
	"github.com/goliatone/go-relay/adapters/gologger"
	"github.com/goliatone/go-relay/core"
	relaymigrations "github.com/goliatone/go-relay/migrations"
	sqlstore "github.com/goliatone/go-relay/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type workerFlags struct {
	driver   string
	dsn      string
	migrate  bool
	once     bool
	limit    int
	debug    bool
	cacheTTL time.Duration
}

func main() {
	var flags workerFlags
	flag.StringVar(&flags.driver, "driver", envOr("RELAY_DATABASE_DRIVER", "postgres"), "database driver: postgres or sqlite3")
	flag.StringVar(&flags.dsn, "dsn", os.Getenv("RELAY_DATABASE_DSN"), "database connection string")
	flag.BoolVar(&flags.migrate, "migrate", true, "apply relay migrations before starting")
	flag.BoolVar(&flags.once, "once", false, "process a single batch and exit")
	flag.IntVar(&flags.limit, "limit", 0, "batch size for -once, defaults to the configured worker batch size")
	flag.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	flag.DurationVar(&flags.cacheTTL, "subscription-cache-ttl", sqlstore.DefaultSubscriptionCacheTTL, "how long cached subscriptions may serve external edits")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("relay-worker: %v", err)
	}
}

func run(ctx context.Context, flags workerFlags) error {
	if strings.TrimSpace(flags.dsn) == "" {
		return errors.New("a database dsn is required (-dsn or RELAY_DATABASE_DSN)")
	}
	driver, dialect, err := resolveDriver(flags.driver)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, flags.debug)

	sqlDB, err := sql.Open(driver, flags.dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver: driver,
		server: flags.dsn,
		debug:  flags.debug,
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("persistence client: %w", err)
	}
	defer client.Close()

	if flags.migrate {
		if _, err := relaymigrations.RegisterClient(ctx, client); err != nil {
			return fmt.Errorf("register migrations: %w", err)
		}
		if err := client.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	cacheService, err := sqlstore.NewSubscriptionCacheService(flags.cacheTTL)
	if err != nil {
		return fmt.Errorf("subscription cache: %w", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithSubscriptionCache(cacheService))
	if err != nil {
		return fmt.Errorf("repository factory: %w", err)
	}

	svc, err := relay.NewService(relay.Config{},
		relay.WithLoggerProvider(logger),
		relay.WithLogger(logger),
		relay.WithConfigProvider(core.NewCfgxConfigProvider(core.NewEnvConfigLoader())),
		relay.WithPersistenceClient(client),
		relay.WithRepositoryFactory(factory),
	)
	if err != nil {
		return fmt.Errorf("relay service: %w", err)
	}

	dispatcher, err := relay.NewDispatcher(svc, relay.NewHTTPPoster(nil), relay.NewExtensionHooks(),
		gologger.DispatcherLogger(logger, logger),
	)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	if flags.once {
		limit := flags.limit
		if limit <= 0 {
			limit = svc.Config().Webhooks.WorkerBatchSize
		}
		result, err := dispatcher.RunBatch(ctx, limit)
		if err != nil {
			return fmt.Errorf("run batch: %w", err)
		}
		logger.Info("webhook batch complete",
			"selected", result.Selected,
			"sent", result.Sent,
			"retried", result.Retried,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"contended", result.Contended,
			"lease_lost", result.LeaseLost,
		)
		return nil
	}

	return relay.NewWorker(dispatcher, svc.Config()).Run(ctx)
}

// newLogger builds the worker's root logger. It doubles as the provider for
// the named loggers the dispatcher and service resolve.
func newLogger(w io.Writer, debug bool) *glog.BaseLogger {
	level := "info"
	if debug {
		level = "debug"
	}
	return glog.NewLogger(
		glog.WithName("relay"),
		glog.WithWriter(w),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	)
}

func resolveDriver(name string) (string, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return "postgres", pgdialect.New(), nil
	case "sqlite", "sqlite3":
		return "sqlite3", sqlitedialect.New(), nil
	default:
		return "", nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "relay-worker"
}

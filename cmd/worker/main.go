// Command worker runs the autonomous support pipeline.
//
// It claims queued tickets, resolves identities, classifies, answers or
// escalates, and dispatches outbound replies. A background sweeper closes
// inactive conversations and purges processed queue entries. Both loops stop
// on SIGINT/SIGTERM; in-flight tickets get a drain window before exit.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/config"
	"github.com/techcorp/taskflow-support/internal/conversation"
	"github.com/techcorp/taskflow-support/internal/dispatch"
	"github.com/techcorp/taskflow-support/internal/identity"
	"github.com/techcorp/taskflow-support/internal/observability"
	"github.com/techcorp/taskflow-support/internal/queue"
	"github.com/techcorp/taskflow-support/internal/repo"
	"github.com/techcorp/taskflow-support/internal/routing"
	"github.com/techcorp/taskflow-support/internal/search"
	"github.com/techcorp/taskflow-support/internal/sysutil"
	"github.com/techcorp/taskflow-support/internal/worker"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(flushCtx)
	}()

	db := mustOpenDB(cfg)
	q := queue.New(db)

	// A missing knowledge base is survivable: the pipeline skips grounding
	// and low-confidence messages escalate instead.
	idx, err := search.NewIndexFromMarkdown(cfg.DocsPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", cfg.DocsPath).Msg("knowledge base missing, answering without grounding")
		idx = nil
	} else if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DocsPath).Msg("knowledge base load failed")
	}

	routes, err := routing.Load(cfg.RoutingPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RoutingPath).Msg("routing table load failed")
	}

	mgr := conversation.NewManager(db)
	mgr.InactivityWindow = cfg.Worker.InactivityWindow

	w := &worker.Worker{
		DB:            db,
		Queue:         q,
		Identities:    &identity.Resolver{DB: db},
		Conversations: mgr,
		Dispatcher: &dispatch.Dispatcher{
			Conversations: mgr,
			Sender:        &dispatch.LogSender{Log: log.Logger},
		},
		Routes: routes,
		Index:  idx,
		Log:    log.Logger,

		Concurrency:  cfg.Worker.Concurrency,
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
		EntryTimeout: cfg.Worker.EntryTimeout,
		DrainTimeout: cfg.Worker.DrainTimeout,
	}

	sweeper := &worker.Sweeper{
		Queue:         q,
		Conversations: mgr,
		Log:           log.Logger,
		Interval:      cfg.Worker.SweepInterval,
		PurgeAfter:    cfg.Worker.PurgeAfter,
	}
	go func() {
		_ = sweeper.Run(ctx)
	}()

	log.Info().Str("version", version).Msg("worker starting")
	if err := w.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

// mustOpenDB opens the configured database, applies migrations, and wires
// the GORM tracing plugin when OTel is enabled.
func mustOpenDB(cfg config.Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = repo.OpenPostgres(cfg.DBDSN)
	default:
		db, err = repo.OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.WithTracing(db); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	return db
}

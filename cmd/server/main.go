// Command server assembles the versioned store as a runnable process: load
// config, open the database, run pending migrations, initialize the
// schema, optionally apply a seed manifest, then block until shutdown.
// This module has no HTTP or CLI surface of its own — this binary exists to
// prove the wiring compiles and runs the way the host codebase's cmd/
// binaries assemble their own fx graphs, not to serve traffic.
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/branchgraph/domain/graph"
	"github.com/emergent-company/branchgraph/domain/versionedstore"
	"github.com/emergent-company/branchgraph/internal/config"
	"github.com/emergent-company/branchgraph/internal/database"
	"github.com/emergent-company/branchgraph/internal/migrate"
	"github.com/emergent-company/branchgraph/internal/seed"
	"github.com/emergent-company/branchgraph/pkg/logger"
	"github.com/emergent-company/branchgraph/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(logger.Scope("fx"))}
		}),
		fx.Provide(logger.NewLogger),
		config.Module,
		tracing.Module,
		database.Module,
		migrate.Module,
		versionedstore.Module,
		graph.Module,
		fx.Invoke(runMigrationsAndInit),
	).Run()
}

func runMigrationsAndInit(lc fx.Lifecycle, m *migrate.Migrator, session *versionedstore.Session, cfg *config.Config, log *slog.Logger) {
	log = log.With(logger.Scope("bootstrap"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.Up(ctx); err != nil {
				return err
			}
			if err := session.Store.InitDB(ctx); err != nil {
				return err
			}
			if cfg.Seed.Enabled() {
				manifest, err := seed.Load(cfg.Seed.Path)
				if err != nil {
					return err
				}
				if err := seed.Apply(ctx, session, manifest); err != nil {
					return err
				}
				log.Info("seed manifest applied", slog.String("path", cfg.Seed.Path))
			}
			log.Info("versioned store ready")
			return nil
		},
	})
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doin-challenge/cache"
	"doin-challenge/config"
	"doin-challenge/database"
	"doin-challenge/handlers"
	"doin-challenge/logger"
	"doin-challenge/services"
	"doin-challenge/session"
	"doin-challenge/utils"
	"doin-challenge/workers"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:           "doin",
		Short:         "Mobilization challenge backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := serveCmd()
	root.RunE = serve.RunE
	root.AddCommand(serve, migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// bootstrap loads config, starts logging and opens a migrated database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(logger.Configuration{
		LogFile:   cfg.Log.File,
		ErrorFile: cfg.Log.ErrorFile,
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return cfg, db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := services.Seed(db); err != nil {
				return fmt.Errorf("failed to seed catalogs: %w", err)
			}

			opts := services.Options{EventsTTL: cfg.Cache.EventsTTL, CategoriesTTL: cfg.Cache.CategoriesTTL}
			if cfg.R2.Enabled() {
				storage, err := utils.NewR2Storage(ctx, cfg.R2)
				if err != nil {
					return err
				}
				opts.Uploader = storage
			} else {
				logger.Warn("⚠️ R2 not configured, image uploads disabled")
			}
			svc := services.New(db, cache.NewMemoryStore(), opts)

			sched, err := svc.Jobs().StartScheduler()
			if err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer func() {
				if err := sched.Shutdown(); err != nil {
					logger.Warn("[SCHEDULER] shutdown failed", zap.Error(err))
				}
			}()

			manager := session.NewManager(cfg.Session.Secret, cfg.Session.TTL)
			app := handlers.NewApp(cfg, svc, manager)

			g, gctx := errgroup.WithContext(ctx)
			if cfg.ProfileSync.URL != "" {
				w := workers.NewProfileSyncWorker(db, cfg.ProfileSync.URL, cfg.ProfileSync.Token, cfg.ProfileSync.Interval)
				g.Go(func() error { w.Run(gctx); return nil })
			}
			if cfg.Push.URL != "" {
				w := workers.NewPushWorker(svc.Notifications, cfg.Push.URL, cfg.Push.Interval)
				g.Go(func() error { w.Run(gctx); return nil })
			}
			g.Go(func() error {
				addr := fmt.Sprintf(":%d", cfg.Server.Port)
				logger.Info("✅ Server running", zap.String("addr", addr), zap.Strings("origins", cfg.Server.AllowedOrigins))
				return app.Listen(addr)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down server...")
				return app.ShutdownWithTimeout(10 * time.Second)
			})

			if err := g.Wait(); err != nil {
				logger.Error("server stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()
			logger.Info("✅ migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var adminOpenID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed categories, badges and achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			res, err := services.Seed(db)
			if err != nil {
				return err
			}
			logger.Info("🌱 seed complete",
				zap.Int64("categories", res.Categories),
				zap.Int64("badges", res.Badges),
				zap.Int64("achievements", res.Achievements),
			)
			if adminOpenID != "" {
				if err := services.PromoteAdmin(db, adminOpenID); err != nil {
					return err
				}
				logger.Info("👑 admin promoted", zap.String("open_id", adminOpenID))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&adminOpenID, "admin", "", "open id of an existing user to promote to admin")
	return cmd
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/dentalapp/internal/api"
	"stealthcompany.com/dentalapp/internal/config"
	"stealthcompany.com/dentalapp/internal/metrics"
	"stealthcompany.com/dentalapp/internal/orchestrator"
	"stealthcompany.com/dentalapp/internal/patient"
	"stealthcompany.com/dentalapp/internal/seed"
	"stealthcompany.com/dentalapp/pkg/zerolog_config"
)

const appName = "dentalapp"

func main() {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Dental clinic patient records service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ensureIndexesCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the patient indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			return withRepository(cmd.Context(), cfg, func(ctx context.Context, repo *patient.Repository) error {
				log.Info().Msg("Indexes are in place")
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		source  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load patients from a JSON array file or URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			return withRepository(cmd.Context(), cfg, func(ctx context.Context, repo *patient.Repository) error {
				summary, err := seed.NewLoader(repo, timeout).Run(ctx, source)
				if err != nil {
					return err
				}
				log.Info().
					Int("total", summary.Total).
					Int("stored", summary.Stored).
					Int("invalid", summary.Invalid).
					Int("duplicate", summary.Duplicate).
					Msg("Seed finished")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "file", "", "path or http(s) URL of a JSON array of patients")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for fetching a remote file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// bootstrap loads configuration and sets up logging.
func bootstrap() (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zerolog_config.SetAppPrefix(appName)
	if err := zerolog_config.StartupWithEnv(cfg.Log.ElasticsearchURL, cfg.Log.Index, cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withRepository opens the store, ensures indexes, runs fn and closes the
// store. SIGINT/SIGTERM cancel the context passed to fn.
func withRepository(parent context.Context, cfg *config.Config, fn func(context.Context, *patient.Repository) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sh := orchestrator.NewSignalHandler()
	defer sh.Stop()
	sh.HandleSignals(ctx, cancel)

	opened, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer closeCancel()
		if err := opened.close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close patient store")
		}
	}()

	repo := patient.NewRepository(opened.store)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return err
	}
	return fn(ctx, repo)
}

func runServer(cfg *config.Config) error {
	log.Info().Str("driver", cfg.Store.Driver).Msg("Starting dentalapp service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := orchestrator.NewSignalHandler()
	defer sh.Stop()
	sh.HandleSignals(ctx, cancel)

	var (
		opened *openedStore
		repo   *patient.Repository
		srv    *http.Server
	)

	sm := orchestrator.NewServiceManager()

	sm.Register(orchestrator.Hook{
		Name: "store",
		Start: func(ctx context.Context) error {
			var err error
			opened, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			repo = patient.NewRepository(opened.store)
			return nil
		},
		Stop: func(ctx context.Context) error {
			return opened.close(ctx)
		},
	})

	sm.Register(orchestrator.Hook{
		Name: "indexes",
		Start: func(ctx context.Context) error {
			return repo.EnsureIndexes(ctx)
		},
	})

	if cfg.Metrics.SystemMetrics {
		sm.Register(orchestrator.Hook{
			Name: "system-metrics",
			Start: func(context.Context) error {
				metrics.System().Start(ctx, cfg.Metrics.SystemInterval)
				return nil
			},
		})
	}

	sm.Register(orchestrator.Hook{
		Name: "http",
		Start: func(context.Context) error {
			srv = &http.Server{
				Addr:         net.JoinHostPort("", cfg.Server.Port),
				Handler:      api.SetupRoutes(repo, cfg.Server.APIPrefix),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			log.Info().
				Str("port", cfg.Server.Port).
				Str("api_prefix", cfg.Server.APIPrefix).
				Msg("Server starting")

			sm.Go("http", func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			return nil
		},
		Stop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	if err := sm.Start(ctx); err != nil {
		return err
	}

	waitErr := sm.Wait(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	stopErr := sm.Stop(shutdownCtx)
	if stopErr == nil {
		log.Info().Msg("Server stopped")
	}
	return errors.Join(waitErr, stopErr)
}

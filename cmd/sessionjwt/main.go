package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/internal/config"
	"github.com/rkhaya/express-session-jwt/internal/httpapi"
	"github.com/rkhaya/express-session-jwt/internal/logger"
	promexport "github.com/rkhaya/express-session-jwt/metrics/export/prometheus"
	"github.com/rkhaya/express-session-jwt/users"
	"github.com/rkhaya/express-session-jwt/users/pgstore"
)

var version = "dev"

const healthInterval = 30 * time.Second

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts config.Options

	root := &cobra.Command{
		Use:           "sessionjwt",
		Short:         "Token lifecycle service: login, rotation and revocation over Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.Path, "config", os.Getenv("CONFIG_PATH"), "path to a YAML config file (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded when present")

	root.AddCommand(
		newServeCmd(&opts),
		newRevokeAllCmd(&opts, out),
		newListCmd(&opts, out),
		newReportCmd(&opts, out),
	)
	root.SetOut(out)
	return root
}

func newServeCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := start(ctx, *opts)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.engine.Ping(ctx); err != nil {
				return fmt.Errorf("store not reachable: %w", err)
			}

			var metrics http.Handler
			if rt.settings.Engine.Metrics.Enabled {
				exp, err := promexport.NewExporter(rt.engine)
				if err != nil {
					return err
				}
				metrics = exp.Handler()
			}

			api, err := httpapi.New(httpapi.Deps{
				Engine:     rt.engine,
				Logger:     rt.log,
				Metrics:    metrics,
				TrustProxy: rt.settings.TrustProxy,
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return api.Serve(gctx, rt.settings.HTTPAddr)
			})
			g.Go(func() error {
				watchHealth(gctx, rt.engine, rt.log)
				return nil
			})
			return g.Wait()
		},
	}
}

func newRevokeAllCmd(opts *config.Options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-all <principal-id>",
		Short: "Revoke every renewal credential of a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := start(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.close()

			n, err := rt.engine.RevokeAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "revoked %d renewal credential(s) for %s\n", n, args[0])
			return nil
		},
	}
}

func newListCmd(opts *config.Options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list-credentials <principal-id>",
		Short: "List live renewal credential IDs of a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := start(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ids, err := rt.engine.ListCredentials(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "no live renewal credentials")
				return nil
			}
			fmt.Fprintln(out, strings.Join(ids, "\n"))
			return nil
		},
	}
}

func newReportCmd(opts *config.Options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the effective security posture as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := start(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.close()

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(rt.engine.SecurityReport()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

type app struct {
	settings *config.Settings
	engine   *sessionjwt.Engine
	log      *zap.Logger
	pool     *pgxpool.Pool
}

func (r *app) close() {
	if err := r.engine.Close(); err != nil {
		r.log.Warn("engine close", zap.Error(err))
	}
	if r.pool != nil {
		r.pool.Close()
	}
	_ = r.log.Sync()
}

// start loads settings and builds the engine with its user directory.
func start(ctx context.Context, opts config.Options) (*app, error) {
	settings, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	settings.Log.Version = version
	log := logger.New(settings.Log)

	dir, pool, err := openUsers(ctx, settings)
	if err != nil {
		return nil, err
	}

	engine, err := sessionjwt.New().
		WithConfig(settings.Engine).
		WithUserProvider(dir).
		WithLogger(log).
		Build()
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &app{settings: settings, engine: engine, log: log, pool: pool}, nil
}

func openUsers(ctx context.Context, s *config.Settings) (sessionjwt.UserProvider, *pgxpool.Pool, error) {
	switch {
	case s.DatabaseURL != "":
		store, pool, err := pgstore.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, pool, nil
	case s.UserSeedPath != "":
		dir, err := users.LoadYAML(s.UserSeedPath)
		if err != nil {
			return nil, nil, err
		}
		return dir, nil, nil
	default:
		return users.NewMemory(), nil, nil
	}
}

// watchHealth logs store reachability changes until ctx ends.
func watchHealth(ctx context.Context, engine *sessionjwt.Engine, log *zap.Logger) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := engine.Ping(ctx)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return
		case err != nil && healthy:
			log.Warn("store unreachable", zap.Error(err))
			healthy = false
		case err == nil && !healthy:
			log.Info("store reachable again")
			healthy = true
		}
		if dropped := engine.AuditDropped(); dropped > 0 {
			log.Debug("audit events dropped", zap.Uint64("dropped", dropped))
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sitework/sitework/internal/cleanup"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/database"
	"github.com/sitework/sitework/internal/oidc"
	"github.com/sitework/sitework/internal/server"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Fatalf("%v", err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitework",
		Short:         "Construction project management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE:  func(cmd *cobra.Command, _ []string) error { return migrate(cmd.Context()) },
		},
		cleanupCmd(),
		createAdminCmd(),
	)
	return root
}

func cleanupCmd() *cobra.Command {
	var (
		dryRun    bool
		olderThan time.Duration
		buckets   []string
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete unreferenced uploads once and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			b, release, err := server.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()
			svc, err := server.Build(ctx, cfg, b)
			if err != nil {
				return err
			}
			opts := svc.CleanupOpts
			if cmd.Flags().Changed("dry-run") {
				opts.DryRun = dryRun
			}
			if cmd.Flags().Changed("older-than") {
				opts.OlderThan = olderThan
			}
			if len(buckets) > 0 {
				opts.Buckets = buckets
			}
			rep := svc.Cleaner.Run(ctx, opts)
			printReport(cmd, rep)
			if rep.Failed() {
				return errors.New("cleanup finished with errors")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only consider objects older than this")
	cmd.Flags().StringSliceVar(&buckets, "bucket", nil, "bucket to scan (repeatable)")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first admin profile if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New(config.DatabaseURLEnv + " is not set")
			}
			admin := cfg.Admin
			if email != "" {
				admin.Email = email
			}
			if password != "" {
				admin.Password = password
			}
			if name != "" {
				admin.Name = name
			}
			cfg.Admin = config.AdminConfig{}

			b, release, err := server.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()
			if err := database.Migrate(ctx, b.Postgres); err != nil {
				return err
			}
			svc, err := server.Build(ctx, cfg, b)
			if err != nil {
				return err
			}
			p, created, err := svc.Profiles.EnsureAdmin(ctx, admin.Email, admin.Password, admin.Name)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", p.Email, p.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s already exists with role %s\n", p.Email, p.Role)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email (default ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "display name (default ADMIN_NAME)")
	return cmd
}

func printReport(cmd *cobra.Command, rep *cleanup.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cutoff %s dry-run=%v\n", rep.Cutoff.Format(time.RFC3339), rep.DryRun)
	for _, b := range rep.Buckets {
		fmt.Fprintf(out, "%s: scanned=%d orphaned=%d deleted=%d errors=%d\n", b.Bucket, b.Scanned, len(b.Orphaned), b.Deleted, len(b.Errors))
		for _, e := range b.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
	}
}

func migrate(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return errors.New(config.DatabaseURLEnv + " is not set")
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Infof("schema applied")
	return nil
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set; refusing to serve without a signing key")
	}
	logger.Infof("config loaded: postgres=%v mongo=%v redis=%v minio=%v keycloak=%v",
		cfg.Postgres.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "", cfg.Keycloak.URL != "")

	b, release, err := server.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()
	if b.Postgres != nil {
		if err := database.Migrate(ctx, b.Postgres); err != nil {
			return err
		}
	}
	svc, err := server.Build(ctx, cfg, b)
	if err != nil {
		return err
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	opts := server.Options{Redis: b.Redis, Ready: server.ReadyChecks(b), Version: version}
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			opts.OIDC = ver
			opts.Exchanger = oidc.NewExchanger(cfg.Keycloak)
		}
	}

	if cfg.Cleanup.Enabled {
		go cleanup.NewScheduler(svc.Cleaner, cfg.Cleanup.Interval, svc.CleanupOpts).Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.New(cfg, svc, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting sitework %s on %s", version, srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lars/lars/internal/config"
	"github.com/lars/lars/internal/domain/entry"
	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/domain/schedule"
	"github.com/lars/lars/internal/platform/auth"
	"github.com/lars/lars/internal/platform/db"
	"github.com/lars/lars/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lars-server",
		Short: "LARS questionnaire backend",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dbcheckCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func dbcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbcheck",
		Short: "Check database connectivity and list installed extensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			pool, cfg, err := connect(ctx)
			if err != nil {
				if cfg != nil {
					fmt.Println(db.TLSHint(cfg.DBSSLRootCert))
				}
				return err
			}
			defer pool.Close()

			var one int
			if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
				return fmt.Errorf("select 1: %w", err)
			}
			var serverVersion string
			if err := pool.QueryRow(ctx, "SHOW server_version").Scan(&serverVersion); err != nil {
				return fmt.Errorf("server version: %w", err)
			}
			fmt.Printf("Connected. SELECT 1 = %d, server version %s\n", one, serverVersion)

			rows, err := pool.Query(ctx, "SELECT extname, extversion FROM pg_extension ORDER BY extname")
			if err != nil {
				return fmt.Errorf("list extensions: %w", err)
			}
			defer rows.Close()
			fmt.Printf("%-30s %s\n", "EXTENSION", "VERSION")
			for rows.Next() {
				var name, ver string
				if err := rows.Scan(&name, &ver); err != nil {
					return err
				}
				fmt.Printf("%-30s %s\n", name, ver)
			}
			return rows.Err()
		},
	}
}

func nextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the questionnaire decision for a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawCode, _ := cmd.Flags().GetString("patient")
			rawDate, _ := cmd.Flags().GetString("date")

			code, err := patient.NormalizeCode(rawCode)
			if err != nil {
				return fmt.Errorf("--patient: %w", err)
			}

			ctx := context.Background()
			pool, cfg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			scheduler, err := newScheduler(cfg, pool, zerolog.New(os.Stderr))
			if err != nil {
				return err
			}
			today := scheduler.Today()
			if rawDate != "" {
				if today, err = civil.ParseDate(rawDate); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			d, err := scheduler.DecideOn(ctx, code, today)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
	cmd.Flags().String("patient", "", "Patient code")
	cmd.Flags().String("date", "", "Evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if sub == "" {
				return fmt.Errorf("--sub is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthJWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}

			token, err := auth.IssueToken(jwtConfig(cfg), sub, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Subject (staff user id)")
	cmd.Flags().StringSlice("role", []string{auth.RoleClinician}, "Role to grant (repeatable)")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

// connect loads and validates the configuration and opens the pool.
func connect(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		SimpleProtocol: cfg.DBSimpleProtocol,
	})
	if err != nil {
		return nil, cfg, err
	}
	return pool, cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthJWTSecret),
	}
}

func newScheduler(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*schedule.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	history := entry.NewHistory(patient.NewRepoPG(pool), entry.NewRepoPG(pool))
	return schedule.NewScheduler(history, time.Now, loc, logger), nil
}

// newServer builds the router. The pool is only used when requests arrive.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, patient.HeaderCode},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))

	e.GET("/healthz", db.LivenessHandler(version))
	e.GET("/readyz", db.ReadinessHandler(pool, cfg.DBSSLRootCert))

	root := e.Group("")
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthJWTSecret == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	patients := patient.NewRepoPG(pool)
	entries := entry.NewRepoPG(pool)

	scheduler, err := newScheduler(cfg, pool, logger)
	if err != nil {
		return nil, err
	}
	schedule.NewHandler(scheduler).RegisterRoutes(root, apiV1)

	entrySvc := entry.NewService(patients, entries, db.NewTransactor(pool), scheduler.Today, logger)
	entry.NewHandler(entrySvc).RegisterRoutes(root, apiV1)

	patient.NewHandler(patient.NewService(patients)).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	cfg, err := config.Load()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		SimpleProtocol: cfg.DBSimpleProtocol,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("hint", db.TLSHint(cfg.DBSSLRootCert)).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Bool("simple_protocol", cfg.DBSimpleProtocol).Msg("connected to database")

	e, err := newServer(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.Timezone).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentboard/dentboard/internal/config"
	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/domain/board"
	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/internal/domain/identity"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/auth"
	"github.com/dentboard/dentboard/internal/platform/availability"
	"github.com/dentboard/dentboard/internal/platform/blobstore"
	"github.com/dentboard/dentboard/internal/platform/db"
	"github.com/dentboard/dentboard/internal/platform/middleware"
	"github.com/dentboard/dentboard/internal/platform/sandbox"
	"github.com/dentboard/dentboard/internal/platform/websocket"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dentboard-server",
		Short: "Dental clinic scheduling board server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(vacationsCmd())
	rootCmd.AddCommand(nextFreeCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the board API server",
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := backend(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir, cfg.DBSchema)
			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := backend(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir, cfg.DBSchema).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load dentists, patients and appointments from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			demo, _ := cmd.Flags().GetBool("demo")
			if file == "" && !demo {
				return fmt.Errorf("--file or --demo is required")
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var (
					res *sandbox.SeedResult
					err error
				)
				if demo {
					res, err = a.seeder.Demo(ctx, sandbox.DemoConfig{}, time.Now().In(a.loc))
				} else {
					var f *sandbox.SeedFile
					if f, err = sandbox.LoadFile(file); err != nil {
						return err
					}
					res, err = a.seeder.Apply(ctx, f)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d dentist(s), %d patient(s), %d catalog entr(ies), %d appointment(s); skipped %d.\n",
					res.Dentists, res.Patients, res.CatalogEntries, res.Appointments, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().String("file", "", "Path to a seed YAML file")
	cmd.Flags().Bool("demo", false, "Generate a demo week instead of reading a file")
	return cmd
}

func vacationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacations",
		Short: "Manage dentist vacations",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import vacations for a dentist from an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dentistID, _ := cmd.Flags().GetString("dentist")
			file, _ := cmd.Flags().GetString("file")
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			if dentistID == "" || file == "" {
				return fmt.Errorf("--dentist and --file are required")
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				from, to, err := importWindow(fromFlag, toFlag, time.Now().In(a.loc), a.loc)
				if err != nil {
					return err
				}
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()

				n, err := a.clinic.ImportVacations(ctx, dentistID, f, from, to)
				if err != nil {
					return fmt.Errorf("imported %d vacation(s) before failing: %w", n, err)
				}
				fmt.Printf("Imported %d vacation(s).\n", n)
				return nil
			})
		},
	}
	importCmd.Flags().String("dentist", "", "Dentist ID")
	importCmd.Flags().String("file", "", "Path to an .ics file")
	importCmd.Flags().String("from", "", "First day to import (YYYY-MM-DD, default today)")
	importCmd.Flags().String("to", "", "Last day to import (YYYY-MM-DD, default one year after --from)")
	cmd.AddCommand(importCmd)

	return cmd
}

func nextFreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-free",
		Short: "Print the next free slot for a dentist",
		RunE: func(cmd *cobra.Command, args []string) error {
			dentistID, _ := cmd.Flags().GetString("dentist")
			if dentistID == "" {
				return fmt.Errorf("--dentist is required")
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				snap, err := a.source.Snapshot(ctx)
				if err != nil {
					return err
				}
				slot := a.engine.FindNextFree(dentistID, snap)
				if slot == nil {
					fmt.Println("No free slot in the search window.")
					return nil
				}
				fmt.Printf("%s %s\n", slot.Date, slot.Time)
				return nil
			})
		},
	}
	cmd.Flags().String("dentist", "", "Dentist ID")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

// backend loads the config and connects to the store of record. Commands
// that only make sense against a database use it.
func backend(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.HasBackend() {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// withApp builds the board against the database, runs fn and drains the
// write queues before returning.
func withApp(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, pool, err := backend(parent)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger := newLogger(cfg).Level(zerolog.WarnLevel)
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	a.load(ctx)
	defer a.close()

	return fn(ctx, a)
}

func importWindow(fromFlag, toFlag string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	from := slotgrid.StartOfDay(now)
	if fromFlag != "" {
		d, err := slotgrid.ParseDateKey(fromFlag, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = d
	}
	to := from.AddDate(1, 0, 0)
	if toFlag != "" {
		d, err := slotgrid.ParseDateKey(toFlag, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", slotgrid.DateKey(to), slotgrid.DateKey(from))
	}
	return from, to, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set; running in local mode, changes are kept in memory only")
	}

	a, err := newApp(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build board")
	}
	a.load(ctx)

	if pool == nil && cfg.SeedFile != "" {
		if f, err := sandbox.LoadFile(cfg.SeedFile); err != nil {
			logger.Error().Err(err).Str("file", cfg.SeedFile).Msg("read seed file")
		} else if res, err := a.seeder.Apply(ctx, f); err != nil {
			logger.Error().Err(err).Str("file", cfg.SeedFile).Msg("apply seed file")
		} else {
			logger.Info().Int("dentists", res.Dentists).Int("patients", res.Patients).
				Int("appointments", res.Appointments).Msg("seeded local board")
		}
	}

	gate := auth.NewGate(auth.GateConfig{
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.AdminSessionSecret,
	})
	if !gate.Enabled() {
		logger.Warn().Msg("admin gate disabled; set ADMIN_PASSWORD_HASH and ADMIN_SESSION_SECRET")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": version,
			"backend": pool != nil,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	root := e.Group("")
	api := e.Group("/api/v1")
	admin := api.Group("/admin", gate.RequireAdmin())

	auth.NewHandler(gate).RegisterRoutes(api, middleware.RateLimit(middleware.LoginRateLimit))

	scheduling.NewHandler(a.registry, a.patients).RegisterRoutes(api)
	identity.NewHandler(a.patients, a.files).RegisterRoutes(api)
	clinic.NewHandler(a.clinic, a.registry, a.patients).RegisterRoutes(api, admin)
	availability.NewHandler(a.engine, a.source).RegisterRoutes(api)
	auditevent.NewHandler(a.audit).RegisterRoutes(admin)
	sandbox.NewHandler(a.seeder).RegisterRoutes(admin)

	wsHandler := websocket.NewHandler(a.hub, cfg.CORSOrigins)
	wsHandler.RegisterRoutes(root)
	gestures := board.NewGestures(wsHandler, a.registry, a.builder, logger)
	board.NewHandler(a.builder, gestures).RegisterRoutes(api, root)
	blobstore.NewHandler(a.blobs).RegisterRoutes(root)

	ticker := board.NewTicker(a.hub, a.clinic, logger, board.WithTickerClock(func() time.Time {
		return time.Now().In(a.loc)
	}))
	go ticker.Run(ctx)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("backend", pool != nil).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	a.close()
	cancel()
	logger.Info().Msg("server stopped")
	return nil
}

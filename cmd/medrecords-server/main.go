package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/medrecords/internal/config"
	"github.com/ehr/medrecords/internal/domain/board"
	"github.com/ehr/medrecords/internal/domain/directory"
	"github.com/ehr/medrecords/internal/domain/records"
	"github.com/ehr/medrecords/internal/domain/session"
	"github.com/ehr/medrecords/internal/domain/workflow"
	"github.com/ehr/medrecords/internal/platform/analysis"
	"github.com/ehr/medrecords/internal/platform/auth"
	"github.com/ehr/medrecords/internal/platform/cache"
	"github.com/ehr/medrecords/internal/platform/db"
	"github.com/ehr/medrecords/internal/platform/middleware"
	"github.com/ehr/medrecords/internal/platform/tables"
	"github.com/ehr/medrecords/migrations"
)

// Model routes get their own, tighter budget on top of the global limit.
const (
	modelRequestsPerSecond = 0.2
	modelBurst             = 3
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medrecords-server",
		Short: "Medical records analysis API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(devTokenCmd())

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
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR, then the embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
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
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR, then the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return fmt.Errorf("migrations only apply to STORE_BACKEND=%s", config.StoreBackendPostgres)
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigratorFS(pool, migrationsFS(dir)))
}

// migrationsFS prefers an explicit directory and falls back to the SQL
// files compiled into the binary.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a report image with the configured model and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			withBoard, _ := cmd.Flags().GetBool("board")
			if path == "" {
				return fmt.Errorf("--file is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateAnalysis(); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			art, err := workflow.NewArtifact(filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), data)
			if err != nil {
				return fmt.Errorf("%s: %w", workflow.MsgNotImage, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AnalysisTimeout)
			defer cancel()
			client, err := newAnalysisClient(ctx, cfg)
			if err != nil {
				return err
			}

			narrative, err := client.AnalyzeReport(ctx, art.Data, art.MediaType)
			if err != nil {
				return fmt.Errorf("%s: %w", workflow.MsgUploadFailed, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), narrative)
			if !withBoard {
				return nil
			}

			raw, err := client.GenerateBoard(ctx, narrative)
			if err != nil {
				return fmt.Errorf("%s: %w", workflow.MsgBoardFailed, err)
			}
			b, err := board.Parse(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", workflow.MsgBoardParse, err)
			}
			out, err := sonic.ConfigStd.MarshalIndent(board.Render(b), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().String("file", "", "Path to the report image")
	cmd.Flags().Bool("board", false, "Also generate and print the task board")
	return cmd
}

func devTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint an identity token signed with AUTH_SIGNING_KEY (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.IsDev() || cfg.AuthSigningKey == "" {
				return fmt.Errorf("dev-token requires ENV=development and AUTH_SIGNING_KEY")
			}
			tok, err := auth.IssueDevToken([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "did:privy:dev", "Token subject")
	cmd.Flags().String("email", "dev@example.com", "Email claim")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func newAnalysisClient(ctx context.Context, cfg *config.Config) (analysis.Client, error) {
	switch cfg.AnalysisMode {
	case config.AnalysisModeGemini:
		return analysis.NewGeminiClient(ctx, analysis.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	case config.AnalysisModeProxy:
		return analysis.NewProxyClient(analysis.ProxyConfig{
			BaseURL: cfg.AnalysisProxyURL,
			APIKey:  cfg.AnalysisProxyKey,
			Model:   cfg.AnalysisProxyModel,
			Timeout: cfg.AnalysisTimeout,
		}), nil
	case config.AnalysisModeStatic:
		return analysis.NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown ANALYSIS_MODE %q", cfg.AnalysisMode)
	}
}

// stores holds whichever backend STORE_BACKEND selected.
type stores struct {
	records records.Repository
	users   directory.Repository
	pool    *pgxpool.Pool
	checks  map[string]db.Check
	close   func()
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendTables:
		svc, err := tables.New(cfg.TablesConnStr)
		if err != nil {
			return nil, fmt.Errorf("table service: %w", err)
		}
		if err := svc.Ensure(ctx, cfg.RecordsTable, cfg.UsersTable); err != nil {
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
		logger.Info().Str("records", cfg.RecordsTable).Str("users", cfg.UsersTable).Msg("using table storage")
		return &stores{
			records: records.NewRecordRepoTables(svc.Table(cfg.RecordsTable)),
			users:   directory.NewUserRepoTables(svc.Table(cfg.UsersTable)),
			checks:  map[string]db.Check{},
			close:   func() {},
		}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to database")
		return &stores{
			records: records.NewRecordRepoPG(pool),
			users:   directory.NewUserRepoPG(pool),
			pool:    pool,
			checks:  map[string]db.Check{"database": db.PoolCheck(pool)},
			close:   pool.Close,
		}, nil
	}
}

// deps is everything newServer wires together.
type deps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	verifier *auth.Verifier
	records  records.Repository
	users    directory.Repository
	redis    *redis.Client
	client   analysis.Client
	checks   map[string]db.Check
	pool     *pgxpool.Pool
}

func newServer(d deps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(auth.SessionMiddleware(d.verifier))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit("1M", cfg.MaxUploadSize))
	e.Use(middleware.RequestTimeout(cfg.AnalysisTimeout + 30*time.Second))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	var users directory.Repository = d.users
	if d.redis != nil {
		users = directory.NewCachedLookup(d.users, d.redis, cfg.DirectoryCache, logger)
	}
	dirSvc := directory.NewService(users, logger)
	recSvc := records.NewService(d.records, logger)
	flowSvc := workflow.NewService(recSvc, d.client, cfg.AnalysisTimeout, logger)
	ctrl := session.NewController(dirSvc, logger)

	apiV1 := e.Group("/api/v1")
	session.NewHandler(ctrl).RegisterRoutes(apiV1)
	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)
	records.NewHandler(recSvc, dirSvc).RegisterRoutes(apiV1)
	workflow.NewHandler(flowSvc, recSvc, dirSvc, middleware.ParseLimit(cfg.MaxUploadSize)).
		RegisterRoutes(apiV1, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: modelRequestsPerSecond,
			BurstSize:         modelBurst,
		}))

	checks := map[string]db.Check{
		"identity": func(ctx context.Context) error {
			if !d.verifier.Refresh(ctx) {
				return errors.New("identity keys not loaded")
			}
			return nil
		},
	}
	for name, check := range d.checks {
		checks[name] = check
	}
	if d.redis != nil {
		rc := d.redis
		checks["cache"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	e.GET("/health", db.HealthHandler(checks, d.pool))

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open stores")
		return err
	}
	defer st.close()

	rc, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		// The directory works without its cache.
		logger.Warn().Err(err).Msg("redis unavailable, directory cache disabled")
		rc = nil
	}
	if rc != nil {
		defer rc.Close()
	}

	client, err := newAnalysisClient(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create analysis client")
		return err
	}

	verifier := auth.NewVerifier(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
	if err := verifier.Warm(ctx); err != nil {
		// Requests retry the fetch until it succeeds; sessions report not-ready meanwhile.
		logger.Warn().Err(err).Msg("identity keys not loaded yet")
	}

	e := newServer(deps{
		cfg:      cfg,
		logger:   logger,
		verifier: verifier,
		records:  st.records,
		users:    st.users,
		redis:    rc,
		client:   client,
		checks:   st.checks,
		pool:     st.pool,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreBackend).Str("analysis", cfg.AnalysisMode).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

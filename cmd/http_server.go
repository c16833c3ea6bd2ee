package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	auditPostgres "github.com/frahmantamala/thesis-repository/internal/audit/postgres"
	"github.com/frahmantamala/thesis-repository/internal/auth"
	authPostgres "github.com/frahmantamala/thesis-repository/internal/auth/postgres"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/frahmantamala/thesis-repository/internal/observability"
	"github.com/frahmantamala/thesis-repository/internal/pdf"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/thesis"
	thesisPostgres "github.com/frahmantamala/thesis-repository/internal/thesis/postgres"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/frahmantamala/thesis-repository/internal/transport/rest"
	"github.com/frahmantamala/thesis-repository/internal/user"
	userPostgres "github.com/frahmantamala/thesis-repository/internal/user/postgres"
	"github.com/frahmantamala/thesis-repository/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var openAPIFile string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().StringVar(&openAPIFile, "openapi", "./api/openapi.yml", "OpenAPI document served at /openapi.yml; empty disables swagger")
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Redis  *redis.Client
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := setupRoutes(deps); err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		deps.Close()
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Server.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	files, err := storage.NewLocal(cfg.Storage.MediaRoot, lg)
	if err != nil {
		return err
	}
	mediaURL := strings.TrimRight(cfg.Server.BaseURL, "/") + "/media/"

	policy := password.NewPolicy(password.Config{
		HistoryLimit: cfg.Password.HistoryLimit,
		ExpiryDays:   cfg.Password.ExpiryDays,
		MinLength:    cfg.Password.MinLength,
		BCryptCost:   cfg.Security.BCryptCost,
	})

	recorder := audit.NewRecorder(auditPostgres.NewAuditRepository(deps.Gorm), lg)
	executor := audit.NewExecutor(recorder)

	var revoked auth.RevocationStore = auth.NoopRevocationStore{}
	if deps.Redis != nil {
		revoked = auth.NewRedisRevocationStore(deps.Redis)
	}
	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), tokens, revoked, executor, lg)
	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), policy, files, executor, lg, mediaURL)
	thesisService := thesis.NewService(thesisPostgres.NewThesisRepository(deps.Gorm), pdf.NewInspector(), files, executor, lg, mediaURL)

	base := transport.NewBaseHandler(lg).WithPasswordStatus(policy)

	checks := map[string]rest.Check{
		"postgres": deps.DB.PingContext,
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	if openAPIFile != "" {
		if _, err := os.Stat(openAPIFile); err != nil {
			lg.Warn("openapi document not found, swagger disabled", "path", openAPIFile)
			openAPIFile = ""
		}
	}

	if cfg.Observability.Metrics.Enabled {
		observability.RegisterMetrics()
	}

	rest.RegisterAllRoutes(deps.Router, rest.Routes{
		Auth:           auth.NewHandler(base, authService),
		RBAC:           auth.NewRBACAuthorization(base, lg),
		User:           user.NewHandler(base, userService, cfg.Storage.MaxUploadBytes),
		Thesis:         thesis.NewHandler(base, thesisService, cfg.Storage.MaxUploadBytes, cfg.Pagination.PageSize),
		Audit:          audit.NewHandler(base, recorder, cfg.Pagination.PageSize),
		Health:         rest.NewHealthHandler(checks),
		Media:          files.Handler(),
		Origins:        cfg.Server.Origins(),
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
		OpenAPIFile:    openAPIFile,
	}, lg)

	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		Gorm:   gdb,
		Router: chi.NewRouter(),
	}

	if config.Redis.URL != "" {
		client, err := initRedis(config.Redis.URL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = client
	} else {
		lg.Warn("redis not configured, token revocation is disabled")
	}

	return deps, nil
}

func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
		d.Redis = nil
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
		d.DB = nil
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func initRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/pixelgate/internal/audit"
	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/config"
	"github.com/wisbric/pixelgate/internal/httpserver"
	"github.com/wisbric/pixelgate/internal/platform"
	"github.com/wisbric/pixelgate/internal/telemetry"
	"github.com/wisbric/pixelgate/pkg/history"
	"github.com/wisbric/pixelgate/pkg/imaging"
	"github.com/wisbric/pixelgate/pkg/objectstore"
	"github.com/wisbric/pixelgate/pkg/redeem"
	"github.com/wisbric/pixelgate/pkg/task"
	"github.com/wisbric/pixelgate/pkg/upstream"
	"github.com/wisbric/pixelgate/pkg/user"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, runs migrations, wires every domain handler onto the HTTP
// server, and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting pixelgate", "listen", cfg.ListenAddr())

	// Database
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	// Redis
	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	// Migrations
	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	// Metrics
	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	tokenTTL, err := time.ParseDuration(cfg.JWTTokenTTL)
	if err != nil {
		return fmt.Errorf("parsing JWT_TOKEN_TTL %q: %w", cfg.JWTTokenTTL, err)
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, tokenTTL)
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}

	loginWindow, err := time.ParseDuration(cfg.LoginWindow)
	if err != nil {
		return fmt.Errorf("parsing LOGIN_RATE_LIMIT_WINDOW %q: %w", cfg.LoginWindow, err)
	}
	rateLimiter := auth.NewRateLimiter(rdb, cfg.LoginMaxFail, loginWindow)

	// Audit log writer (async, buffered).
	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, tokens)

	// --- Control plane: auth, users, quota ---
	userStore := user.NewStore(db)
	userService := user.NewService(userStore, tokens, logger)
	userHandler := user.NewHandler(userService, logger, auditWriter, rateLimiter)
	srv.Router.Mount("/api/auth", userHandler.AuthRoutes())
	srv.APIRouter.Mount("/users", userHandler.UserRoutes())
	srv.APIRouter.Mount("/quota", userHandler.QuotaRoutes())

	// --- Redemption codes ---
	redeemService := redeem.NewService(db, logger)
	redeemHandler := redeem.NewHandler(redeemService, logger, auditWriter)
	srv.APIRouter.Mount("/redeem", redeemHandler.RedeemRoutes())
	srv.APIRouter.Mount("/codes", redeemHandler.CodeRoutes())

	// --- Generation history ---
	historyService := history.NewService(db, logger)
	historyHandler := history.NewHandler(historyService, logger)
	srv.APIRouter.Mount("/history", historyHandler.Routes())

	// --- Object storage (B2-like native protocol) ---
	objectsClient := objectstore.NewClient(http.DefaultClient, cfg.B2APIBaseURL, cfg.B2KeyID, cfg.B2AppKey, cfg.B2BucketName)
	objectsHandler := objectstore.NewHandler(objectsClient, logger)
	srv.Router.Mount("/i", objectsHandler.Routes())
	srv.Router.Get("/__b2check", objectsHandler.HandlePrecheck)

	// --- Reference-image intake ---
	publicBase := cfg.PublicImageBase()
	fetcher := imaging.NewFetcher(http.DefaultClient, cfg.AllowRefImageHosts, cfg.AllowRefImageHTTP, cfg.MaxRefImageBytes)
	imagingHandler := imaging.NewHandler(objectsClient, publicBase, logger)
	srv.APIRouter.Mount("/upload/image", imagingHandler.Routes())

	// --- Upstream generative model (Vertex-like) ---
	cred, err := upstream.ParseCredential(cfg.GCPServiceAccountJSON, cfg.GCPSAClientEmail, cfg.GCPSAPrivateKey, cfg.GCPTokenURI)
	if err != nil {
		return fmt.Errorf("parsing GCP service account credential: %w", err)
	}
	authenticator := upstream.NewAuthenticator(cred)
	projectRouter := upstream.NewProjectRouter(cfg.VertexProjectIDs)
	modelClient := upstream.NewClient(http.DefaultClient, authenticator, projectRouter, cfg.VertexLocation, cfg.VertexModel, cfg.VertexEndpointMode)
	srv.Router.Get("/__vertexcheck", upstream.HandlePrecheck(modelClient))

	// --- Asynchronous generation tasks ---
	// Mounted at the root, not under /api: spec.md §6 puts POST /generate
	// and GET /task/:id at the top level.
	taskStore := task.NewStore(rdb)
	taskService := task.NewService(taskStore, fetcher, modelClient, objectsClient, cfg.KeyPrefix, publicBase, cfg.MaxImagesPerResponse, logger)
	taskHandler := task.NewHandler(taskService, logger)
	srv.Router.Mount("/", taskHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idvault/docs"
	"idvault/internal/config"
	"idvault/internal/database"
	"idvault/internal/database/migration"
	handlers "idvault/internal/http/handler"
	"idvault/internal/http/middleware"
	idotel "idvault/internal/otel"
	"idvault/internal/repository/postgres"
	"idvault/internal/service"
	"idvault/internal/storage"
)

// @title ID Vault API
// @version 1.0
// @BasePath /
func main() {
	ctx := context.Background()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	// Initialize tracing; degrades to a noop provider when disabled
	shutdownTracing, err := idotel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize the S3-compatible blob store (MinIO-supported)
	blobStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	// Optional local-disk mirror; its failures never fail an upload
	var mirror *storage.MirrorSink
	if cfg.Mirror.Enabled {
		mirror, err = storage.NewMirrorSink(cfg.Mirror.Dir)
		if err != nil {
			log.Fatalf("failed to initialize mirror sink: %v", err)
		}
	}

	// Initialize repository and service
	objRepo := postgres.NewObjectPostgres(db)
	objSvc := service.NewObjectService(blobStore, objRepo, mirror)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	// Per-request spans
	app.Use(otelfiber.Middleware())

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, objSvc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

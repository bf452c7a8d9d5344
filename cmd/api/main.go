//	@title			DropLink API
//	@version		1.0
//	@description	File upload and short-link redirection service.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/droplink/service/internal/config"
	"github.com/droplink/service/internal/db"
	"github.com/droplink/service/internal/file"
	appMiddleware "github.com/droplink/service/internal/middleware"
	"github.com/droplink/service/internal/storage"
	"github.com/droplink/service/internal/web"

	_ "github.com/droplink/service/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	registry, closeRegistry, err := openRegistry(cfg)
	if err != nil {
		log.Fatalf("registry init failed: %v", err)
	}
	defer closeRegistry()

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("blob storage init failed: %v", err)
	}

	// Wire dependencies: registry → service → handler
	cache := file.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)
	svc := file.NewService(registry, store, cache)
	handler := file.NewHandler(svc, newDeliverer(cfg, store), cfg.BaseURL, cfg.MaxUploadBytes)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(appMiddleware.Metrics())
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", web.Landing)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI, available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RequireUploadToken(cfg.UploadAuthSecret))
		r.Post("/upload", handler.Upload)
	})
	r.Get("/file/{shortID}", handler.Serve)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// Large uploads and downloads on slow links need room; only header
		// reads and idle keep-alives get tight bounds.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, delivery=%s)", cfg.Port, cfg.AppEnv, cfg.DeliveryMode)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// openRegistry connects the registry backend selected by DATABASE_URL and
// runs its migrations.
func openRegistry(cfg *config.Config) (file.Registry, func(), error) {
	driver, dsn := cfg.DatabaseDriver()
	switch driver {
	case "postgres":
		pool, err := db.ConnectPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigratePostgres(dsn); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return file.NewPostgresRegistry(pool), pool.Close, nil
	default:
		sqlDB, err := db.OpenSQLite(dsn)
		if err != nil {
			return nil, nil, err
		}
		return file.NewSQLiteRegistry(sqlDB), func() { sqlDB.Close() }, nil
	}
}

// openStorage builds the blob store selected by STORAGE_DRIVER.
func openStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageDriver == config.StorageMinio {
		return storage.NewMinioStorage(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StoragePublicBase,
			cfg.StorageUseSSL,
		)
	}
	return storage.NewLocalStorage(cfg.StorageLocalDir)
}

// newDeliverer builds the delivery strategy selected by DELIVERY_MODE.
// Config validation has already rejected driver combinations that cannot
// work, like proxying blobs that only exist on local disk.
func newDeliverer(cfg *config.Config, store storage.Storage) file.Deliverer {
	switch cfg.DeliveryMode {
	case config.DeliveryRedirect:
		return file.NewRedirectDeliverer(store, cfg.RedirectAttachment)
	case config.DeliveryProxy:
		return file.NewProxyDeliverer(cfg.ProxyTimeout)
	default:
		return file.NewLocalDeliverer()
	}
}

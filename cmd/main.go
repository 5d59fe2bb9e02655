package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"replaydrive/internal/config"
	"replaydrive/internal/handler"
	"replaydrive/internal/repository"
	"replaydrive/internal/service"
	"replaydrive/internal/service/events"
	"replaydrive/internal/service/remote"
	"replaydrive/internal/storage"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// newRemoteStorage выбирает провайдера удаленного хранилища по конфигурации
func newRemoteStorage(cfg *remote.Config) (remote.Storage, error) {
	switch cfg.Provider {
	case "s3":
		return remote.NewS3Client(cfg)
	case "minio":
		return remote.NewMinioClient(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Удаленное объектное хранилище
	storageConfig, err := remote.NewConfig(".storage.env")
	if err != nil {
		log.Fatalf("Failed to load storage config: %v", err)
	}

	remoteStore, err := newRemoteStorage(storageConfig)
	if err != nil {
		log.Fatalf("Failed to create remote storage client: %v", err)
	}
	docStore := remote.NewObjectDocumentStore(remoteStore)

	// Локальное хранилище видеофайлов
	localStore, err := storage.NewLocalStore(appConfig.Server.MediaDir)
	if err != nil {
		log.Fatalf("Failed to create local store: %v", err)
	}

	// Шина событий; при настроенном NATS события уходят и наружу
	bus := events.NewBus()
	defer bus.Close()
	var publisher events.Publisher = bus
	if appConfig.NATS.URL != "" {
		natsPub, err := events.NewNATSPublisher(appConfig.NATS.URL, appConfig.NATS.Subject, "replaydrive")
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsPub.Close()
		publisher = events.Fanout{bus, natsPub}
	}

	// Инициализация репозиториев
	recordRepo := repository.NewRecordRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	// Восстановление после аварийного завершения: записи не могут
	// оставаться в syncing или processing без живой задачи
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	reset, err := recordRepo.ResetStaleStatuses(bootCtx)
	bootCancel()
	if err != nil {
		log.Fatalf("Failed to reset stale statuses: %v", err)
	}
	if reset > 0 {
		log.Printf("Reset %d stale record status(es) after restart", reset)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()

	// Инициализация сервисов
	recoveryService := service.NewRecoveryService(publisher)
	permissionService := service.NewPermissionService(folderRepo)
	syncRegistry := service.NewSyncRegistry(baseCtx, func(owner string) *service.SyncService {
		return service.NewSyncService(
			owner,
			recordRepo,
			docStore,
			remoteStore,
			localStore,
			recoveryService,
			publisher,
			appConfig.Sync.BatchThreshold,
			time.Duration(appConfig.Sync.IntervalSeconds)*time.Second,
		)
	})
	videoService := service.NewVideoService(
		recordRepo,
		localStore,
		remoteStore,
		docStore,
		syncRegistry,
		permissionService,
		recoveryService,
		publisher,
		appConfig.Transfer.MaxConcurrentUploads,
		appConfig.Transfer.LocalCeiling,
	)
	processingService, err := service.NewProcessingService(recordRepo, localStore, syncRegistry, publisher)
	if err != nil {
		log.Fatalf("Failed to create processing service: %v", err)
	}

	// Инициализация хендлеров
	recordHandler := handler.NewRecordHandler(recordRepo, videoService, processingService)
	syncHandler := handler.NewSyncHandler(syncRegistry)
	transferHandler := handler.NewTransferHandler(videoService)
	folderHandler := handler.NewFolderHandler(folderRepo)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/records", recordHandler.ImportRecord)
		r.Get("/records", recordHandler.ListRecords)

		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", recordHandler.GetRecord)
			r.Delete("/", recordHandler.DeleteRecord)
			r.Put("/tags", recordHandler.UpdateTags)
			r.Put("/highlight", recordHandler.SetHighlight)
			r.Put("/rename", recordHandler.RenameRecord)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/batch", transferHandler.UploadBatch)
			r.Post("/{id}/upload", transferHandler.StartUpload)
			r.Post("/{id}/download", transferHandler.StartDownload)
			r.Post("/{id}/cancel", transferHandler.CancelTransfer)
			r.Get("/{id}/progress", transferHandler.GetProgress)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", syncHandler.TriggerSync)
			r.Get("/status", syncHandler.GetStatus)
			r.Get("/conflicts", syncHandler.ListConflicts)
			r.Post("/conflicts/{id}/resolve", syncHandler.ResolveConflict)
		})

		r.Post("/storage/cleanup", transferHandler.StorageCleanup)

		r.Post("/folders", folderHandler.CreateFolder)
		r.Get("/folders", folderHandler.ListFolders)
		r.Get("/folders/{id}", folderHandler.GetFolder)
		r.Put("/folders/{id}/collaborators", folderHandler.UpdateCollaborators)
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	baseCancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}

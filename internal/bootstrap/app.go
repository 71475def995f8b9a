package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"training-backend/internal/compression"
	"training-backend/internal/documents"
	"training-backend/internal/queue"
	"training-backend/internal/shared/config"
	"training-backend/internal/shared/server"
	"training-backend/internal/shared/storage/db"
	"training-backend/internal/shared/storage/object"
	localstore "training-backend/internal/shared/storage/object/local"
	s3store "training-backend/internal/shared/storage/object/s3"
	"training-backend/internal/training"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	Store      object.ObjectStore
	Publisher  queue.Publisher
	Compressor *compression.Compressor

	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	TrainingService  *training.Service

	DocumentsHandler *documents.Handler
	TrainingHandler  *training.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	compressor, err := compression.New(
		cfg.CompressPoolSize,
		time.Duration(cfg.CompressTimeoutSeconds)*time.Second,
		cfg.FFmpegPath,
	)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		Store:      store,
		Publisher:  publisher,
		Compressor: compressor,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocumentsHandler,
		TrainingHandler: app.TrainingHandler,
	})

	return app, nil
}

// Close releases pooled resources.
func (a *App) Close() {
	if a.Compressor != nil {
		a.Compressor.Release()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (queue.Publisher, error) {
	urls := map[string]string{}
	if strings.TrimSpace(cfg.NewResourcesQueueURL) != "" {
		urls[queue.QueueNewResources] = cfg.NewResourcesQueueURL
	}
	if strings.TrimSpace(cfg.DeleteResourceQueueURL) != "" {
		urls[queue.QueueDeleteResource] = cfg.DeleteResourceQueueURL
	}
	if len(urls) == 0 {
		log.Printf("bootstrap: no queue URLs configured; events will be dropped")
		return queue.NopPublisher{}, nil
	}
	return queue.NewSQSPublisher(ctx, cfg.AWSRegion, urls)
}

func buildServices(app *App) {
	var repo documents.Repo
	if app.DB != nil {
		repo = &documents.PGRepo{DB: app.DB}
	} else {
		repo = documents.NewMemoryRepo()
	}

	docSvc := &documents.Service{Repo: repo}

	region := app.Config.AWSRegion
	bucket := app.Config.S3Bucket
	if app.Config.ObjectStoreType != "s3" {
		region = ""
		bucket = ""
	}

	trainingSvc := &training.Service{
		Docs:        docSvc,
		Store:       app.Store,
		Publisher:   app.Publisher,
		Compressor:  app.Compressor,
		Bucket:      bucket,
		Region:      region,
		MaxParallel: app.Config.MaxUploadFiles,
	}

	app.DocumentsRepo = repo
	app.DocumentsService = docSvc
	app.TrainingService = trainingSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.TrainingHandler = training.NewHandler(trainingSvc, app.Config.MaxUploadFiles, app.Config.MaxUploadBytes)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// Package app assembles repositories, media storage and domain services from
// configuration. Both the API server and muvicoctl start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muvico/platform/internal/blob"
	"github.com/muvico/platform/internal/cache"
	"github.com/muvico/platform/internal/config"
	"github.com/muvico/platform/internal/database"
	"github.com/muvico/platform/internal/domain"
	"github.com/muvico/platform/internal/domain/media"
	"github.com/muvico/platform/internal/domain/presentations"
	"github.com/muvico/platform/internal/storage/memory"
	pgstorage "github.com/muvico/platform/internal/storage/postgres"
)

// Options tunes how the application is assembled.
type Options struct {
	// Migrate applies pending schema migrations after connecting.
	Migrate  bool
	Observer presentations.Observer
}

// App holds the assembled dependencies.
type App struct {
	Config config.Config
	Logger *zap.Logger
	DB     *database.DB
	Cache  *cache.RedisURLCache
	Store  blob.Store
	Domain domain.Container

	closers []func() error
}

// New connects to the configured backends and builds the domain container.
// Close must be called to release connections.
func New(ctx context.Context, cfg config.Config, logr *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logr}

	if err := a.openDatabase(ctx, opts.Migrate); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	container, err := a.buildDomainContainer(opts.Observer)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Domain = container
	return a, nil
}

func (a *App) openDatabase(ctx context.Context, migrate bool) error {
	if a.Config.DataBackend != "postgres" {
		return nil
	}
	db, err := database.Connect(ctx, database.Options{
		DSN:             a.Config.DatabaseURL,
		MaxOpenConns:    a.Config.DBMaxOpenConns,
		MaxIdleConns:    a.Config.DBMaxIdleConns,
		ConnMaxLifetime: a.Config.DBConnMaxLifetime,
		ConnMaxIdleTime: a.Config.DBConnMaxIdleTime,
		ConnectTimeout:  a.Config.DBConnectTimeout,
		Logger:          a.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if migrate {
		if err := db.RunMigrations(ctx, database.NewSchemaMigrator(db, a.Logger)); err != nil {
			return fmt.Errorf("database migrations: %w", err)
		}
	}
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	var store blob.Store
	switch a.Config.MediaBackend {
	case "memory":
		a.Logger.Info("using in-memory media store (MEDIA_BACKEND=memory)")
		store = blob.NewMemoryStore(a.Config.MediaBucket)
	case "s3":
		s3Store, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:          a.Config.S3Region,
			Bucket:          a.Config.MediaBucket,
			Endpoint:        a.Config.S3Endpoint,
			ForcePathStyle:  a.Config.S3ForcePathStyle,
			AccessKeyID:     a.Config.S3AccessKey,
			SecretAccessKey: a.Config.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("init s3 store: %w", err)
		}
		a.Logger.Info("using s3 media store", zap.String("bucket", a.Config.MediaBucket), zap.String("region", a.Config.S3Region))
		store = blob.NewRetryingStore(s3Store, blob.DefaultRetryConfig)
	case "gcs":
		gcsStore, err := blob.NewGCSStore(ctx, a.Config.MediaBucket, a.Config.GCSCredentialsFile)
		if err != nil {
			return fmt.Errorf("init gcs store: %w", err)
		}
		a.closers = append(a.closers, gcsStore.Close)
		a.Logger.Info("using gcs media store", zap.String("bucket", a.Config.MediaBucket))
		store = blob.NewRetryingStore(gcsStore, blob.DefaultRetryConfig)
	default:
		return fmt.Errorf("unsupported media backend: %s", a.Config.MediaBackend)
	}

	if a.Config.RedisURL != "" {
		urlCache, err := cache.NewRedisURLCache(ctx, a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("init url cache: %w", err)
		}
		a.Cache = urlCache
		a.closers = append(a.closers, urlCache.Close)
		a.Logger.Info("caching signed media urls in redis")
		store = blob.NewCachedStore(store, urlCache, a.Logger)
	}

	a.Store = store
	return nil
}

func (a *App) buildDomainContainer(observer presentations.Observer) (domain.Container, error) {
	opts := domain.Options{
		MediaStore: a.Store,
		Limits: media.Limits{
			MaxFileSize:         a.Config.MaxFileSize,
			MaxPresentationSize: a.Config.MaxPresentationSize,
		},
		URLTTL:   a.Config.MediaURLTTL,
		Observer: observer,
		Logger:   a.Logger,
	}

	switch a.Config.DataBackend {
	case "memory":
		a.Logger.Info("using in-memory repositories (DATA_BACKEND=memory)")
		opts.UserRepo = memory.NewUserRepository()
		opts.PresentationRepo = memory.NewPresentationRepository()
	case "postgres":
		if a.DB == nil {
			return domain.Container{}, errors.New("postgres backend requires database connection")
		}
		a.Logger.Info("using postgres repositories (DATA_BACKEND=postgres)")
		opts.UserRepo = pgstorage.NewUserRepository(a.DB.DB)
		opts.PresentationRepo = pgstorage.NewPresentationRepository(a.DB.DB)
	default:
		return domain.Container{}, fmt.Errorf("unsupported data backend: %s", a.Config.DataBackend)
	}
	return domain.New(opts), nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

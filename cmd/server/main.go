package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	natsInfra "github.com/fastygo/taskboard/internal/infrastructure/nats"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	sqliteInfra "github.com/fastygo/taskboard/internal/infrastructure/sqlite"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/services"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/repository/postgres"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
	"github.com/fastygo/taskboard/usecase"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type stores struct {
	users repository.UserRepository
	tasks repository.TaskRepository
	ping  monitor.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	db := openStores(appCtx, cfg, manager, zapLogger)

	var (
		revoked repository.RevocationRepository
		cache   monitor.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.RegisterCloser("redis", redisClient)
		revoked = redisRepo.NewRevocationRepository(redisClient)
		cache = monitor.PingFunc(redisInfra.Ping(redisClient))
	} else {
		zapLogger.Warn("redis disabled; logged-out tokens stay valid until they expire")
	}

	var events usecase.EventPublisher = usecase.NopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := natsInfra.Connect(cfg.NATS, cfg.AppName, zapLogger)
		if err != nil {
			zapLogger.Fatal("nats connection failed", zap.Error(err))
		}
		manager.Register("nats", func(context.Context) error {
			return nc.Drain()
		})
		events = natsInfra.NewPublisher(nc, cfg.NATS.SubjectPrefix, zapLogger)
	}

	var (
		bufferStore *buffer.Store
		sizer       monitor.Sizer
	)
	if cfg.Buffer.Enabled {
		bufferStore, err = buffer.Open(cfg.Buffer.Path, "")
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.RegisterCloser("buffer", bufferStore)
		sizer = bufferStore
	}

	mon := monitor.New(monitor.Options{
		Database: db.ping,
		Cache:    cache,
		Buffer:   sizer,
		Interval: 10 * time.Second,
	}, zapLogger)
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	var operationBuffer usecase.OperationBuffer
	if bufferStore != nil {
		processor := services.NewBufferProcessor(
			bufferStore,
			mon,
			db.tasks,
			events,
			zapLogger,
			services.ProcessorConfig{
				Interval:   cfg.Buffer.SyncInterval,
				BatchSize:  50,
				MaxRetries: cfg.Buffer.MaxRetry,
				Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
			},
		)
		processor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			processor.Stop(ctx)
			return nil
		})
		operationBuffer = services.NewBufferBridge(processor)
	}

	tokens := authUC.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	authUseCase := authUC.New(db.users, revoked, authUC.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, events, zapLogger)
	taskUseCase := taskUC.New(db.tasks, operationBuffer, events, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handler := router.New(router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, cfg.IsProduction()),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}, middleware.Session(authUseCase, ctxAdapter, zapLogger))

	server := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("db_driver", cfg.Database.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server stopped", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", server.ShutdownWithContext)

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) stores {
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := sqliteInfra.Open(cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("sqlite open failed", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			zapLogger.Fatal("sqlite handle unavailable", zap.Error(err))
		}
		manager.RegisterCloser("sqlite", sqlDB)
		return stores{
			users: sqliteRepo.NewUserRepository(db),
			tasks: sqliteRepo.NewTaskRepository(db),
			ping:  monitor.PingFunc(sqliteInfra.Ping(sqlDB)),
		}
	}

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}
	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	return stores{
		users: postgres.NewUserRepository(pool),
		tasks: postgres.NewTaskRepository(pool),
		ping:  pool,
	}
}

package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/api"
	"github.com/justin13888/beam/internal/auth"
	"github.com/justin13888/beam/internal/config"
	"github.com/justin13888/beam/internal/db"
	"github.com/justin13888/beam/internal/hash"
	"github.com/justin13888/beam/internal/indexer"
	"github.com/justin13888/beam/internal/indexrpc"
	"github.com/justin13888/beam/internal/jobs"
	"github.com/justin13888/beam/internal/mediainfo"
	"github.com/justin13888/beam/internal/notifications"
	"github.com/justin13888/beam/internal/repository"
	"github.com/justin13888/beam/internal/scheduler"
	"github.com/justin13888/beam/internal/sessionstore"
	"github.com/justin13888/beam/internal/stream"
	"github.com/justin13888/beam/internal/version"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Printf("beamd %s starting", version.Get().Version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	database, err := db.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database connected")

	sessions, err := sessionstore.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}

	// Repositories.
	libraries := repository.NewSqlLibraryRepository(database)
	files := repository.NewSqlFileRepository(database)
	movies := repository.NewSqlMovieRepository(database)
	shows := repository.NewSqlShowRepository(database)
	streams := repository.NewSqlStreamRepository(database)
	users := auth.NewSqlUserRepository(database)

	// Process-wide singletons: hash pool, observers, remux cache.
	hasher := hash.NewWorkerPool(0)
	defer hasher.Close()
	notifier := notifications.NewLocalService()
	adminLog := notifications.NewSqlAdminLogService(database)

	probe := mediainfo.NewFFprobeService(cfg.FFmpeg.FFprobePath)
	ix := indexer.New(libraries, files, movies, shows, streams, hasher, probe, notifier, adminLog)

	transcoder := stream.NewFFmpegTranscoder(cfg.FFmpeg.FFmpegPath)
	cache, err := stream.NewCache(cfg.CacheDir, transcoder)
	if err != nil {
		log.Fatalf("init cache: %v", err)
	}

	authService := auth.NewService(users, files, sessions, cfg.JWTSecret)

	// Job queue: scans requested over HTTP or by the scheduler run here.
	redisOpt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	queue := jobs.NewQueue(redisOpt.Addr)
	jobs.RegisterHandlers(queue, ix)
	go func() {
		if err := queue.Start(context.Background()); err != nil {
			log.Printf("job queue worker error: %v", err)
		}
	}()
	defer queue.Stop()

	scanScheduler := scheduler.New(libraries, cfg.ScanInterval, func(libraryID uuid.UUID) {
		if err := queue.EnqueueScan(libraryID.String()); err != nil {
			log.Printf("[scheduler] enqueue scan: %v", err)
		}
	})
	scanScheduler.Start()
	defer scanScheduler.Stop()

	// Indexer RPC endpoint, for out-of-band scan triggers.
	rpcServer := indexrpc.NewServer(ix, cfg.IndexerRPC.Address())
	go func() {
		if err := rpcServer.ListenAndServe(); err != nil {
			log.Printf("indexer rpc server error: %v", err)
		}
	}()

	server := api.NewServer(cfg, authService, users, libraries, files, cache, ix, queue, notifier, adminLog)
	log.Printf("server listening on http://%s", cfg.Server.Address())
	if err := server.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

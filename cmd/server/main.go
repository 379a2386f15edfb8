package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"makan-backend/internal/calendar"
	"makan-backend/internal/config"
	"makan-backend/internal/database"
	"makan-backend/internal/media"
	"makan-backend/internal/store"
)

func main() {
	cfg := config.Load()

	cal, err := calendar.Load(cfg.Timezone, calendar.RealClock{})
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	st := openStore(cfg)
	images := openMedia(cfg)
	app := newApp(cfg, st, cal, images)

	go func() {
		log.Println("Server running on port:", cfg.HTTPPort)
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("[WARN] shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) store.Store {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem, err := store.NewMemory(store.MemoryOptions{
			LockWait:     cfg.TxLockWait,
			SnapshotPath: cfg.SnapshotPath,
		})
		if err != nil {
			log.Fatalf("[FATAL] memory store: %v", err)
		}
		if cfg.SnapshotPath == "" {
			log.Println("[WARN] memory store without SNAPSHOT_PATH, data is lost on restart")
		}
		return mem
	default:
		return database.NewStore(database.Init(cfg), cfg.TxLockWait)
	}
}

func openMedia(cfg *config.Config) media.Store {
	if cfg.MediaDriver != config.MediaS3 {
		return media.NewDiskStore(cfg.MenuImagePath, uploadsPrefix)
	}
	s3Store, err := media.NewS3Store(context.Background(), media.S3Options{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("[FATAL] s3 media store: %v", err)
	}
	return s3Store
}

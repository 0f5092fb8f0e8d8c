package main

import (
	"github.com/sirupsen/logrus"

	"tyre-vision/config"
	"tyre-vision/internal/api"
	"tyre-vision/internal/container"
	"tyre-vision/internal/domain/port"
	"tyre-vision/internal/infrastructure/storage"
	"tyre-vision/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Выбираем хранилище задач
	var store port.JobStore
	switch cfg.JobStore {
	case "sqlite":
		store, err = storage.NewSQLiteJobStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open job store: %v", err)
		}
	default:
		store = storage.NewMemoryJobStore()
	}

	// Собираем стадии конвейера
	pre := vision.NewPreprocessor(log)
	cracks := vision.NewCrackDetector(log)
	depth := vision.NewDepthEstimator(cfg.MmPerIntensity, log)
	damage := vision.NewDamageClassifier(log)
	synth := vision.NewVideoSynthesizer(log)

	c := container.New(store, pre, cracks, depth, damage, synth, log)

	server := api.NewServer(c.JobService, log)
	log.WithField("port", cfg.Port).Info("tyre-vision service is running")
	if err := server.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

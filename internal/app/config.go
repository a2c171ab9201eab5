package app

import (
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	RunWorker   bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "learnsphere-backend"),
		RunWorker:   envutil.Bool("RUN_JOB_WORKER", true),
	}
	log.Info("config loaded", "port", cfg.Port, "run_worker", cfg.RunWorker)
	return cfg
}

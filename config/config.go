package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	JobStore       string // memory | sqlite
	SQLitePath     string
	FPS            int     // частота прореживания кадров при анализе
	MmPerIntensity float64 // калибровка глубины, мм на единицу интенсивности
	LogLevel       string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8005"),
		JobStore:       getEnv("JOB_STORE", "memory"),
		SQLitePath:     getEnv("SQLITE_PATH", "tyre-vision.db"),
		FPS:            getEnvInt("FPS", 5),
		MmPerIntensity: getEnvFloat("MM_PER_INTENSITY", 0.05),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

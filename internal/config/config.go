package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// RotationNone keeps every detection in one cumulative partition.
	RotationNone = "none"
	// RotationMinute starts a new partition every wall-clock minute.
	RotationMinute = "minute"
)

type Config struct {
	Port int `validate:"min=1,max=65535"`

	ModelPath        string `validate:"required"`
	ModelConfigPath  string
	DetectorBackend  string `validate:"oneof=dnn onnx"`
	LabelsPath       string
	OnnxRuntimeLib   string
	CacheDirectory   string `validate:"required"`
	InferenceThreads int    `validate:"min=0"`
	InferenceWorkers int    `validate:"min=1"` // Ile instancji modelu moze liczyc rownolegle

	ConfidenceThreshold float64 `validate:"gt=0,lte=1"`
	IoUThreshold        float64 `validate:"gt=0,lte=1"`
	InferenceSize       int     `validate:"min=32"`
	MaxImageWidth       int     `validate:"min=1"`
	MaxUploadBytes      int64   `validate:"min=1024"`

	LogDirectory        string `validate:"required"`
	LogRotation         string `validate:"oneof=none minute"`
	TailRows            int    `validate:"min=1"`
	ServiceLogDirectory string `validate:"required"`
	LogLevel            string `validate:"oneof=debug info warning error"`

	CameraDevice string

	DatabasePath string

	DetectRateLimit float64 `validate:"min=0"` // zapytan na sekunde per IP, 0 = bez limitu
	DetectRateBurst int     `validate:"min=1"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// .env jest opcjonalny
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 5000),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		ModelConfigPath:     getEnv("MODEL_CONFIG_PATH", ""),
		DetectorBackend:     getEnv("DETECTOR_BACKEND", "dnn"),
		LabelsPath:          getEnv("LABELS_PATH", filepath.Join(".", "models", "labels.txt")),
		OnnxRuntimeLib:      getEnv("ONNXRUNTIME_LIB", ""),
		CacheDirectory:      getEnv("CACHE_DIR", filepath.Join(".", "cache")),
		InferenceThreads:    getEnvAsInt("INFERENCE_THREADS", 1),
		InferenceWorkers:    getEnvAsInt("INFERENCE_WORKERS", 1),
		ConfidenceThreshold: getEnvAsFloat("CONF_THRESHOLD", 0.35),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.5),
		InferenceSize:       getEnvAsInt("INFERENCE_SIZE", 416),
		MaxImageWidth:       getEnvAsInt("MAX_IMAGE_WIDTH", 640),
		MaxUploadBytes:      getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogRotation:         getEnv("LOG_ROTATION", RotationNone),
		TailRows:            getEnvAsInt("TAIL_ROWS", 200),
		ServiceLogDirectory: getEnv("SERVICE_LOG_DIR", filepath.Join(".", "logs", "service")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CameraDevice:        getEnv("CAMERA_DEVICE", "0"),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "detections.db")),
		DetectRateLimit:     getEnvAsFloat("DETECT_RATE_LIMIT", 0),
		DetectRateBurst:     getEnvAsInt("DETECT_RATE_BURST", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultLabels is the label table the bundled sports model was trained with, in index order.
const DefaultLabels = "Basketball,Cricket,Rugby,badminton,boxing,football,swimming,wrestling"

type Config struct {
	Server  ServerConfig
	S3      S3Config
	Model   ModelConfig
	Records RecordsConfig
	App     AppConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
	// Folder is the key prefix uploads are written under.
	Folder     string
	Timeout    time.Duration
	MaxRetries uint64
}

type ModelConfig struct {
	Path          string
	ConfigPath    string
	ManifestPath  string
	Labels        []string
	InputSize     int
	Layout        string
	Preprocessing string
	// MaxPixels bounds width*height of an image before it is decoded.
	MaxPixels int64
}

type RecordsConfig struct {
	Path        string
	Timeout     time.Duration
	JournalMode string
	BusyTimeout time.Duration
}

type AppConfig struct {
	ScratchDir    string
	MaxUploadSize int64
	LogLevel      string
	TemplatesGlob string
	StaticDir     string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60*time.Second)
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "predictions")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_FOLDER", "uploads")
	v.SetDefault("STORAGE_TIMEOUT", 15*time.Second)
	v.SetDefault("STORAGE_MAX_RETRIES", 2)
	v.SetDefault("MODEL_PATH", filepath.Join("model", "sports_classifier_efficientnetb3.onnx"))
	v.SetDefault("MODEL_CONFIG_PATH", "")
	v.SetDefault("MODEL_MANIFEST_PATH", filepath.Join("model", "manifest.yaml"))
	v.SetDefault("MODEL_LABELS", DefaultLabels)
	v.SetDefault("MODEL_INPUT_SIZE", 300)
	v.SetDefault("MODEL_LAYOUT", "nhwc")
	v.SetDefault("MODEL_PREPROCESSING", "efficientnet")
	v.SetDefault("MODEL_MAX_PIXELS", 178956970)
	v.SetDefault("RECORDS_DB_PATH", filepath.Join("data", "predictions.db"))
	v.SetDefault("RECORD_TIMEOUT", 5*time.Second)
	v.SetDefault("RECORDS_JOURNAL_MODE", "WAL")
	v.SetDefault("RECORDS_BUSY_TIMEOUT", 5*time.Second)
	v.SetDefault("APP_SCRATCH_DIR", filepath.Join(".", "tmp"))
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 5*1024*1024) // 5MB
	v.SetDefault("APP_LOG_LEVEL", "info")
	v.SetDefault("APP_TEMPLATES_GLOB", "web/templates/*")
	v.SetDefault("APP_STATIC_DIR", "./web/static")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("SERVER_HOST"),
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
			Folder:          v.GetString("S3_FOLDER"),
			Timeout:         v.GetDuration("STORAGE_TIMEOUT"),
			MaxRetries:      v.GetUint64("STORAGE_MAX_RETRIES"),
		},
		Model: ModelConfig{
			Path:          v.GetString("MODEL_PATH"),
			ConfigPath:    v.GetString("MODEL_CONFIG_PATH"),
			ManifestPath:  v.GetString("MODEL_MANIFEST_PATH"),
			Labels:        splitLabels(v.GetString("MODEL_LABELS")),
			InputSize:     v.GetInt("MODEL_INPUT_SIZE"),
			Layout:        strings.ToLower(v.GetString("MODEL_LAYOUT")),
			Preprocessing: strings.ToLower(v.GetString("MODEL_PREPROCESSING")),
			MaxPixels:     v.GetInt64("MODEL_MAX_PIXELS"),
		},
		Records: RecordsConfig{
			Path:        v.GetString("RECORDS_DB_PATH"),
			Timeout:     v.GetDuration("RECORD_TIMEOUT"),
			JournalMode: strings.ToUpper(v.GetString("RECORDS_JOURNAL_MODE")),
			BusyTimeout: v.GetDuration("RECORDS_BUSY_TIMEOUT"),
		},
		App: AppConfig{
			ScratchDir:    v.GetString("APP_SCRATCH_DIR"),
			MaxUploadSize: v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			LogLevel:      v.GetString("APP_LOG_LEVEL"),
			TemplatesGlob: v.GetString("APP_TEMPLATES_GLOB"),
			StaticDir:     v.GetString("APP_STATIC_DIR"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := createDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("APP_MAX_UPLOAD_SIZE must be positive, got %d", c.App.MaxUploadSize)
	}
	if c.App.ScratchDir == "" {
		return fmt.Errorf("APP_SCRATCH_DIR must not be empty")
	}
	if !hasName(c.Model.Labels) {
		return fmt.Errorf("MODEL_LABELS must name at least one label")
	}
	if c.S3.Timeout <= 0 || c.Records.Timeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT and RECORD_TIMEOUT must be positive")
	}
	return nil
}

func createDirs(cfg *Config) error {
	dirs := []string{cfg.App.ScratchDir}
	if dir := filepath.Dir(cfg.Records.Path); dir != "." && dir != "" {
		dirs = append(dirs, dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// splitLabels keeps empty entries so every name stays at its model output index.
// An empty entry is a slot the model never reports.
func splitLabels(raw string) []string {
	items := strings.Split(raw, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

func hasName(labels []string) bool {
	for _, l := range labels {
		if l != "" {
			return true
		}
	}
	return false
}

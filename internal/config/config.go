// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Inventory InventoryConfig
	Pipeline  PipelineConfig
	Drive     DriveConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int64
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	LogLevel  string
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	InventoryTTLSeconds int
	RecentSearchLimit   int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// InventoryConfig holds the replenishment policy defaults.
type InventoryConfig struct {
	DefaultRequiredQuantity float64
	DefaultLocation         string
	DefaultUnitsPerPackage  float64
	ShortageBuffer          float64
}

type PipelineConfig struct {
	WorkerCount   int
	RetryAttempts int
	RetryBackoff  time.Duration
	ExportLedger  bool
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
	PollInterval    time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("SERVER_MAX_UPLOAD_MB", 32)
	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "pharmacy_inventory")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_INVENTORY_TTL_SECONDS", 60)
	viper.SetDefault("RECENT_SEARCH_LIMIT", 10)
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	viper.SetDefault("STORAGE_BUCKET", "inventory-uploads")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", false)
	viper.SetDefault("DEFAULT_REQUIRED_QUANTITY", 10)
	viper.SetDefault("DEFAULT_LOCATION", "unassigned")
	viper.SetDefault("DEFAULT_UNITS_PER_PACKAGE", 1)
	viper.SetDefault("SHORTAGE_BUFFER", 3)
	viper.SetDefault("PIPELINE_WORKERS", 3)
	viper.SetDefault("PIPELINE_RETRY_ATTEMPTS", 2)
	viper.SetDefault("PIPELINE_RETRY_BACKOFF", "500ms")
	viper.SetDefault("PIPELINE_EXPORT_LEDGER", true)
	viper.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	viper.SetDefault("DRIVE_FOLDER_ID", "")
	viper.SetDefault("DRIVE_POLL_INTERVAL", "5m")
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("METRICS_PATH", "/metrics")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    viper.GetInt64("SERVER_MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Enabled:  viper.GetBool("DB_ENABLED"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: viper.GetString("APP_UPLOAD_DIR"),
			DataDir:   viper.GetString("APP_DATA_DIR"),
			LogLevel:  viper.GetString("LOG_LEVEL"),
		},
		Cache: CacheConfig{
			Enabled:             viper.GetBool("CACHE_ENABLED"),
			RedisURL:            viper.GetString("REDIS_URL"),
			RedisHost:           viper.GetString("REDIS_HOST"),
			RedisPort:           viper.GetString("REDIS_PORT"),
			RedisPassword:       viper.GetString("REDIS_PASSWORD"),
			RedisDB:             viper.GetInt("REDIS_DB"),
			InventoryTTLSeconds: viper.GetInt("CACHE_INVENTORY_TTL_SECONDS"),
			RecentSearchLimit:   viper.GetInt("RECENT_SEARCH_LIMIT"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
		},
		Inventory: InventoryConfig{
			DefaultRequiredQuantity: viper.GetFloat64("DEFAULT_REQUIRED_QUANTITY"),
			DefaultLocation:         viper.GetString("DEFAULT_LOCATION"),
			DefaultUnitsPerPackage:  viper.GetFloat64("DEFAULT_UNITS_PER_PACKAGE"),
			ShortageBuffer:          viper.GetFloat64("SHORTAGE_BUFFER"),
		},
		Pipeline: PipelineConfig{
			WorkerCount:   viper.GetInt("PIPELINE_WORKERS"),
			RetryAttempts: viper.GetInt("PIPELINE_RETRY_ATTEMPTS"),
			RetryBackoff:  viper.GetDuration("PIPELINE_RETRY_BACKOFF"),
			ExportLedger:  viper.GetBool("PIPELINE_EXPORT_LEDGER"),
		},
		Drive: DriveConfig{
			CredentialsFile: viper.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
			PollInterval:    viper.GetDuration("DRIVE_POLL_INTERVAL"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
			Path:    viper.GetString("METRICS_PATH"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

// RedisAddr returns host:port for the configured redis instance.
func (c CacheConfig) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// NeedsDefaults returns the policy defaults applied to products without a profile.
func (c InventoryConfig) NeedsDefaults() domain.NeedsDefaults {
	return domain.NeedsDefaults{
		RequiredQuantity: c.DefaultRequiredQuantity,
		Location:         c.DefaultLocation,
		UnitsPerPackage:  c.DefaultUnitsPerPackage,
	}
}

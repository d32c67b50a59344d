package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage    StorageConfig
	Match      MatchConfig
	Classifier ClassifierConfig
	Scheduler  SchedulerConfig
	API        APIConfig
	Search     SearchConfig
	S3         S3Config
	Workers    WorkersConfig
	LogPath    string
	Vendors    map[string]*VendorConfig
}

type StorageConfig struct {
	Driver      string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string
}

type MatchConfig struct {
	FloorThreshold float64
	AutoThreshold  float64
}

type ClassifierConfig struct {
	Mode    string // "heuristic" or "remote"
	URL     string
	Timeout time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type APIConfig struct {
	Addr            string
	DefaultPageSize int
	MaxPageSize     int
}

type SearchConfig struct {
	URL    string
	APIKey string
	Index  string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type WorkersConfig struct {
	ReconcileBatchSize    int
	ReconcileInterval     time.Duration
	MediaBatchSize        int
	MediaInterval         time.Duration
	AvailabilityBatchSize int
	AvailabilityInterval  time.Duration
	AvailabilityMaxAge    time.Duration
	IndexSyncInterval     time.Duration
}

// VendorConfig describes one vendor feed, loaded from config/vendors/*.yaml.
type VendorConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Format   string `yaml:"format"` // "json" or "html"
	FeedURL  string `yaml:"feed_url"`
	FeedPath string `yaml:"feed_path"`
	Currency string `yaml:"currency"`
	// CSS selectors for HTML feeds.
	ItemSelector  string `yaml:"item_selector"`
	NameSelector  string `yaml:"name_selector"`
	PriceSelector string `yaml:"price_selector"`
	LinkSelector  string `yaml:"link_selector"`
	ImageSelector string `yaml:"image_selector"`
	Category      string `yaml:"category"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "sqlite"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnv("SQLITE_PATH", "pcbazaar.db"),
		},
		Match: MatchConfig{
			FloorThreshold: getEnvFloat("MATCH_FLOOR_THRESHOLD", 0.60),
			AutoThreshold:  getEnvFloat("MATCH_AUTO_THRESHOLD", 0.95),
		},
		Classifier: ClassifierConfig{
			Mode:    getEnv("CLASSIFIER_MODE", "heuristic"),
			URL:     os.Getenv("CLASSIFIER_URL"),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("INGEST_CRON"),
		},
		API: APIConfig{
			Addr:            getEnv("API_ADDR", ":8080"),
			DefaultPageSize: getEnvInt("API_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getEnvInt("API_MAX_PAGE_SIZE", 100),
		},
		Search: SearchConfig{
			URL:    os.Getenv("MEILI_URL"),
			APIKey: os.Getenv("MEILI_API_KEY"),
			Index:  getEnv("MEILI_INDEX", "products"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnv("S3_REGION", "auto"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Workers: WorkersConfig{
			ReconcileBatchSize:    getEnvInt("RECONCILE_BATCH_SIZE", 50),
			ReconcileInterval:     getEnvDuration("RECONCILE_INTERVAL", 2*time.Minute),
			MediaBatchSize:        getEnvInt("MEDIA_BATCH_SIZE", 20),
			MediaInterval:         getEnvDuration("MEDIA_INTERVAL", 2*time.Minute),
			AvailabilityBatchSize: getEnvInt("AVAILABILITY_BATCH_SIZE", 20),
			AvailabilityInterval:  getEnvDuration("AVAILABILITY_INTERVAL", 30*time.Minute),
			AvailabilityMaxAge:    getEnvDuration("AVAILABILITY_MAX_AGE", 24*time.Hour),
			IndexSyncInterval:     getEnvDuration("INDEX_SYNC_INTERVAL", 5*time.Minute),
		},
		LogPath: getEnv("LOG_PATH", "daemon.log"),
		Vendors: make(map[string]*VendorConfig),
	}

	if interval := os.Getenv("INGEST_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.loadVendorConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run under.
func (c *Config) Validate() error {
	if c.Match.FloorThreshold <= 0 || c.Match.FloorThreshold >= 1 {
		return fmt.Errorf("match floor threshold %.2f out of range (0,1)", c.Match.FloorThreshold)
	}
	if c.Match.AutoThreshold <= c.Match.FloorThreshold || c.Match.AutoThreshold > 1 {
		return fmt.Errorf("match auto threshold %.2f must be in (floor,1]", c.Match.AutoThreshold)
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage driver postgres requires DATABASE_URL")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Classifier.Mode {
	case "heuristic":
	case "remote":
		if c.Classifier.URL == "" {
			return fmt.Errorf("classifier mode remote requires CLASSIFIER_URL")
		}
	default:
		return fmt.Errorf("unknown classifier mode %q", c.Classifier.Mode)
	}
	return nil
}

func (c *Config) loadVendorConfigs() error {
	configDir := "config/vendors"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var vendor VendorConfig
		if err := yaml.Unmarshal(data, &vendor); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if vendor.ID == "" {
			return fmt.Errorf("%s: vendor config missing id", path)
		}

		c.Vendors[vendor.ID] = &vendor
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Security    SecurityConfig    `yaml:"security"`
	Lots        []LotConfig       `yaml:"lots"`
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	JWTSecret       string  `yaml:"jwt_secret"`
}

// SecurityConfig controls the allow-list gate at entry.
type SecurityConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LotConfig describes one monitored lot and its overhead camera.
type LotConfig struct {
	ID                  string        `yaml:"id"`
	Name                string        `yaml:"name"`
	TotalSpots          int           `yaml:"total_spots"`
	SnapshotURL         string        `yaml:"snapshot_url"`
	ScanIntervalSeconds int           `yaml:"scan_interval_seconds"`
	ScanInterval        time.Duration `yaml:"-"`
}

// CameraConfig configures snapshot downloads.
type CameraConfig struct {
	HTTPProxy      string `yaml:"http_proxy"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RecognitionConfig selects and configures the plate and spot recognizers.
type RecognitionConfig struct {
	// Provider is "rekognition" or "sidecar".
	Provider      string            `yaml:"provider"`
	ApproxEpsilon float64           `yaml:"approx_epsilon"`
	Rekognition   RekognitionConfig `yaml:"rekognition"`
	Sidecar       SidecarConfig     `yaml:"sidecar"`
}

// RekognitionConfig holds the AWS Rekognition settings.
type RekognitionConfig struct {
	Region            string   `yaml:"region"`
	ProjectVersionARN string   `yaml:"project_version_arn"`
	MinConfidence     float32  `yaml:"min_confidence"`
	OccupiedLabels    []string `yaml:"occupied_labels"`
	FreeLabels        []string `yaml:"free_labels"`
}

// SidecarConfig points at an HTTP inference service.
type SidecarConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IngestConfig configures the SQS camera event consumer.
type IngestConfig struct {
	QueueURL                 string `yaml:"sqs_queue_url"`
	Region                   string `yaml:"region"`
	MaxMessages              int32  `yaml:"max_messages"`
	WaitTimeSeconds          int32  `yaml:"wait_time_seconds"`
	VisibilityTimeoutSeconds int32  `yaml:"visibility_timeout_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// DefaultLotID is used when no lot is configured.
const DefaultLotID = "main"

// Load reads the configuration from the given path. Values from a local .env
// file and the process environment override the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"DATABASE_DSN":      &cfg.Database.DSN,
		"JWT_SECRET":        &cfg.Server.JWTSecret,
		"VAPID_PUBLIC_KEY":  &cfg.Push.PublicKey,
		"VAPID_PRIVATE_KEY": &cfg.Push.PrivateKey,
		"SQS_QUEUE_URL":     &cfg.Ingest.QueueURL,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		cfg.Recognition.Rekognition.Region = region
		cfg.Ingest.Region = region
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 2
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if len(cfg.Lots) == 0 {
		log.Printf("no lots configured; defaulting to a single lot %q", DefaultLotID)
		cfg.Lots = []LotConfig{{ID: DefaultLotID, Name: "Main lot"}}
	}
	for i := range cfg.Lots {
		lot := &cfg.Lots[i]
		if lot.Name == "" {
			lot.Name = lot.ID
		}
		if lot.ScanIntervalSeconds <= 0 {
			lot.ScanIntervalSeconds = 5
		}
		lot.ScanInterval = time.Duration(lot.ScanIntervalSeconds) * time.Second
	}

	if cfg.Camera.TimeoutSeconds <= 0 {
		cfg.Camera.TimeoutSeconds = 10
	}

	if cfg.Recognition.Provider == "" {
		cfg.Recognition.Provider = "sidecar"
	}
	if cfg.Recognition.ApproxEpsilon <= 0 {
		cfg.Recognition.ApproxEpsilon = 10
	}
	if len(cfg.Recognition.Rekognition.OccupiedLabels) == 0 {
		cfg.Recognition.Rekognition.OccupiedLabels = []string{"car"}
	}
	if len(cfg.Recognition.Rekognition.FreeLabels) == 0 {
		cfg.Recognition.Rekognition.FreeLabels = []string{"free"}
	}
	if cfg.Recognition.Sidecar.TimeoutSeconds <= 0 {
		cfg.Recognition.Sidecar.TimeoutSeconds = 30
	}

	if cfg.Ingest.MaxMessages <= 0 {
		cfg.Ingest.MaxMessages = 10
	}
	if cfg.Ingest.WaitTimeSeconds <= 0 {
		cfg.Ingest.WaitTimeSeconds = 20
	}
	if cfg.Ingest.VisibilityTimeoutSeconds <= 0 {
		cfg.Ingest.VisibilityTimeoutSeconds = 60
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// Lot returns the configuration of the lot with the given id.
func (c *Config) Lot(id string) (LotConfig, bool) {
	for _, lot := range c.Lots {
		if lot.ID == id {
			return lot, true
		}
	}
	return LotConfig{}, false
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/agita-app/agita/internal/common"
)

// Config holds runtime settings for the Agita client.
type Config struct {
	StoreURL    string `env:"AGITA_STORE_URL"`
	StoreKey    string `env:"AGITA_STORE_KEY"`
	AccessToken string `env:"AGITA_ACCESS_TOKEN"`
	DatabaseDSN string `env:"AGITA_DATABASE_DSN"`
	LocalDBPath string `env:"AGITA_LOCAL_DB"`

	StorageBackend string `env:"AGITA_STORAGE_BACKEND"`
	S3Bucket       string `env:"AGITA_S3_BUCKET"`
	S3Region       string `env:"AGITA_S3_REGION"`
	S3BaseEndpoint string `env:"AGITA_S3_ENDPOINT"`
	S3AccessKey    string `env:"AGITA_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"AGITA_S3_SECRET_KEY"`
	PublicBaseURL  string `env:"AGITA_PUBLIC_BASE_URL"`

	RequestTimeout    time.Duration `env:"AGITA_REQUEST_TIMEOUT"`
	RequestsPerSecond float64       `env:"AGITA_RPS"`

	ProfileStaleAfter       time.Duration `env:"AGITA_PROFILE_STALE_AFTER"`
	ActivityTypesStaleAfter time.Duration `env:"AGITA_ACTIVITY_TYPES_STALE_AFTER"`
	DefaultStaleAfter       time.Duration `env:"AGITA_DEFAULT_STALE_AFTER"`

	MaxUploadMB       int      `env:"AGITA_MAX_UPLOAD_MB"`
	AllowedImageTypes []string `env:"AGITA_ALLOWED_IMAGE_TYPES" envSeparator:","`

	RealtimeEnabled bool   `env:"AGITA_REALTIME"`
	LogFormat       string `env:"AGITA_LOG_FORMAT"`
	LogLevel        string `env:"AGITA_LOG_LEVEL"`
}

// LoadDefaults populates c with defaults for every optional field.
func (c *Config) LoadDefaults() {
	c.LocalDBPath = "agita.db"
	c.StorageBackend = "rest"
	c.S3Bucket = "agita"
	c.S3Region = "us-east-1"
	c.RequestTimeout = 15 * time.Second
	c.RequestsPerSecond = 10
	c.ProfileStaleAfter = 5 * time.Minute
	c.ActivityTypesStaleAfter = 10 * time.Minute
	c.DefaultStaleAfter = time.Minute
	c.MaxUploadMB = 5
	c.AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	c.LogFormat = "text"
	c.LogLevel = "info"
}

// Validate reports missing mandatory fields and unusable values.
func (c *Config) Validate() error {
	var missing []string
	if c.StoreURL == "" {
		missing = append(missing, "AGITA_STORE_URL")
	}
	if c.StoreKey == "" {
		missing = append(missing, "AGITA_STORE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", common.ErrMissingConfig, missing)
	}
	switch c.StorageBackend {
	case "rest", "s3":
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MemoryStoreURL selects the in-process demo store.
const MemoryStoreURL = "memory://"

// Demo reports whether the in-process demo store is selected.
func (c *Config) Demo() bool {
	return c.StoreURL == MemoryStoreURL
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources take
// precedence over earlier ones. The result is validated.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agita-app/agita/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Empty fields
// leave the corresponding Config value untouched.
type JsonConfig struct {
	StoreURL          string   `json:"store_url"`
	StoreKey          string   `json:"store_key"`
	AccessToken       string   `json:"access_token"`
	DatabaseDSN       string   `json:"database_dsn"`
	LocalDBPath       string   `json:"local_db_path"`
	StorageBackend    string   `json:"storage_backend"`
	S3Bucket          string   `json:"s3_bucket"`
	S3Region          string   `json:"s3_region"`
	S3BaseEndpoint    string   `json:"s3_base_endpoint"`
	S3AccessKey       string   `json:"s3_access_key"`
	S3SecretKey       string   `json:"s3_secret_key"`
	PublicBaseURL     string   `json:"public_base_url"`
	RequestTimeout    string   `json:"request_timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	ProfileStale      string   `json:"profile_stale_after"`
	ActivityTypeStale string   `json:"activity_types_stale_after"`
	DefaultStale      string   `json:"default_stale_after"`
	MaxUploadMB       int      `json:"max_upload_mb"`
	AllowedImageTypes []string `json:"allowed_image_types"`
	RealtimeEnabled   *bool    `json:"realtime_enabled"`
	LogFormat         string   `json:"log_format"`
	LogLevel          string   `json:"log_level"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c / -config flag. Without the flag it is a no-op.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.StoreURL, jc.StoreURL)
	setString(&cfg.StoreKey, jc.StoreKey)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.LocalDBPath, jc.LocalDBPath)
	setString(&cfg.StorageBackend, jc.StorageBackend)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.PublicBaseURL, jc.PublicBaseURL)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogLevel, jc.LogLevel)

	durations := []struct {
		dst *time.Duration
		src string
	}{
		{&cfg.RequestTimeout, jc.RequestTimeout},
		{&cfg.ProfileStaleAfter, jc.ProfileStale},
		{&cfg.ActivityTypesStaleAfter, jc.ActivityTypeStale},
		{&cfg.DefaultStaleAfter, jc.DefaultStale},
	}
	for _, d := range durations {
		if d.src == "" {
			continue
		}
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
		*d.dst = v
	}

	if jc.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = jc.RequestsPerSecond
	}
	if jc.MaxUploadMB > 0 {
		cfg.MaxUploadMB = jc.MaxUploadMB
	}
	if len(jc.AllowedImageTypes) > 0 {
		cfg.AllowedImageTypes = jc.AllowedImageTypes
	}
	if jc.RealtimeEnabled != nil {
		cfg.RealtimeEnabled = *jc.RealtimeEnabled
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

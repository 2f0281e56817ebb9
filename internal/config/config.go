// Package config loads runtime configuration from environment variables.
//
// Configuration Loading Order:
// 1. Load from .env file (if present)
// 2. Read environment variables, applying defaults for optional settings
// 3. Validate that every required variable is set
//
// A missing required variable is a fatal startup condition: Load returns a
// ConfigError-kind *apierr.Error and callers in cmd/server exit with code 2.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/joho/godotenv"
)

// Config holds the fully resolved runtime configuration.
type Config struct {
	// Store (C1)
	StoreURL              string
	StoreToken            string
	StoreOrg              string
	StoreBucketOperational string
	StoreBucketHistorical string

	// Upstreams (C2)
	PriceAPIBase           string
	WeatherObsAPIBase      string
	WeatherObsAPIKey       string
	WeatherRealtimeAPIBase string
	WeatherRealtimeAPIKey  string

	// Location
	StationID        string
	MunicipalityCode string
	Timezone         string
	StationLat       string
	StationLon       string

	// Runtime
	LogLevel                  string
	HTTPPort                  int
	ClockSkewToleranceSeconds int

	// Ambient paths, not part of the enumerated §6 list but needed to wire
	// the side-store and registry the way the teacher wires its data dir.
	DataDir           string
	MachinerySpecPath string

	// Optional S3-compatible mirror for published model artifacts (C11).
	// Empty S3Endpoint disables the mirror entirely.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// requiredVar names an environment variable that Load refuses to start
// without, paired with the Config field it ends up in (for the error
// message only — assignment still happens in Load).
type requiredVar struct {
	key   string
	field string
}

var required = []requiredVar{
	{"STORE_URL", "StoreURL"},
	{"STORE_TOKEN", "StoreToken"},
	{"STORE_ORG", "StoreOrg"},
	{"STORE_BUCKET_OPERATIONAL", "StoreBucketOperational"},
	{"STORE_BUCKET_HISTORICAL", "StoreBucketHistorical"},
	{"PRICE_API_BASE", "PriceAPIBase"},
	{"WEATHER_OBS_API_BASE", "WeatherObsAPIBase"},
	{"WEATHER_OBS_API_KEY", "WeatherObsAPIKey"},
	{"WEATHER_REALTIME_API_BASE", "WeatherRealtimeAPIBase"},
	{"WEATHER_REALTIME_API_KEY", "WeatherRealtimeAPIKey"},
	{"STATION_ID", "StationID"},
	{"MUNICIPALITY_CODE", "MunicipalityCode"},
}

// Load reads configuration from the environment, loading a .env file first
// if one exists in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	get := os.Getenv
	for _, rv := range required {
		if get(rv.key) == "" {
			missing = append(missing, rv.key)
		}
	}
	if len(missing) > 0 {
		return nil, apierr.New(apierr.KindConfigError,
			fmt.Sprintf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}

	cfg := &Config{
		StoreURL:               get("STORE_URL"),
		StoreToken:             get("STORE_TOKEN"),
		StoreOrg:               get("STORE_ORG"),
		StoreBucketOperational: get("STORE_BUCKET_OPERATIONAL"),
		StoreBucketHistorical:  get("STORE_BUCKET_HISTORICAL"),

		PriceAPIBase:           get("PRICE_API_BASE"),
		WeatherObsAPIBase:      get("WEATHER_OBS_API_BASE"),
		WeatherObsAPIKey:       get("WEATHER_OBS_API_KEY"),
		WeatherRealtimeAPIBase: get("WEATHER_REALTIME_API_BASE"),
		WeatherRealtimeAPIKey:  get("WEATHER_REALTIME_API_KEY"),

		StationID:        get("STATION_ID"),
		MunicipalityCode: get("MUNICIPALITY_CODE"),
		Timezone:         getEnv("TIMEZONE", "Europe/Madrid"),
		StationLat:       getEnv("STATION_LAT", "40.4168"),
		StationLon:       getEnv("STATION_LON", "-3.7038"),

		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		HTTPPort:                  getEnvAsInt("HTTP_PORT", 8080),
		ClockSkewToleranceSeconds: getEnvAsInt("CLOCK_SKEW_TOLERANCE_SECONDS", 120),

		DataDir:           getEnv("DATA_DIR", "./data"),
		MachinerySpecPath: getEnv("MACHINERY_SPEC_PATH", "./config/machinery.yaml"),

		S3Endpoint:  getEnv("S3_MIRROR_ENDPOINT", ""),
		S3Region:    getEnv("S3_MIRROR_REGION", ""),
		S3Bucket:    getEnv("S3_MIRROR_BUCKET", ""),
		S3AccessKey: getEnv("S3_MIRROR_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_MIRROR_SECRET_KEY", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

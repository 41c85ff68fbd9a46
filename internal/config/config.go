package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/globalmind/support-platform/internal/fault"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Crisis scoring
	CrisisThreshold    float64
	CategorySeverities map[string]float64
	RegionMultipliers  map[string]float64

	// Privacy / key management
	KeyFile          string
	KeyRotationEvery time.Duration
	RetiredKeyMaxAge time.Duration

	// Retention
	DataRetentionDays   int
	MaintenanceInterval time.Duration

	// Session history
	SessionHistoryTTL time.Duration
	SessionHistoryMax int

	AdminJWTSecret string

	// Backup snapshots
	AWSRegion           string
	AWSEndpointOverride string
	BackupS3Bucket      string
	BackupInterval      time.Duration

	// Crisis alert email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	CrisisAlertEmail  string
}

// Default crisis tables. Overridable via CRISIS_SEVERITIES_JSON and
// REGION_MULTIPLIERS_JSON so clinical reviewers can tune without a deploy.
var (
	defaultSeverities = map[string]float64{
		"immediate_danger": 1.0,
		"self_harm":        0.8,
		"hopelessness":     0.7,
		"help_seeking":     0.3,
	}
	defaultMultipliers = map[string]float64{
		"western": 1.0,
		"eastern": 1.2,
		"african": 1.1,
		"latin":   1.0,
	}
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	severities, err := getEnvAsFloatMap("CRISIS_SEVERITIES_JSON", defaultSeverities)
	if err != nil {
		return nil, err
	}
	multipliers, err := getEnvAsFloatMap("REGION_MULTIPLIERS_JSON", defaultMultipliers)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CrisisThreshold:    getEnvAsFloat("CRISIS_THRESHOLD", 0.7),
		CategorySeverities: severities,
		RegionMultipliers:  multipliers,

		KeyFile:          getEnv("KEY_FILE", "globalmind.keyring"),
		KeyRotationEvery: getEnvAsDuration("KEY_ROTATION_EVERY", 30*24*time.Hour),
		RetiredKeyMaxAge: getEnvAsDuration("RETIRED_KEY_MAX_AGE", 90*24*time.Hour),

		DataRetentionDays:   getEnvAsInt("DATA_RETENTION_DAYS", 365),
		MaintenanceInterval: getEnvAsDuration("MAINTENANCE_INTERVAL", 1*time.Hour),

		SessionHistoryTTL: getEnvAsDuration("SESSION_HISTORY_TTL", 24*time.Hour),
		SessionHistoryMax: getEnvAsInt("SESSION_HISTORY_MAX", 50),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BackupS3Bucket:      getEnv("BACKUP_S3_BUCKET", ""),
		BackupInterval:      getEnvAsDuration("BACKUP_INTERVAL", 24*time.Hour),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "GlobalMind Support"),
		CrisisAlertEmail:  getEnv("CRISIS_ALERT_EMAIL", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CrisisThreshold < 0 || c.CrisisThreshold > 1 {
		return fault.New(fault.KindConfiguration, fault.CodeConfigInvalidValue,
			fmt.Sprintf("config: CRISIS_THRESHOLD %v out of range [0,1]", c.CrisisThreshold))
	}
	if len(c.CategorySeverities) == 0 {
		return fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
			"config: crisis severity table is empty")
	}
	for name, sev := range c.CategorySeverities {
		if sev < 0 || sev > 1 {
			return fault.New(fault.KindConfiguration, fault.CodeConfigInvalidValue,
				fmt.Sprintf("config: severity for %q out of range [0,1]", name))
		}
	}
	if len(c.RegionMultipliers) == 0 {
		return fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
			"config: region multiplier table is empty")
	}
	for region, m := range c.RegionMultipliers {
		if m <= 0 {
			return fault.New(fault.KindConfiguration, fault.CodeConfigInvalidValue,
				fmt.Sprintf("config: multiplier for %q must be positive", region))
		}
	}
	if c.DataRetentionDays <= 0 {
		return fault.New(fault.KindConfiguration, fault.CodeConfigInvalidValue,
			"config: DATA_RETENTION_DAYS must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloatMap parses a JSON object of string->number. A malformed value is
// a configuration error rather than a silent fallback: these tables drive
// crisis scoring.
func getEnvAsFloatMap(key string, defaultValue map[string]float64) (map[string]float64, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		out := make(map[string]float64, len(defaultValue))
		for k, v := range defaultValue {
			out[k] = v
		}
		return out, nil
	}
	var parsed map[string]float64
	if err := json.Unmarshal([]byte(valueStr), &parsed); err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, fault.CodeConfigInvalidValue,
			fmt.Sprintf("config: parse %s", key), err)
	}
	return parsed, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	JWTExpirationMinutes int
	ModelArtifactPath    string
	MaxUploadBytes       int64
	Database             DatabaseConfig
	Log                  LogConfig
	Archive              ArchiveConfig
	Events               EventsConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	Username   string
	Password   string
	Name       string
	SQLitePath string
	DSN        string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// ArchiveConfig holds the raw upload archive settings. An empty bucket
// disables archiving.
type ArchiveConfig struct {
	S3Bucket string
	S3Prefix string
}

// EventsConfig holds the ingestion event settings. No brokers disables publishing.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       getEnv("DB_PORT", ""),
		Username:   getEnv("DB_USERNAME", "root"),
		Password:   getEnv("DB_PASSWORD", ""),
		Name:       getEnv("DB_NAME", "optometry"),
		SQLitePath: getEnv("SQLITE_PATH", "optometry.db"),
	}
	dsn, err := buildDSN(dbConfig)
	if err != nil {
		return nil, err
	}
	dbConfig.DSN = dsn

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "43200")) // 30 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "10"), 10, 64)
	if err != nil || maxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %q", getEnv("MAX_UPLOAD_MB", ""))
	}

	return &Config{
		Port:                 getEnv("PORT", "8000"),
		Origin:               getEnv("ORIGIN", "http://localhost:5173"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		ModelArtifactPath:    getEnv("MODEL_ARTIFACT_PATH", "model.json"),
		MaxUploadBytes:       maxUploadMB << 20,
		Database:             dbConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Archive: ArchiveConfig{
			S3Bucket: getEnv("ARCHIVE_S3_BUCKET", ""),
			S3Prefix: getEnv("ARCHIVE_S3_PREFIX", "uploads"),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "optometry.ingest"),
		},
	}, nil
}

func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "sqlite":
		return db.SQLitePath, nil
	case "mysql":
		port := db.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.Username, db.Password, db.Host, port, db.Name), nil
	case "postgres":
		port := db.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			db.Host, port, db.Username, db.Password, db.Name), nil
	default:
		return "", fmt.Errorf("invalid DB_DRIVER %q: want sqlite, mysql or postgres", db.Driver)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

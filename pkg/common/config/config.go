package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PersistRuns      bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// Kafka
	KafkaBrokers   []string
	KafkaGroupID   string
	RunEventsTopic string
	RefreshTopic   string
	RefreshGroupID string

	// Datasets
	DataDir      string
	PharmacyFile string
	MedicalFile  string
	JoinedFile   string
	RevisionFile string

	// Detection
	DetectionConfigPath string
	ReferencePath       string
	ExportPath          string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "claimsight"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "claimsight123"),
		PostgresDB:       getEnv("POSTGRES_DB", "claimsight"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PersistRuns:      getBoolEnv("PERSIST_RUNS", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		StatsCacheTTL: getDuration("STATS_CACHE_TTL", 5*time.Minute),

		KafkaBrokers:   getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", "claimsight-platform"),
		RunEventsTopic: getEnv("RUN_EVENTS_TOPIC", "detection-runs"),
		RefreshTopic:   getEnv("DATASET_REFRESH_TOPIC", ""),
		RefreshGroupID: getEnv("DATASET_REFRESH_GROUP_ID", "detection-service"),

		DataDir:      getEnv("DATA_DIR", "./data"),
		PharmacyFile: getEnv("PHARMACY_FILE", "pharmacy.csv"),
		MedicalFile:  getEnv("MEDICAL_FILE", "medical.csv"),
		JoinedFile:   getEnv("JOINED_FILE", "joined.csv"),
		RevisionFile: getEnv("REVISION_FILE", ""),

		DetectionConfigPath: getEnv("DETECTION_CONFIG_PATH", ""),
		ReferencePath:       getEnv("REFERENCE_PATH", ""),
		ExportPath:          getEnv("EXPORT_PATH", "anomalies_output.csv"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

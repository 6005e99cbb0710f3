package config

import (
	"os"
	"strconv"
	"strings"
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

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	FacilityEventTopic string
	AnalysisEventTopic string
	DLQTopic           string

	// Facility intake
	FacilityAllowedSources []string

	// Analytics pipeline
	RegionGranularity       string
	GeographicWeight        float64
	CapabilityWeight        float64
	LowAccessThreshold      float64
	CapabilityMinimum       float64
	ClusterThreshold        int
	EquipmentMatchThreshold float64
	PipelineWorkers         int
	KnowledgeCatalogPath    string

	// Result cache
	ResultCacheTTL time.Duration

	// External verification
	VerificationEnabled      bool
	VerificationBaseURL      string
	VerificationTokenURL     string
	VerificationClientID     string
	VerificationClientSecret string

	// Gateway specific
	AnalyticsBaseURL      string
	IngestionBaseURL      string
	GatewayRequestTimeout time.Duration
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
	GatewayAPIKey         string
	JWTSecret             string
	JWTIssuer             string
	JWTAudience           string
	JWTTTL                time.Duration
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
		PostgresUser:     getEnv("POSTGRES_USER", "carescope"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carescope123"),
		PostgresDB:       getEnv("POSTGRES_DB", "carescope"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "carescope-platform"),
		FacilityEventTopic: getEnv("FACILITY_EVENT_TOPIC", "facility-events"),
		AnalysisEventTopic: getEnv("ANALYSIS_EVENT_TOPIC", "analysis-events"),
		DLQTopic:           getEnv("DLQ_TOPIC", "platform-dlq"),

		FacilityAllowedSources: getStringSliceEnv("FACILITY_ALLOWED_SOURCES", []string{"registry", "survey", "csv-import"}),

		RegionGranularity:       getEnv("REGION_GRANULARITY", "state"),
		GeographicWeight:        getFloatEnv("GEOGRAPHIC_WEIGHT", 0.5),
		CapabilityWeight:        getFloatEnv("CAPABILITY_WEIGHT", 0.5),
		LowAccessThreshold:      getFloatEnv("LOW_ACCESS_THRESHOLD", 0.4),
		CapabilityMinimum:       getFloatEnv("CAPABILITY_MINIMUM", 0.5),
		ClusterThreshold:        getIntEnv("CONTRADICTION_CLUSTER_THRESHOLD", 10),
		EquipmentMatchThreshold: getFloatEnv("EQUIPMENT_MATCH_THRESHOLD", 0.85),
		PipelineWorkers:         getIntEnv("PIPELINE_WORKERS", 4),
		KnowledgeCatalogPath:    getEnv("KNOWLEDGE_CATALOG_PATH", ""),

		ResultCacheTTL: getDuration("RESULT_CACHE_TTL", 10*time.Minute),

		VerificationEnabled:      getBoolEnv("ENABLE_EXTERNAL_VERIFICATION", false),
		VerificationBaseURL:      getEnv("VERIFICATION_BASE_URL", ""),
		VerificationTokenURL:     getEnv("VERIFICATION_TOKEN_URL", ""),
		VerificationClientID:     getEnv("VERIFICATION_CLIENT_ID", ""),
		VerificationClientSecret: getEnv("VERIFICATION_CLIENT_SECRET", ""),

		AnalyticsBaseURL:      getEnv("ANALYTICS_BASE_URL", "http://localhost:8082"),
		IngestionBaseURL:      getEnv("INGESTION_BASE_URL", "http://localhost:8081"),
		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
		GatewayAPIKey:         getEnv("GATEWAY_API_KEY", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTIssuer:             getEnv("JWT_ISSUER", "carescope-gateway"),
		JWTAudience:           getEnv("JWT_AUDIENCE", "carescope-platform"),
		JWTTTL:                getDuration("JWT_TTL", time.Hour),
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
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

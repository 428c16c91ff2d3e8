package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultTopicPrefix is the topic root used by the deployed ESP32 firmware
const DefaultTopicPrefix = "final-project/Mahasiswa-Berpola-Pikir/smartcage"

type Config struct {
	// MQTT Configuration
	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTQoS            byte
	MQTTConnectTimeout time.Duration
	MQTTPublishTimeout time.Duration
	MQTTRetain         bool

	// Per-channel topics
	TopicTempHumidity        string
	TopicTempHumidityPredict string
	TopicGas                 string
	TopicGasPredict          string
	TopicLight               string
	TopicLightPredict        string

	// ML Model Configuration
	CategoriesFile  string
	DefaultCategory string
	Categories      []Category
	GasModelPath    string
	LightModelPath  string

	// Shared configuration store
	SharedStore   string // file, sqlite, redis, etcd
	SharedDir     string
	SQLitePath    string
	EtcdEndpoints []string
	EtcdPrefix    string
	StoreTimeout  time.Duration

	// Admin
	AdminPassword     string
	AdminPasswordHash string

	// Processing loop
	DrainTimeout  time.Duration
	LoopIdle      time.Duration
	InboundBuffer int
	LogCapacity   int
	SinkTimeout   time.Duration

	// HTTP API
	HTTPAddr           string
	CORSAllowedOrigins string

	// Redis (shared store backend and live feed)
	RedisURL    string
	LiveChannel string

	// ClickHouse Configuration (empty address disables the sink)
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
}

// Load reads configuration from the environment, loading .env first if present
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	prefix := getEnv("MQTT_TOPIC_PREFIX", DefaultTopicPrefix)

	cfg := &Config{
		// MQTT Configuration
		MQTTBroker:         getEnv("MQTT_BROKER", "tcp://broker.hivemq.com:1883"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", ""),
		MQTTUsername:       getEnv("MQTT_USERNAME", ""),
		MQTTPassword:       getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:            byte(getEnvInt("MQTT_QOS", 1)),
		MQTTConnectTimeout: getEnvDuration("MQTT_CONNECT_TIMEOUT", 5*time.Second),
		MQTTPublishTimeout: getEnvDuration("MQTT_PUBLISH_TIMEOUT", 2*time.Second),
		MQTTRetain:         getEnvBool("MQTT_RETAIN_PREDICTIONS", false),

		// Per-channel topics
		TopicTempHumidity:        getEnv("MQTT_TOPIC_DATA", prefix+"/data"),
		TopicTempHumidityPredict: getEnv("MQTT_TOPIC_PREDICTION", prefix+"/prediction"),
		TopicGas:                 getEnv("MQTT_TOPIC_GAS", prefix+"/gas"),
		TopicGasPredict:          getEnv("MQTT_TOPIC_GAS_PREDICTION", prefix+"/gas/prediction"),
		TopicLight:               getEnv("MQTT_TOPIC_LDR", prefix+"/ldr"),
		TopicLightPredict:        getEnv("MQTT_TOPIC_LDR_PREDICTION", prefix+"/ldr/prediction"),

		// ML Model Configuration
		CategoriesFile:  getEnv("CATEGORIES_FILE", ""),
		DefaultCategory: getEnv("DEFAULT_CATEGORY", ""),
		GasModelPath:    getEnv("GAS_MODEL_PATH", ""),
		LightModelPath:  getEnv("LIGHT_MODEL_PATH", ""),

		// Shared configuration store
		SharedStore:   strings.ToLower(getEnv("SHARED_STORE", "file")),
		SharedDir:     getEnv("SHARED_DIR", "./shared"),
		SQLitePath:    getEnv("SQLITE_PATH", "./shared/smartcage.db"),
		EtcdEndpoints: splitList(getEnv("ETCD_ENDPOINTS", "localhost:2379")),
		EtcdPrefix:    getEnv("ETCD_PREFIX", "/smartcage"),
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 2*time.Second),

		// Admin
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		// Processing loop
		DrainTimeout:  getEnvDuration("DRAIN_TIMEOUT", 100*time.Millisecond),
		LoopIdle:      getEnvDuration("LOOP_IDLE", 100*time.Millisecond),
		InboundBuffer: getEnvInt("INBOUND_BUFFER", 100),
		LogCapacity:   getEnvInt("LOG_CAPACITY", 10000),
		SinkTimeout:   getEnvDuration("SINK_TIMEOUT", 5*time.Second),

		// HTTP API
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		// Redis
		RedisURL:    getEnv("REDIS_URL", ""),
		LiveChannel: getEnv("LIVE_CHANNEL", "smartcage:live"),

		// ClickHouse Configuration
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "smartcage"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
	}

	cfg.Categories = DefaultCategories()
	if cfg.CategoriesFile != "" {
		file, err := LoadCategoriesFile(cfg.CategoriesFile)
		if err != nil {
			return nil, err
		}
		cfg.Categories = file.Categories
		if cfg.DefaultCategory == "" {
			cfg.DefaultCategory = file.Default
		}
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = cfg.Categories[0].Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.SharedStore {
	case "file", "sqlite", "redis", "etcd":
	default:
		return fmt.Errorf("invalid SHARED_STORE %q (want file, sqlite, redis or etcd)", c.SharedStore)
	}
	if c.SharedStore == "redis" && c.RedisURL == "" {
		return fmt.Errorf("SHARED_STORE=redis requires REDIS_URL")
	}
	if _, ok := c.ModelPathFor(c.DefaultCategory); !ok {
		return fmt.Errorf("DEFAULT_CATEGORY %q is not a configured category", c.DefaultCategory)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("DRAIN_TIMEOUT must be positive")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("LOG_CAPACITY must be positive")
	}
	return nil
}

// ModelPathFor returns the artifact path configured for an age category
func (c *Config) ModelPathFor(category string) (string, bool) {
	for _, cat := range c.Categories {
		if cat.Name == category {
			return cat.ModelPath, true
		}
	}
	return "", false
}

// CategoryNames returns configured category names in order
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

// getEnvDuration accepts Go durations ("250ms") or a bare number of milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

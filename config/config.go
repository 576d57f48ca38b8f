package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	HotelAPI HotelAPIConfig `yaml:"hotelapi"`
	Assist   AssistConfig   `yaml:"assist"`
	Journal  JournalConfig  `yaml:"journal"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                           string `yaml:"host"`
	Port                           int    `yaml:"port"`
	PaymentStatusTopicName         string `yaml:"payment_status_topic_name"`
	NotificationDeliveredTopicName string `yaml:"notification_delivered_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type HotelAPIConfig struct {
	// BaseURL of the Hotel Booking API. Empty or Mode "fake" selects the in-process fake.
	BaseURL        string `yaml:"base_url"`
	Mode           string `yaml:"mode"` // "http" | "fake"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AssistConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// Chat-list payment polling.
	PaymentFirstDelaySeconds int `yaml:"payment_first_delay_seconds"`
	PaymentIntervalSeconds   int `yaml:"payment_interval_seconds"`
	PaymentWindowSeconds     int `yaml:"payment_window_seconds"`

	NotificationIntervalSeconds int `yaml:"notification_interval_seconds"`
	// SeenTTLSeconds bounds the Redis seen-set; 0 keeps it for the session lifetime.
	SeenTTLSeconds int  `yaml:"seen_ttl_seconds"`
	RedisSeenSet   bool `yaml:"redis_seen_set"`

	RateLimitPerMinute int  `yaml:"rate_limit_per_minute"`
	PublishEvents      bool `yaml:"publish_events"`
}

type JournalConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
}

// LoadConfig reads the YAML file at filename. A .env next to the working directory,
// if present, is loaded into the environment first.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	if filename == "" {
		filename = os.Getenv("configPath")
	}
	if filename == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}

	return &config, nil
}

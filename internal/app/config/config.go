package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	MongoDB MongoDBConfig `yaml:"mongo"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
	Logger  LoggerConfig  `yaml:"logger"`
	Metrics MetricsConfig `yaml:"metrics"`
	Offers  OffersConfig  `yaml:"offers"`
	Reviews ReviewsConfig `yaml:"reviews"`
	Policy  PolicyConfig  `yaml:"policy"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	User     string `yaml:"user" env:"MONGO_USER"`
	Password string `yaml:"password" env:"MONGO_PASSWORD"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"exchange_service_db"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type MetricsConfig struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"9095"`
}

type OffersConfig struct {
	// SweepInterval is how often the background expiry sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"OFFER_SWEEP_INTERVAL" env-default:"1m"`
	DefaultExpiry time.Duration `yaml:"default_expiry" env:"OFFER_DEFAULT_EXPIRY" env-default:"24h"`
}

type ReviewsConfig struct {
	AggregateCacheTTL time.Duration `yaml:"aggregate_cache_ttl" env:"REVIEW_AGGREGATE_CACHE_TTL" env-default:"10m"`
}

type PolicyConfig struct {
	// RelistOnCancel returns a sold listing to active when its transaction is
	// cancelled. Off by default; cancellation normally leaves the listing sold.
	RelistOnCancel bool `yaml:"relist_on_cancel" env:"POLICY_RELIST_ON_CANCEL" env-default:"false"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		err := cleanenv.ReadEnv(&cfg)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		if _, ok := err.(*os.PathError); ok && path != "" {
			log.Printf("Warning: Config file not found at %s, attempting to load from environment variables only.", path)
			errEnv := cleanenv.ReadEnv(&cfg)
			if errEnv != nil {
				return nil, errEnv
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH_EXCHANGE_SERVICE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		CORSOrigins string `yaml:"cors_origins"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	JWT struct {
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"jwt"`
	OpenAI struct {
		APIURL string `yaml:"api_url"`
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
}

// Load reads YAML config from path, with a .env file and environment
// variables taking precedence for deploy-sensitive values. A missing config
// file is not an error; everything has an env or default fallback.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	overrideFromEnv(&cfg.Server.Port, "PORT")
	overrideFromEnv(&cfg.Postgres.URL, "DATABASE_URL")
	overrideFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideFromEnv(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideFromEnv(&cfg.JWT.Secret, "JWT_SECRET")
	overrideFromEnv(&cfg.OpenAI.APIURL, "OPENAI_API_URL")
	overrideFromEnv(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideFromEnv(&cfg.OpenAI.Model, "OPENAI_MODEL")

	return cfg, nil
}

func overrideFromEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

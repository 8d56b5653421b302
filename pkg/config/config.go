package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Business BusinessConfig `mapstructure:"business"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AppConfig struct {
	Timezone        string `mapstructure:"timezone" validate:"required"`
	ContextMessages int    `mapstructure:"context_messages" validate:"min=1,max=100"`
	StrictDates     bool   `mapstructure:"strict_dates"`
	Debug           bool   `mapstructure:"debug"`
}

type BusinessConfig struct {
	OpeningHour int   `mapstructure:"opening_hour" validate:"min=0,max=23"`
	ClosingHour int   `mapstructure:"closing_hour" validate:"min=1,max=24,gtfield=OpeningHour"`
	WorkingDays []int `mapstructure:"working_days" validate:"required,min=1,dive,min=1,max=7"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver" validate:"oneof=memory file sqlite postgres redis"`
	Path     string         `mapstructure:"path"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type TelegramConfig struct {
	Token        string        `mapstructure:"token"`
	Debug        bool          `mapstructure:"debug"`
	MessageEvery time.Duration `mapstructure:"message_every"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func parseRedisURL(redisURL string, ttl time.Duration) (RedisConfig, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{Addr: opts.Addr, Password: opts.Password, DB: opts.DB, TTL: ttl}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "Europe/Rome")
	v.SetDefault("app.context_messages", 10)
	v.SetDefault("app.strict_dates", false)
	v.SetDefault("app.debug", false)
	v.SetDefault("business.opening_hour", 9)
	v.SetDefault("business.closing_hour", 18)
	v.SetDefault("business.working_days", []int{1, 2, 3, 4, 5})
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "conversation_history")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.dbname", "schedule_bot")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.ttl", "0s")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 50)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("telegram.message_every", "1s")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// LoadConfig reads the YAML file at path, or only defaults and environment
// when path is empty.
// DefaultPath is read when CONFIG_PATH is unset and the file exists.
const DefaultPath = "config.yaml"

// PathFromEnv returns CONFIG_PATH, else DefaultPath when it exists, else ""
// so that LoadConfig falls back to defaults and environment only.
func PathFromEnv() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Storage.Database = dbConfig
	}

	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		redisConfig, err := parseRedisURL(redisURL, config.Storage.Redis.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		config.Storage.Redis = redisConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &config, nil
}

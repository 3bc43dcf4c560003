package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Log      LogConfig
	Data     DataConfig
	Map      MapConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Env         string
	CORSOrigins string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled     bool
	MapCacheTTL time.Duration
	StatsTTL    time.Duration
}

type LogConfig struct {
	Level string
}

// Источники датасетов
const (
	DataSourceFile     = "file"
	DataSourceHTTP     = "http"
	DataSourcePostgres = "postgres"
)

type DataConfig struct {
	Source          string
	PermitsPath     string
	TypesPath       string
	BoundariesPath  string
	BaseURL         string
	RequestTimeout  time.Duration
	PostalCodeField string
}

type MapConfig struct {
	CenterLat float64
	CenterLon float64
	Zoom      int
	MinZoom   int
	MaxZoom   int
}

type WorkerConfig struct {
	Enabled           bool
	ConsumerGroup     string
	StreamReadTimeout time.Duration
	MaxRetries        int
}

// Load читает .env (если он есть) и переменные окружения
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает конфигурацию из указанного env-файла; отсутствие файла не ошибка
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("API_HOST"),
			Port: v.GetInt("API_PORT"),
			Env:  v.GetString("API_ENV"),
			// список через запятую
			CORSOrigins: v.GetString("API_CORS_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxConns:        v.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(v.GetInt("DB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Enabled:     v.GetBool("CACHE_ENABLED"),
			MapCacheTTL: time.Duration(v.GetInt("MAP_CACHE_TTL")) * time.Second,
			StatsTTL:    time.Duration(v.GetInt("STATS_CACHE_TTL")) * time.Second,
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Data: DataConfig{
			Source:          strings.ToLower(strings.TrimSpace(v.GetString("DATA_SOURCE"))),
			PermitsPath:     v.GetString("DATA_PERMITS_PATH"),
			TypesPath:       v.GetString("DATA_TYPES_PATH"),
			BoundariesPath:  v.GetString("DATA_BOUNDARIES_PATH"),
			BaseURL:         strings.TrimRight(v.GetString("DATA_BASE_URL"), "/"),
			RequestTimeout:  time.Duration(v.GetInt("DATA_REQUEST_TIMEOUT")) * time.Second,
			PostalCodeField: v.GetString("DATA_POSTAL_CODE_FIELD"),
		},
		Map: MapConfig{
			CenterLat: v.GetFloat64("MAP_CENTER_LAT"),
			CenterLon: v.GetFloat64("MAP_CENTER_LON"),
			Zoom:      v.GetInt("MAP_ZOOM"),
			MinZoom:   v.GetInt("MAP_MIN_ZOOM"),
			MaxZoom:   v.GetInt("MAP_MAX_ZOOM"),
		},
		Worker: WorkerConfig{
			Enabled:           v.GetBool("WORKER_ENABLED"),
			ConsumerGroup:     v.GetString("WORKER_CONSUMER_GROUP"),
			StreamReadTimeout: time.Duration(v.GetInt("WORKER_STREAM_READ_TIMEOUT")) * time.Millisecond,
			MaxRetries:        v.GetInt("WORKER_MAX_RETRIES"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.CORSOrigins == "" {
		cfg.Server.CORSOrigins = "http://localhost:3000,http://localhost:5173"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.MapCacheTTL == 0 {
		cfg.Cache.MapCacheTTL = 10 * time.Minute
	}
	if cfg.Cache.StatsTTL == 0 {
		cfg.Cache.StatsTTL = time.Hour
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = DataSourceFile
	}
	if cfg.Data.PermitsPath == "" {
		cfg.Data.PermitsPath = "data/processed/weekly_permits.json"
	}
	if cfg.Data.TypesPath == "" {
		cfg.Data.TypesPath = "data/processed/total_by_type.json"
	}
	if cfg.Data.BoundariesPath == "" {
		cfg.Data.BoundariesPath = "data/processed/zip_permits.geojson"
	}
	if cfg.Data.RequestTimeout == 0 {
		cfg.Data.RequestTimeout = 30 * time.Second
	}
	if cfg.Data.PostalCodeField == "" {
		cfg.Data.PostalCodeField = "postalCode"
	}
	// NYC
	if cfg.Map.CenterLat == 0 && cfg.Map.CenterLon == 0 {
		cfg.Map.CenterLat = 40.7128
		cfg.Map.CenterLon = -74.0060
	}
	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = 11
	}
	if cfg.Map.MinZoom == 0 {
		cfg.Map.MinZoom = 10
	}
	if cfg.Map.MaxZoom == 0 {
		cfg.Map.MaxZoom = 18
	}
	if cfg.Worker.ConsumerGroup == "" {
		cfg.Worker.ConsumerGroup = "permit-map-reloaders"
	}
	if cfg.Worker.StreamReadTimeout == 0 {
		cfg.Worker.StreamReadTimeout = 1000 * time.Millisecond
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Data.Source {
	case DataSourceFile:
	case DataSourceHTTP:
		if c.Data.BaseURL == "" {
			return fmt.Errorf("DATA_BASE_URL is required for DATA_SOURCE=%s", DataSourceHTTP)
		}
	case DataSourcePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for DATA_SOURCE=%s", DataSourcePostgres)
		}
	default:
		return fmt.Errorf("unknown DATA_SOURCE %q", c.Data.Source)
	}
	if c.Map.MinZoom > c.Map.MaxZoom {
		return fmt.Errorf("MAP_MIN_ZOOM (%d) exceeds MAP_MAX_ZOOM (%d)", c.Map.MinZoom, c.Map.MaxZoom)
	}
	return nil
}

// NeedsRedis - кеш или воркер требуют подключения к Redis
func (c *Config) NeedsRedis() bool {
	return c.Cache.Enabled || c.Worker.Enabled
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// internal/config/config.go
package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Forecast ForecastConfig
	Cache    CacheConfig
	Archive  ArchiveConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ForecastConfig carries the engine defaults used when a request omits them.
type ForecastConfig struct {
	ForecastDays    int
	LookbackDays    int
	LeadTimeDays    int
	DefaultLotSize  int
	SnapshotTimeout int
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	SummaryTTLSeconds int
}

type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	AfterDays int
}

type JobsConfig struct {
	RunHour     int
	Parallelism int
	StatusPort  string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_LOG_LEVEL", "info")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "ordercast")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("FORECAST_DAYS", 7)
		viper.SetDefault("FORECAST_LOOKBACK_DAYS", 28)
		viper.SetDefault("FORECAST_LEAD_TIME_DAYS", 3)
		viper.SetDefault("FORECAST_DEFAULT_LOT_SIZE", 1)
		viper.SetDefault("FORECAST_SNAPSHOT_TIMEOUT_SECONDS", 10)
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 300)
		viper.SetDefault("ARCHIVE_ENDPOINT", "")
		viper.SetDefault("ARCHIVE_ACCESS_KEY", "")
		viper.SetDefault("ARCHIVE_SECRET_KEY", "")
		viper.SetDefault("ARCHIVE_BUCKET", "forecast-archive")
		viper.SetDefault("ARCHIVE_USE_SSL", true)
		viper.SetDefault("ARCHIVE_AFTER_DAYS", 90)
		viper.SetDefault("JOBS_RUN_HOUR", 2)
		viper.SetDefault("JOBS_PARALLELISM", 8)
		viper.SetDefault("JOBS_STATUS_PORT", "8090")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				LogLevel:       viper.GetString("SERVER_LOG_LEVEL"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Forecast: ForecastConfig{
				ForecastDays:    viper.GetInt("FORECAST_DAYS"),
				LookbackDays:    viper.GetInt("FORECAST_LOOKBACK_DAYS"),
				LeadTimeDays:    viper.GetInt("FORECAST_LEAD_TIME_DAYS"),
				DefaultLotSize:  viper.GetInt("FORECAST_DEFAULT_LOT_SIZE"),
				SnapshotTimeout: viper.GetInt("FORECAST_SNAPSHOT_TIMEOUT_SECONDS"),
			},
			Cache: CacheConfig{
				Enabled:           viper.GetBool("CACHE_ENABLED"),
				RedisURL:          viper.GetString("REDIS_URL"),
				RedisHost:         viper.GetString("REDIS_HOST"),
				RedisPort:         viper.GetString("REDIS_PORT"),
				RedisPassword:     viper.GetString("REDIS_PASSWORD"),
				RedisDB:           viper.GetInt("REDIS_DB"),
				SummaryTTLSeconds: viper.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
			},
			Archive: ArchiveConfig{
				Endpoint:  viper.GetString("ARCHIVE_ENDPOINT"),
				AccessKey: viper.GetString("ARCHIVE_ACCESS_KEY"),
				SecretKey: viper.GetString("ARCHIVE_SECRET_KEY"),
				Bucket:    viper.GetString("ARCHIVE_BUCKET"),
				UseSSL:    viper.GetBool("ARCHIVE_USE_SSL"),
				AfterDays: viper.GetInt("ARCHIVE_AFTER_DAYS"),
			},
			Jobs: JobsConfig{
				RunHour:     viper.GetInt("JOBS_RUN_HOUR"),
				Parallelism: viper.GetInt("JOBS_PARALLELISM"),
				StatusPort:  viper.GetString("JOBS_STATUS_PORT"),
			},
		}
	})

	return instance
}

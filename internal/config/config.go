package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Board      BoardConfig      `mapstructure:"board"`
	Email      EmailConfig      `mapstructure:"email"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	APIKey      string `mapstructure:"api_key"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
	File       string `mapstructure:"file"`
}

// DetectionConfig tunes the risk scoring engine without code changes
type DetectionConfig struct {
	SuspicionThreshold      float64        `mapstructure:"suspicion_threshold"`
	CommercialAmplification float64        `mapstructure:"commercial_amplification"`
	MaxTextLength           int            `mapstructure:"max_text_length"`
	ProfileWeights          ProfileWeights `mapstructure:"profile_weights"`
	PostWeights             PostWeights    `mapstructure:"post_weights"`
}

// ProfileWeights are the per-signal contributions for profile scoring
type ProfileWeights struct {
	Trigger    float64 `mapstructure:"trigger"`
	Price      float64 `mapstructure:"price"`
	Contact    float64 `mapstructure:"contact"`
	Commercial float64 `mapstructure:"commercial"`
}

// PostWeights are the per-signal contributions for post scoring
type PostWeights struct {
	Trigger    float64 `mapstructure:"trigger"`
	Price      float64 `mapstructure:"price"`
	Commercial float64 `mapstructure:"commercial"`
}

type ScraperConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	SearchTerms       []string      `mapstructure:"search_terms"`
	Websites          []string      `mapstructure:"websites"`
	CustomSearch      SearchConfig  `mapstructure:"custom_search"`
}

type SearchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIURL   string `mapstructure:"api_url"`
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
}

type ScreenshotConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIURL   string        `mapstructure:"api_url"`
	APIKey   string        `mapstructure:"api_key"`
	Dir      string        `mapstructure:"dir"`
	Width    int           `mapstructure:"width"`
	Height   int           `mapstructure:"height"`
	FullPage bool          `mapstructure:"full_page"`
	Delay    time.Duration `mapstructure:"delay"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures a circuit breaker around an outbound API
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type BoardConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	BoardID int64         `mapstructure:"board_id"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type EmailConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	SMTPHost         string            `mapstructure:"smtp_host"`
	SMTPPort         int               `mapstructure:"smtp_port"`
	SMTPUser         string            `mapstructure:"smtp_user"`
	SMTPPassword     string            `mapstructure:"smtp_password"`
	From             string            `mapstructure:"from"`
	FromName         string            `mapstructure:"from_name"`
	UseTLS           bool              `mapstructure:"use_tls"`
	ResponseDeadline time.Duration     `mapstructure:"response_deadline"`
	Authorities      map[string]string `mapstructure:"authorities"`
}

type MonitorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	FileCases      bool          `mapstructure:"file_cases"`
	MaxTermsPerRun int           `mapstructure:"max_terms_per_run"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate checks settings the scoring engine depends on. A failure here is
// fatal: no analysis may run with a broken weight table.
func (c *Config) Validate() error {
	d := c.Detection
	if d.SuspicionThreshold < 0 || d.SuspicionThreshold > 100 {
		return fmt.Errorf("%w: detection.suspicion_threshold %.2f outside [0,100]", ErrInvalidConfig, d.SuspicionThreshold)
	}
	if d.CommercialAmplification <= 0 {
		return fmt.Errorf("%w: detection.commercial_amplification must be positive", ErrInvalidConfig)
	}
	weights := map[string]float64{
		"profile_weights.trigger":    d.ProfileWeights.Trigger,
		"profile_weights.price":      d.ProfileWeights.Price,
		"profile_weights.contact":    d.ProfileWeights.Contact,
		"profile_weights.commercial": d.ProfileWeights.Commercial,
		"post_weights.trigger":       d.PostWeights.Trigger,
		"post_weights.price":         d.PostWeights.Price,
		"post_weights.commercial":    d.PostWeights.Commercial,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: detection.%s is negative", ErrInvalidConfig, name)
		}
	}
	if c.Screenshot.Enabled && c.Screenshot.APIKey == "" {
		return fmt.Errorf("%w: screenshot.api_key required when screenshots are enabled", ErrInvalidConfig)
	}
	if c.Board.Enabled && (c.Board.APIKey == "" || c.Board.BoardID == 0) {
		return fmt.Errorf("%w: board.api_key and board.board_id required when the board is enabled", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hyaluron-watch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hyaluron")
	v.SetDefault("database.dbname", "hyaluron_watch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "hw:")
	v.SetDefault("redis.cache_ttl", 24*time.Hour)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "HYALURON_DETECTIONS")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("detection.suspicion_threshold", 50.0)
	v.SetDefault("detection.commercial_amplification", 3.0)
	v.SetDefault("detection.max_text_length", 1<<20)
	v.SetDefault("detection.profile_weights.trigger", 0.5)
	v.SetDefault("detection.profile_weights.price", 0.2)
	v.SetDefault("detection.profile_weights.contact", 0.1)
	v.SetDefault("detection.profile_weights.commercial", 0.2)
	v.SetDefault("detection.post_weights.trigger", 0.6)
	v.SetDefault("detection.post_weights.price", 0.2)
	v.SetDefault("detection.post_weights.commercial", 0.2)

	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.requests_per_second", 0.5)
	v.SetDefault("scraper.max_body_bytes", 5<<20)
	v.SetDefault("scraper.custom_search.api_url", "https://www.googleapis.com/customsearch/v1")

	v.SetDefault("screenshot.api_url", "https://api.screenshotapi.net/screenshot")
	v.SetDefault("screenshot.dir", "screenshots")
	v.SetDefault("screenshot.width", 1280)
	v.SetDefault("screenshot.height", 1024)
	v.SetDefault("screenshot.full_page", true)
	v.SetDefault("screenshot.delay", 2*time.Second)
	v.SetDefault("screenshot.timeout", 60*time.Second)
	v.SetDefault("screenshot.breaker.max_requests", 1)
	v.SetDefault("screenshot.breaker.interval", time.Minute)
	v.SetDefault("screenshot.breaker.timeout", 30*time.Second)
	v.SetDefault("screenshot.breaker.failure_threshold", 5)

	v.SetDefault("board.api_url", "https://api.monday.com/v2")
	v.SetDefault("board.timeout", 30*time.Second)
	v.SetDefault("board.breaker.max_requests", 1)
	v.SetDefault("board.breaker.interval", time.Minute)
	v.SetDefault("board.breaker.timeout", 30*time.Second)
	v.SetDefault("board.breaker.failure_threshold", 5)

	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_name", "IRI Legal Team")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.response_deadline", 5*24*time.Hour)

	v.SetDefault("monitor.interval", 6*time.Hour)
	v.SetDefault("monitor.lock_ttl", 30*time.Minute)
	v.SetDefault("monitor.file_cases", true)
	v.SetDefault("monitor.max_terms_per_run", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from file and environment variables. A missing
// config file is fine, defaults and environment cover every key.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hyaluron-watch")
	}

	v.SetEnvPrefix("HYALURON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// viper doesn't auto-bind nested keys without defaults
	_ = v.BindEnv("app.api_key", "HYALURON_APP_API_KEY")
	_ = v.BindEnv("database.password", "HYALURON_DATABASE_PASSWORD")
	_ = v.BindEnv("redis.password", "HYALURON_REDIS_PASSWORD")
	_ = v.BindEnv("nats.enabled", "HYALURON_NATS_ENABLED")
	_ = v.BindEnv("screenshot.enabled", "HYALURON_SCREENSHOT_ENABLED")
	_ = v.BindEnv("screenshot.api_key", "HYALURON_SCREENSHOT_API_KEY")
	_ = v.BindEnv("board.enabled", "HYALURON_BOARD_ENABLED")
	_ = v.BindEnv("board.api_key", "HYALURON_BOARD_API_KEY")
	_ = v.BindEnv("board.board_id", "HYALURON_BOARD_BOARD_ID")
	_ = v.BindEnv("email.enabled", "HYALURON_EMAIL_ENABLED")
	_ = v.BindEnv("email.smtp_host", "HYALURON_EMAIL_SMTP_HOST")
	_ = v.BindEnv("email.smtp_user", "HYALURON_EMAIL_SMTP_USER")
	_ = v.BindEnv("email.smtp_password", "HYALURON_EMAIL_SMTP_PASSWORD")
	_ = v.BindEnv("email.from", "HYALURON_EMAIL_FROM")
	_ = v.BindEnv("scraper.custom_search.enabled", "HYALURON_SCRAPER_CUSTOM_SEARCH_ENABLED")
	_ = v.BindEnv("scraper.custom_search.api_key", "HYALURON_SCRAPER_CUSTOM_SEARCH_API_KEY")
	_ = v.BindEnv("scraper.custom_search.engine_id", "HYALURON_SCRAPER_CUSTOM_SEARCH_ENGINE_ID")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/validator"
)

type ProviderName string

const (
	ProviderGemini   ProviderName = "gemini"
	ProviderFallback ProviderName = "fallback"
)

var ErrMissingGeminiKey = errors.New("generation.gemini.api_key is required when the provider is gemini")

type User struct {
	ID       string `mapstructure:"id"       json:"id"       validate:"required,uuid_rfc4122"`
	Username string `mapstructure:"username" json:"username" validate:"required"`
	APIKey   APIKey `mapstructure:"api_key"  json:"api_key"  validate:"required"`
	// Personal access token used for every repository call made on the user's behalf
	GithubToken string `mapstructure:"github_token"    json:"github_token"`
	// Alternative to GithubToken when the service runs as a GitHub App
	InstallationID *int64 `mapstructure:"installation_id" json:"installation_id"`
}

type APIKey struct {
	Active *bool  `mapstructure:"active" json:"active" validate:"required"`
	Token  string `mapstructure:"token"  json:"token"  validate:"required"`
}

type PostgresConfig struct {
	Host          string        `mapstructure:"host"           validate:"required"`
	User          string        `mapstructure:"user"           validate:"required"`
	Password      string        `mapstructure:"password"       validate:"required"`
	DBName        string        `mapstructure:"db_name"        validate:"required"`
	SSLMode       string        `mapstructure:"ssl_mode"       validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns" validate:"required"`
	MaxOpenConns  int           `mapstructure:"max_open_conns" validate:"required"`
	ConnectionTTL time.Duration `mapstructure:"connection_ttl" validate:"required"`
	Port          int           `mapstructure:"port"           validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

type GithubConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" validate:"omitempty,url"`
	RetryMax   int           `mapstructure:"retry_max"    validate:"min=0"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AppID      *int64        `mapstructure:"app_id"       validate:"required_with=AppKeyPath"`
	AppKeyPath *string       `mapstructure:"app_key_path" validate:"required_with=AppID"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

type GenerationConfig struct {
	Provider        ProviderName  `mapstructure:"provider"          validate:"required,oneof=gemini fallback"`
	Gemini          GeminiConfig  `mapstructure:"gemini"`
	Timeout         time.Duration `mapstructure:"timeout"           validate:"required"`
	MaxPreviewChars int           `mapstructure:"max_preview_chars" validate:"required,min=100"`
}

type PublishConfig struct {
	BranchPrefix string `mapstructure:"branch_prefix" validate:"required"`
	TestsDir     string `mapstructure:"tests_dir"     validate:"required"`
	WriteReadme  bool   `mapstructure:"write_readme"`
}

type S3ArchiveConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"          validate:"required_if=Enabled true"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required_if=Enabled true"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_if=Enabled true"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required_if=Enabled true"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type RateLimitConfig struct {
	RedisHost string `mapstructure:"redis_host"`
	// Zero disables the limiter
	GeneratePerMinute int64 `mapstructure:"generate_per_minute" validate:"min=0"`
	FailOpen          bool  `mapstructure:"fail_open"`
}

// See config.example.yaml for an example config
type Config struct {
	Postgres        *PostgresConfig   `mapstructure:"postgres"         validate:"required"`
	Logging         *LoggingConfig    `mapstructure:"logging"          validate:"required"`
	Github          *GithubConfig     `mapstructure:"github"           validate:"required"`
	Generation      *GenerationConfig `mapstructure:"generation"       validate:"required"`
	Publish         *PublishConfig    `mapstructure:"publish"          validate:"required"`
	S3Archive       *S3ArchiveConfig  `mapstructure:"s3_archive"`
	RateLimit       *RateLimitConfig  `mapstructure:"rate_limit"`
	ListenAddress   string            `mapstructure:"listen_address"   validate:"required"`
	Users           []User            `mapstructure:"users"            validate:"dive"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
}

const (
	AppLogLevel           string = "logging.app.level"
	EnvPrefix             string = "testsmith"
	GeminiAPIKey          string = "generation.gemini.api_key" // #nosec
	GeminiModel           string = "generation.gemini.model"
	GeminiTemperature     string = "generation.gemini.temperature"
	GenerationProvider    string = "generation.provider"
	GenerationTimeout     string = "generation.timeout"
	GenerationMaxPreview  string = "generation.max_preview_chars"
	GeneratePerMinute     string = "rate_limit.generate_per_minute"
	GithubAPIBaseURL      string = "github.api_base_url"
	GithubRetryMax        string = "github.retry_max"
	GithubTimeout         string = "github.timeout"
	GormLogLevel          string = "logging.gorm.level"
	GormTraceQueries      string = "logging.gorm.trace_queries"
	ListenAddress         string = "listen_address"
	PostgresConnectionTTL string = "postgres.connection_ttl"
	PostgresDBName        string = "postgres.db_name"
	PostgresHost          string = "postgres.host"
	PostgresMaxIdleConns  string = "postgres.max_idle_conns"
	PostgresMaxOpenConns  string = "postgres.max_open_conns"
	PostgresPassword      string = "postgres.password"
	PostgresPort          string = "postgres.port"
	PostgresSSLMode       string = "postgres.ssl_mode"
	PostgresUser          string = "postgres.user"
	PublishBranchPrefix   string = "publish.branch_prefix"
	PublishTestsDir       string = "publish.tests_dir"
	PublishWriteReadme    string = "publish.write_readme"
	RateLimitFailOpen     string = "rate_limit.fail_open"
	RedisHost             string = "rate_limit.redis_host"
	S3AccessKeyID         string = "s3_archive.access_key_id"
	S3ArchiveEnabled      string = "s3_archive.enabled"
	S3SSLEnabled          string = "s3_archive.ssl_enabled"
	S3SecretAccessKey     string = "s3_archive.secret_access_key" // #nosec
	ShutdownTimeout       string = "shutdown_timeout"
	UseOTLP               string = "logging.use_otlp"
)

const defaultGenerationTimeout = 60 * time.Second

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v, err := newViper()
	if err != nil {
		return nil, err
	}

	loaded, err := load(v)
	if err != nil {
		configReady = false
		return nil, err
	}

	config = *loaded
	configReady = true
	return &config, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")

	v.AddConfigPath("/etc/testsmith/")
	v.AddConfigPath("$HOME/.testsmith")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{
		PostgresPassword,
		GeminiAPIKey,
		S3AccessKeyID,
		S3SecretAccessKey,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(ShutdownTimeout, 30*time.Second)
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresDBName, "testsmith")
	v.SetDefault(PostgresSSLMode, "disable")
	v.SetDefault(PostgresMaxIdleConns, 2)
	v.SetDefault(PostgresMaxOpenConns, 10)
	v.SetDefault(PostgresConnectionTTL, 10*time.Minute)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(GithubAPIBaseURL, "")
	v.SetDefault(GithubRetryMax, 3)
	v.SetDefault(GithubTimeout, 30*time.Second)

	v.SetDefault(GenerationProvider, string(ProviderGemini))
	v.SetDefault(GeminiModel, "gemini-2.0-flash")
	v.SetDefault(GeminiTemperature, 0.2)
	v.SetDefault(GenerationTimeout, defaultGenerationTimeout)
	v.SetDefault(GenerationMaxPreview, 4000)

	v.SetDefault(PublishBranchPrefix, "testsmith/generated-tests")
	v.SetDefault(PublishTestsDir, "tests")
	v.SetDefault(PublishWriteReadme, true)

	v.SetDefault(S3ArchiveEnabled, false)
	v.SetDefault(S3SSLEnabled, true)

	v.SetDefault(RedisHost, "localhost:6379")
	v.SetDefault(GeneratePerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)

	return v, nil
}

func load(v *viper.Viper) (*Config, error) {
	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	valid := validator.Create()
	if err := valid.Validate(&c); err != nil {
		return nil, err
	}

	if c.Generation.Provider == ProviderGemini && c.Generation.Gemini.APIKey == "" {
		return nil, ErrMissingGeminiKey
	}

	return &c, nil
}

func (c *Config) PostgresDSN() string {
	dsn := fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.DBName),
	)
	if c.Postgres.SSLMode != "" {
		dsn += "?sslmode=" + url.QueryEscape(c.Postgres.SSLMode)
	}
	return dsn
}

// Reports whether generated artifacts should be copied to object storage
func (c *Config) ArchiveEnabled() bool {
	return c.S3Archive != nil && c.S3Archive.Enabled
}

// Reports whether generation requests are rate limited
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit != nil && c.RateLimit.GeneratePerMinute > 0
}

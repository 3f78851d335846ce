package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/validator"
)

type StorageBackend string

const (
	StorageBackendS3    StorageBackend = "s3"
	StorageBackendAzure StorageBackend = "azure"
)

type EmailProvider string

const (
	EmailProviderResend EmailProvider = "resend"
	EmailProviderLog    EmailProvider = "log"
)

type Admin struct {
	Email     string `mapstructure:"email"      json:"email"      validate:"required,email"`
	Password  string `mapstructure:"password"   json:"password"   validate:"required,min=8"`
	FirstName string `mapstructure:"first_name" json:"first_name" validate:"required"`
	LastName  string `mapstructure:"last_name"  json:"last_name"`
}

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type AzureConfig struct {
	StorageAccount *AzureStorageAccountConfig `mapstructure:"storage_account" validate:"required"`
	Dev            bool                       `mapstructure:"dev"`
}

type AzureStorageAccountConfig struct {
	ContainerURL string `mapstructure:"container_url"`
	QueueURL     string `mapstructure:"queue_url"`
	Name         string `mapstructure:"name"          validate:"required"`
	Key          string `mapstructure:"key"           validate:"required"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type StorageConfig struct {
	Azure             *AzureConfig   `mapstructure:"azure"              validate:"required_if=Backend azure"`
	S3                *S3Config      `mapstructure:"s3"                 validate:"required_if=Backend s3"`
	Backend           StorageBackend `mapstructure:"backend"            validate:"required,oneof=s3 azure"`
	SubmissionsBucket string         `mapstructure:"submissions_bucket" validate:"required"`
	PhotosBucket      string         `mapstructure:"photos_bucket"      validate:"required"`
}

type QueueConfig struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
}

type EmailConfig struct {
	Provider EmailProvider `mapstructure:"provider" validate:"required,oneof=resend log"`
	APIKey   string        `mapstructure:"api_key"  validate:"required_if=Provider resend"`
	From     string        `mapstructure:"from"     validate:"required"`
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
}

type NotificationsConfig struct {
	Queue QueueConfig `mapstructure:"queue"`
	Email EmailConfig `mapstructure:"email"`
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

type RateLimitConfig struct {
	RedisHost       string `mapstructure:"redis_host"`
	GlobalPerMinute int64  `mapstructure:"global_per_minute"`
	SubmitPerMinute int64  `mapstructure:"submit_per_minute"`
	FailOpen        bool   `mapstructure:"fail_open"`
}

type AppConfig struct {
	URL                     string `mapstructure:"url"                       validate:"required,url"`
	ReferencePrefix         string `mapstructure:"reference_prefix"          validate:"required,alphanum,max=8"`
	AutosaveIntervalSeconds int    `mapstructure:"autosave_interval_seconds" validate:"gt=0"`
	MaxTeamSize             int    `mapstructure:"max_team_size"             validate:"gte=2"`
}

// See challengeapi.yaml for an example config
type Config struct {
	Postgres             *PostgresConfig      `mapstructure:"postgres"               validate:"required"`
	Storage              *StorageConfig       `mapstructure:"storage"                validate:"required"`
	Notifications        *NotificationsConfig `mapstructure:"notifications"          validate:"required"`
	Logging              *LoggingConfig       `mapstructure:"logging"                validate:"required"`
	RateLimit            *RateLimitConfig     `mapstructure:"ratelimit"`
	App                  *AppConfig           `mapstructure:"app"                    validate:"required"`
	ListenAddress        string               `mapstructure:"listen_address"         validate:"required"`
	Admins               []Admin              `mapstructure:"admins"                 validate:"dive"`
	GracefulShutdownSecs int64                `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	AppURL                     string = "app.url"
	AutosaveIntervalSeconds    string = "app.autosave_interval_seconds"
	AzureDev                   string = "storage.azure.dev"
	AzureStorageAccountKey     string = "storage.azure.storage_account.key"
	EmailAPIKey                string = "notifications.email.api_key" // #nosec
	EmailBaseURL               string = "notifications.email.base_url"
	EmailProviderKey           string = "notifications.email.provider"
	EnvPrefix                  string = "challengeapi"
	UseOTLP                    string = "logging.use_otlp"
	GlobalPerMinute            string = "ratelimit.global_per_minute"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	ListenAddress              string = "listen_address"
	MaxTeamSize                string = "app.max_team_size"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	QueueEnabled               string = "notifications.queue.enabled"
	QueueName                  string = "notifications.queue.name"
	RateLimitFailOpen          string = "ratelimit.fail_open"
	RedisHost                  string = "ratelimit.redis_host"
	ReferencePrefix            string = "app.reference_prefix"
	S3AccessKeyID              string = "storage.s3.access_key_id"
	S3SSLEnabled               string = "storage.s3.ssl_enabled"
	S3SecretAccessKey          string = "storage.s3.secret_access_key" // #nosec
	StorageBackendKey          string = "storage.backend"
	PhotosBucket               string = "storage.photos_bucket"
	SubmissionsBucket          string = "storage.submissions_bucket"
	SubmitPerMinute            string = "ratelimit.submit_per_minute"
)

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("challengeapi")

	v.AddConfigPath("/etc/challengeapi/")
	v.AddConfigPath("$HOME/.challengeapi")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{
		PostgresPassword,
		AzureStorageAccountKey,
		S3AccessKeyID,
		S3SecretAccessKey,
		EmailAPIKey,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(AzureDev, false)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(S3SSLEnabled, true)
	v.SetDefault(StorageBackendKey, string(StorageBackendS3))
	v.SetDefault(SubmissionsBucket, "submission-files")
	v.SetDefault(PhotosBucket, "profile-photos")

	v.SetDefault(QueueEnabled, false)
	v.SetDefault(QueueName, "notifications")
	v.SetDefault(EmailProviderKey, string(EmailProviderLog))
	v.SetDefault(EmailBaseURL, "https://api.resend.com")

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(GlobalPerMinute, 0)
	v.SetDefault(SubmitPerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)

	v.SetDefault(AppURL, "http://localhost:3000")
	v.SetDefault(ReferencePrefix, "TGG")
	v.SetDefault(AutosaveIntervalSeconds, 60)
	v.SetDefault(MaxTeamSize, 5)

	v.SetDefault(UseOTLP, false)

	v.SetDefault(GracefulShutdownSecs, 30)

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

// Delivery failures are logged, never surfaced, so the queue is optional.
func (c *Config) QueueConfigured() bool {
	return c.Notifications.Queue.Enabled &&
		c.Storage.Azure != nil &&
		c.Storage.Azure.StorageAccount != nil &&
		c.Storage.Azure.StorageAccount.QueueURL != ""
}

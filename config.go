package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "./config.yml"
	defaultEnvFile    = "./config.env"
	envPrefix         = "LIBRARY"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string        `yaml:"git_commit" envconfig:"GIT_COMMIT"`
	GitTag                  string        `yaml:"git_tag" envconfig:"GIT_TAG"`
	BuildTime               string        `yaml:"build_time" envconfig:"BUILD_TIME"`
	IsProduction            bool          `yaml:"is_production" envconfig:"IS_PRODUCTION"`
	LogLevel                zapcore.Level `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFolder               string        `yaml:"log_folder" envconfig:"LOG_FOLDER"`
	LogMaxSize              int           `yaml:"log_max_size" envconfig:"LOG_MAX_SIZE"`
	OpsEndpointsEnable      bool          `yaml:"ops_endpoints_enable" envconfig:"OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool          `yaml:"profiler_endpoints_enable" envconfig:"PROFILER_ENDPOINTS_ENABLE"`
	DatabaseURL             string        `yaml:"database_url" envconfig:"DATABASE_URL" json:"-"`
	SecretKey               string        `yaml:"secret_key" envconfig:"SECRET_KEY" json:"-"`
	NotifyEmail             string        `yaml:"notify_email" envconfig:"NOTIFY_EMAIL"`
	Server                  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Mail                    MailConfig    `yaml:"mail" envconfig:"MAIL"`
	Queue                   QueueConfig   `yaml:"queue" envconfig:"QUEUE"`
	BoltDB                  BoltDBConfig  `yaml:"boltdb" envconfig:"BOLTDB"`
	Redis                   RedisConfig   `yaml:"redis" envconfig:"REDIS"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            string        `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type MailConfig struct {
	Server        string        `yaml:"server" split_words:"true"`
	Port          int           `yaml:"port" split_words:"true"`
	Username      string        `yaml:"username" split_words:"true"`
	Password      string        `yaml:"password" split_words:"true" json:"-"`
	UseTLS        bool          `yaml:"use_tls" split_words:"true"`
	UseSSL        bool          `yaml:"use_ssl" split_words:"true"`
	DefaultSender string        `yaml:"default_sender" split_words:"true"`
	Timeout       time.Duration `yaml:"timeout" split_words:"true"`
}

type QueueConfig struct {
	BrokerURL      string        `yaml:"broker_url" split_words:"true" json:"-"`
	ResultBackend  string        `yaml:"result_backend" split_words:"true" json:"-"`
	Workers        int           `yaml:"workers" split_words:"true"`
	Capacity       int           `yaml:"capacity" split_words:"true"`
	MaxRetries     int           `yaml:"max_retries" split_words:"true"`
	RetryDelay     time.Duration `yaml:"retry_delay" split_words:"true"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" split_words:"true"`
	PopTimeout     time.Duration `yaml:"pop_timeout" split_words:"true"`
	ResultTTL      time.Duration `yaml:"result_ttl" split_words:"true"`
}

type BoltDBConfig struct {
	Timeout    time.Duration `yaml:"timeout" split_words:"true"`
	BucketName string        `yaml:"bucket_name" split_words:"true"`
}

type RedisConfig struct {
	DialTimeout  time.Duration `yaml:"dial_timeout" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	PoolSize     int           `yaml:"pool_size" split_words:"true"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" split_words:"true"`
}

// LoadConfigFile provides an instance of config structure for the all application.
// A missing file is not an error and yields an empty configuration.
func LoadConfigFile(configFile string) (*Config, error) {
	cfg := &Config{}
	file, err := os.Open(configFile)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err = yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables into the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	setDefaults(config)

	if config.Mail.Port <= 0 || config.Mail.Port > 65535 {
		return fmt.Errorf("invalid mail server port %d", config.Mail.Port)
	}

	if config.Queue.MaxRetries < 0 {
		return errors.New("queue max retries cannot be negative")
	}

	return nil
}

func setDefaults(config *Config) {
	if config.LogFolder == "" {
		config.LogFolder = "./logs"
	}
	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = "bolt://./data/library.db"
	}
	if config.SecretKey == "" {
		config.SecretKey = "change-this-key"
	}

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == "" {
		config.Server.Port = "5000"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 10 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	if config.Mail.Server == "" {
		config.Mail.Server = "localhost"
	}
	if config.Mail.Port == 0 {
		config.Mail.Port = 25
	}
	if config.Mail.DefaultSender == "" {
		config.Mail.DefaultSender = "noreply@example.com"
	}
	if config.Mail.Timeout == 0 {
		config.Mail.Timeout = 15 * time.Second
	}

	if config.Queue.BrokerURL == "" {
		config.Queue.BrokerURL = "redis://localhost:6379/0"
	}
	if config.Queue.Workers <= 0 {
		config.Queue.Workers = 2
	}
	if config.Queue.Capacity <= 0 {
		config.Queue.Capacity = 1024
	}
	if config.Queue.MaxRetries == 0 {
		config.Queue.MaxRetries = 3
	}
	if config.Queue.RetryDelay == 0 {
		config.Queue.RetryDelay = 10 * time.Second
	}
	if config.Queue.EnqueueTimeout == 0 {
		config.Queue.EnqueueTimeout = 2 * time.Second
	}
	if config.Queue.PopTimeout == 0 {
		config.Queue.PopTimeout = time.Second
	}
	if config.Queue.ResultTTL == 0 {
		config.Queue.ResultTTL = 24 * time.Hour
	}

	if config.BoltDB.Timeout == 0 {
		config.BoltDB.Timeout = 5 * time.Second
	}
	if config.BoltDB.BucketName == "" {
		config.BoltDB.BucketName = "books"
	}

	if config.Redis.DialTimeout == 0 {
		config.Redis.DialTimeout = 5 * time.Second
	}
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile(defaultConfigFile)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration.
	err = godotenv.Load(defaultEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `LIBRARY`.
	err = LoadConfigEnvs(envPrefix, config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}

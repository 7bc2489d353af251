package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"

	"github.com/yukikurage/project-tracker/internal/constants"
)

type Config struct {
	StoreBackend string `mapstructure:"store_backend"`

	DBDriver   string `mapstructure:"db_driver"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`

	RedisHost        string        `mapstructure:"redis_host"`
	RedisPort        string        `mapstructure:"redis_port"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
	RedisPoolSize    int           `mapstructure:"redis_pool_size"`
	RedisDialTimeout time.Duration `mapstructure:"redis_dial_timeout"`
	RedisIdleTimeout time.Duration `mapstructure:"redis_idle_timeout"`
	StoreOpTimeout   time.Duration `mapstructure:"store_op_timeout"`

	SessionBackend string `mapstructure:"session_backend"`
	SessionSecret  string `mapstructure:"session_secret"`
	GinMode        string `mapstructure:"gin_mode"`
	ListenAddr     string `mapstructure:"listen_addr"`

	BackupDir     string `mapstructure:"backup_dir"`
	UploadBackend string `mapstructure:"upload_backend"`
	UploadDir     string `mapstructure:"upload_dir"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Region      string `mapstructure:"s3_region"`
	S3Endpoint    string `mapstructure:"s3_endpoint"`
	S3AccessKey   string `mapstructure:"s3_access_key"`
	S3SecretKey   string `mapstructure:"s3_secret_key"`
	S3Prefix      string `mapstructure:"s3_prefix"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"store_backend":      "redis",
	"db_driver":          "mysql",
	"db_host":            "localhost",
	"db_port":            "3306",
	"db_user":            "taskuser",
	"db_password":        "taskpassword",
	"db_name":            "task_management",
	"redis_host":         "localhost",
	"redis_port":         "6379",
	"redis_password":     "",
	"redis_db":           0,
	"redis_pool_size":    10,
	"redis_dial_timeout": "5s",
	"redis_idle_timeout": "240s",
	"store_op_timeout":   constants.DefaultStoreOpTimeout.String(),
	"session_backend":    "redis",
	"session_secret":     "default-secret-key-change-me",
	"gin_mode":           "debug",
	"listen_addr":        ":8080",
	"backup_dir":         "data/backups",
	"upload_backend":     "local",
	"upload_dir":         "data/uploads",
	"s3_bucket":          "",
	"s3_region":          "us-east-1",
	"s3_endpoint":        "",
	"s3_access_key":      "",
	"s3_secret_key":      "",
	"s3_prefix":          "uploads/",
	"log_level":          "info",
	"log_format":         "text",
}

// Load resolves configuration from defaults, then the optional YAML file at
// path, then environment variables (REDIS_HOST, DB_HOST, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "redis", "sql", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	switch c.SessionBackend {
	case "redis", "cookie":
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	switch c.UploadBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3 upload backend needs S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", c.UploadBackend)
	}
	if c.StoreOpTimeout <= 0 {
		return errors.New("store op timeout must be positive")
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}

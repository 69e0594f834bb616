// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	BodyLimitMB    int
}

type DatabaseConfig struct {
	Driver string // postgres | sqlite
	URL    string
	Path   string
}

type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	CookieName string
}

type LogConfig struct {
	Level     string
	File      string
	ErrorFile string
	Console   bool
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether uploads can be served.
func (r R2Config) Enabled() bool {
	return r.Bucket != "" && r.AccountID != ""
}

type ProfileSyncConfig struct {
	URL      string
	Token    string
	Interval time.Duration
}

type PushConfig struct {
	URL      string
	Interval time.Duration
}

type CacheConfig struct {
	EventsTTL     time.Duration
	CategoriesTTL time.Duration
}

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	GatewayToken string
	Session      SessionConfig
	Log          LogConfig
	R2           R2Config
	ProfileSync  ProfileSyncConfig
	Push         PushConfig
	Cache        CacheConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5200)
	v.SetDefault("server.allowed_origins", "http://localhost:3000")
	v.SetDefault("server.body_limit_mb", 10)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "doin.db")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.cookie_name", "app_session_id")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("profile_sync.interval", "1m")
	v.SetDefault("push.url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.interval", "30s")
	v.SetDefault("cache.events_ttl", "5m")
	v.SetDefault("cache.categories_ttl", "10m")
}

// Load reads .env, an optional config.yaml and the environment.
// Environment keys use underscores, e.g. DATABASE_URL for database.url.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️  No .env file found, reading environment variables directly")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
			BodyLimitMB:    v.GetInt("server.body_limit_mb"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			URL:    v.GetString("database.url"),
			Path:   v.GetString("database.path"),
		},
		GatewayToken: v.GetString("gateway.token"),
		Session: SessionConfig{
			Secret:     v.GetString("session.secret"),
			TTL:        v.GetDuration("session.ttl"),
			CookieName: v.GetString("session.cookie_name"),
		},
		Log: LogConfig{
			Level:     v.GetString("log.level"),
			File:      v.GetString("log.file"),
			ErrorFile: v.GetString("log.error_file"),
			Console:   v.GetBool("log.console"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			AccessKeySecret: v.GetString("r2.access_key_secret"),
			Bucket:          v.GetString("r2.bucket"),
			CDNBaseURL:      v.GetString("r2.cdn_base_url"),
		},
		ProfileSync: ProfileSyncConfig{
			URL:      v.GetString("profile_sync.url"),
			Token:    v.GetString("profile_sync.token"),
			Interval: v.GetDuration("profile_sync.interval"),
		},
		Push: PushConfig{
			URL:      v.GetString("push.url"),
			Interval: v.GetDuration("push.interval"),
		},
		Cache: CacheConfig{
			EventsTTL:     v.GetDuration("cache.events_ttl"),
			CategoriesTTL: v.GetDuration("cache.categories_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url (DATABASE_URL) must be set for the postgres driver")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret (SESSION_SECRET) must be set")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

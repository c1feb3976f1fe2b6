package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
)

// Config holds all service configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	ObjectStore  ObjectStoreConfig  `mapstructure:"objectstore"`
	NATS         NATSConfig         `mapstructure:"nats"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Crypto       CryptoConfig       `mapstructure:"crypto"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	GRPCPort     int           `mapstructure:"grpc_port"`
	HTTPPort     int           `mapstructure:"http_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type ObjectStoreConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Bucket       string `mapstructure:"bucket"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	PublicURL    string `mapstructure:"public_url"`
	MaxLogoBytes int64  `mapstructure:"max_logo_bytes"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type NotifyConfig struct {
	PushURL            string        `mapstructure:"push_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SuppressDuplicates bool          `mapstructure:"suppress_duplicates"`
	SeenSetSize        int           `mapstructure:"seen_set_size"`
}

type ProvisioningConfig struct {
	BrandingAttempts int           `mapstructure:"branding_attempts"`
	BrandingBackoff  time.Duration `mapstructure:"branding_backoff"`
}

type CryptoConfig struct {
	Key string `mapstructure:"key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Load reads configuration from defaults, the optional file at path, and
// BRANDING_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("branding")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8081)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("database.dsn", "host=localhost port=5432 user=admin password=securepassword dbname=tenant_registry sslmode=disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", time.Hour)

	v.SetDefault("objectstore.endpoint", "localhost:9000")
	v.SetDefault("objectstore.bucket", "branding")
	v.SetDefault("objectstore.max_logo_bytes", 2*1024*1024)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "tenant-branding-service")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("jwt.issuer", "tenant-branding-service")

	v.SetDefault("notify.push_url", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.suppress_duplicates", false)
	v.SetDefault("notify.seen_set_size", 512)

	v.SetDefault("provisioning.branding_attempts", 3)
	v.SetDefault("provisioning.branding_backoff", 200*time.Millisecond)

	// no usable default, the key must come from the file or BRANDING_CRYPTO_KEY
	v.SetDefault("crypto.key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the values the service cannot start without
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Provisioning.BrandingAttempts < 1 {
		return fmt.Errorf("provisioning.branding_attempts must be at least 1")
	}
	if c.ObjectStore.MaxLogoBytes <= 0 {
		return fmt.Errorf("objectstore.max_logo_bytes must be positive")
	}
	if c.Notify.SeenSetSize <= 0 {
		return fmt.Errorf("notify.seen_set_size must be positive")
	}
	if len(c.Crypto.Key) != 32 {
		return fmt.Errorf("crypto.key must be 32 bytes")
	}
	if c.Crypto.Key == crypto.DevelopmentKey {
		return fmt.Errorf("crypto.key must not be the built-in development key")
	}
	return nil
}

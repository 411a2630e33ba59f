package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	Port        string
	GRPCAddr    string
	Environment string
	Store       string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBMaxOpenConns int

	// RedisAddr empty selects the in-process idempotency store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreTimeout   time.Duration
	IdempotencyTTL time.Duration
}

// New returns a viper instance with defaults set and environment lookup
// enabled. Keys are the lower-cased environment variable names.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", "5000")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("environment", "development")
	v.SetDefault("store", StoreMySQL)

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 3306)
	v.SetDefault("db_user", "root")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "chemflo_inventory")
	v.SetDefault("db_max_open_conns", 10)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("store_timeout", 5*time.Second)
	v.SetDefault("idempotency_ttl", 24*time.Hour)

	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	password, err := DecodePassword(v.GetString("db_password"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		GRPCAddr:    v.GetString("grpc_addr"),
		Environment: v.GetString("environment"),
		Store:       strings.ToLower(v.GetString("store")),

		DBHost:         v.GetString("db_host"),
		DBPort:         v.GetInt("db_port"),
		DBUser:         v.GetString("db_user"),
		DBPassword:     password,
		DBName:         v.GetString("db_name"),
		DBMaxOpenConns: v.GetInt("db_max_open_conns"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		StoreTimeout:   v.GetDuration("store_timeout"),
		IdempotencyTTL: v.GetDuration("idempotency_ttl"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("config: unknown store %q, want %s or %s", c.Store, StoreMySQL, StoreMemory)
	}
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("config: DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	return nil
}

// DecodePassword URL-decodes a password that contains '%' and strips one
// leading and one trailing quote.
func DecodePassword(raw string) (string, error) {
	password := raw
	if strings.Contains(password, "%") {
		decoded, err := url.PathUnescape(password)
		if err != nil {
			return "", fmt.Errorf("config: decode DB_PASSWORD: %w", err)
		}
		password = decoded
	}

	if strings.HasPrefix(password, `"`) || strings.HasPrefix(password, `'`) {
		password = password[1:]
	}
	if strings.HasSuffix(password, `"`) || strings.HasSuffix(password, `'`) {
		password = password[:len(password)-1]
	}
	return password, nil
}

// HTTPAddr is the listen address for the HTTP server.
func (c *Config) HTTPAddr() string {
	return ":" + c.Port
}

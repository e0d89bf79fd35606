package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Badger    BadgerConfig    `mapstructure:"badger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Program   ProgramConfig   `mapstructure:"program"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Farms     []FarmConfig    `mapstructure:"farms"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Rejects every lifecycle step while reads keep working.
	ReadOnly bool `mapstructure:"read_only"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
	// Unit records older than this are purged. Zero keeps them forever.
	UnitRetentionHours int `mapstructure:"unit_retention_hours"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	LockTTLSeconds        int    `mapstructure:"lock_ttl_seconds"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type LedgerConfig struct {
	// memory or rpc
	Mode      string `mapstructure:"mode"`
	RPCURL    string `mapstructure:"rpc_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
	// Base58 secret key of the fee payer that submits every unit.
	PayerKey string `mapstructure:"payer_key"`
}

type ProgramConfig struct {
	// Program id used as the derivation namespace for chamber addresses.
	ID string `mapstructure:"id"`
}

type OracleConfig struct {
	MaxStaleSlots uint64 `mapstructure:"max_stale_slots"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type AuditConfig struct {
	File       string `mapstructure:"file"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// FarmConfig describes one leveraged farm and every external account it needs.
// Accounts holds base58 addresses keyed by role, e.g. "lending_program" or "amm_id".
type FarmConfig struct {
	Name          string            `mapstructure:"name"`
	LeveragedFarm string            `mapstructure:"leveraged_farm"`
	FarmIndex     uint64            `mapstructure:"farm_index"`
	Accounts      map[string]string `mapstructure:"accounts"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// e.g. CHAMBER_LEDGER_RPC_URL
	viper.SetEnvPrefix("chamber")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("database.unit_retention_hours", 720)
	viper.SetDefault("redis.lock_ttl_seconds", 60)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("ledger.mode", "memory")
	viper.SetDefault("ledger.timeout_ms", 30000)
	viper.SetDefault("program.id", "cmbrLdggVpadQMe54SMWVvSA6ajswMSBtwnLG2xyqZE")
	viper.SetDefault("oracle.max_stale_slots", 240)
	viper.SetDefault("rate_limit.qps", 20)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("audit.file", "data/units.jsonl")
	viper.SetDefault("audit.buffer_size", 1000)
}

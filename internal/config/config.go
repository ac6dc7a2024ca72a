package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Market     MarketConfig     `yaml:"market"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// MarketConfig seeds the genesis state of the marketplace: the exchange fee,
// initial listings, account balances and liquidity pools.
type MarketConfig struct {
	FeeRateBps     uint64        `yaml:"fee_rate_bps"`
	IdempotencyTTL int           `yaml:"idempotency_ttl_seconds"`
	Listings       []SeedListing `yaml:"listings"`
	Accounts       []SeedAccount `yaml:"accounts"`
	Pools          []SeedPool    `yaml:"pools"`
}

type SeedListing struct {
	Owner       string `yaml:"owner"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Quantity    uint32 `yaml:"quantity"`
	PriceAsset  uint32 `yaml:"price_asset"`
	PriceAmount uint64 `yaml:"price_amount"`
}

type SeedAccount struct {
	Account string `yaml:"account"`
	Asset   uint32 `yaml:"asset"`
	Amount  uint64 `yaml:"amount"`
}

type SeedPool struct {
	AssetA   uint32 `yaml:"asset_a"`
	ReserveA uint64 `yaml:"reserve_a"`
	AssetB   uint32 `yaml:"asset_b"`
	ReserveB uint64 `yaml:"reserve_b"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

// APIAuthConfig maps API keys to account identities. Authentication proper is
// the host system's job; a key here simply names the acting account.
type APIAuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	Header  string         `yaml:"header"`
	Keys    []APIClientKey `yaml:"keys"`
}

type APIClientKey struct {
	Key     string `yaml:"key"`
	Account string `yaml:"account"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// Optional .env next to the binary.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expanded, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Market.FeeRateBps >= 10_000 {
		return fmt.Errorf("market fee rate %d bps is not below 100%%", c.Market.FeeRateBps)
	}

	for i, listing := range c.Market.Listings {
		if listing.Owner == "" {
			return fmt.Errorf("seed listing %d (%s) has no owner", i, listing.Name)
		}
		if listing.Name == "" {
			return fmt.Errorf("seed listing %d has no name", i)
		}
	}

	for _, pool := range c.Market.Pools {
		if pool.AssetA == pool.AssetB {
			return fmt.Errorf("seed pool pairs asset %d with itself", pool.AssetA)
		}
	}

	if c.API.Auth.Enabled {
		seen := make(map[string]bool, len(c.API.Auth.Keys))
		for _, k := range c.API.Auth.Keys {
			if k.Key == "" || k.Account == "" {
				return errors.New("api auth keys need both key and account")
			}
			if seen[k.Key] {
				return errors.New("duplicate api key in config")
			}
			seen[k.Key] = true
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bazaar"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.Header == "" {
		c.API.Auth.Header = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Market.IdempotencyTTL == 0 {
		c.Market.IdempotencyTTL = 300
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

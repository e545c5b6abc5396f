package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// Defaults for the Avalanche Fuji test network.
const (
	DefaultRPCURL        = "https://api.avax-test.network/ext/bc/C/rpc"
	DefaultChainID       = 43113
	DefaultGatewayURL    = "http://localhost:4000"
	DefaultIPFSGateway   = "https://ipfs.io/ipfs/"
	DefaultPinataURL     = "https://api.pinata.cloud"
	DefaultPollInterval  = 3 * time.Second
	DefaultMaxRentalCost = "100"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	NATSURL     string

	// Upload gateway
	APIKey          string
	PinataAPIKey    string
	PinataSecretKey string
	PinataAPIURL    string
	GatewayURL      string
	IPFSGateway     string

	// Ledger
	Network         string
	RPCURL          string
	ChainID         int64
	RegistryAddress string
	PollInterval    time.Duration
	MaxRentalCost   string // display tokens
	KeyFile         string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Network is one named ledger profile in the YAML overlay.
type Network struct {
	RPCURL          string `yaml:"rpc_url"`
	ChainID         int64  `yaml:"chain_id"`
	RegistryAddress string `yaml:"registry_address"`
}

// File is the YAML overlay format.
type File struct {
	Network       string             `yaml:"network"`
	Networks      map[string]Network `yaml:"networks"`
	GatewayURL    string             `yaml:"gateway_url"`
	IPFSGateway   string             `yaml:"ipfs_gateway"`
	PinataAPIURL  string             `yaml:"pinata_api_url"`
	PollInterval  string             `yaml:"poll_interval"`
	MaxRentalCost string             `yaml:"max_rental_cost"`
	KeyFile       string             `yaml:"key_file"`
}

// Load reads configuration from environment variables, layered over the
// YAML file named by MARKET_CONFIG when set.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	cfg, err := LoadFrom(os.Getenv("MARKET_CONFIG"))
	if err != nil {
		panic(err)
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.APIKey == "" {
			panic("GATEWAY_API_KEY is required in production")
		}
		if cfg.PinataAPIKey == "" || cfg.PinataSecretKey == "" {
			panic("PINATA_API_KEY and PINATA_SECRET_KEY are required in production")
		}
	}

	return cfg
}

// LoadFrom builds a config from defaults, then the YAML file at path (if
// any), then the environment. Later layers win.
func LoadFrom(path string) (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          "4000",
		Env:           "development",
		SQLitePath:    "./data/market.db",
		PinataAPIURL:  DefaultPinataURL,
		GatewayURL:    DefaultGatewayURL,
		IPFSGateway:   DefaultIPFSGateway,
		Network:       "fuji",
		RPCURL:        DefaultRPCURL,
		ChainID:       DefaultChainID,
		PollInterval:  DefaultPollInterval,
		MaxRentalCost: DefaultMaxRentalCost,
		KeyFile:       defaultKeyFile(),
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.GatewayURL, f.GatewayURL)
	setString(&c.IPFSGateway, f.IPFSGateway)
	setString(&c.PinataAPIURL, f.PinataAPIURL)
	setString(&c.MaxRentalCost, f.MaxRentalCost)
	setString(&c.KeyFile, f.KeyFile)
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("parse config %s: poll_interval: %w", path, err)
		}
		c.PollInterval = d
	}

	if f.Network != "" {
		c.Network = f.Network
	}
	if n, ok := f.Networks[c.Network]; ok {
		c.applyNetwork(n)
	} else if f.Network != "" {
		return fmt.Errorf("parse config %s: network %q is not defined", path, f.Network)
	}
	return nil
}

func (c *Config) applyNetwork(n Network) {
	setString(&c.RPCURL, n.RPCURL)
	setString(&c.RegistryAddress, n.RegistryAddress)
	if n.ChainID != 0 {
		c.ChainID = n.ChainID
	}
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)

	c.APIKey = getEnv("GATEWAY_API_KEY", getEnv("MY_API_KEY", c.APIKey))
	c.PinataAPIKey = getEnv("PINATA_API_KEY", c.PinataAPIKey)
	c.PinataSecretKey = getEnv("PINATA_SECRET_KEY", getEnv("PINATA_SECRET_API_KEY", c.PinataSecretKey))
	c.PinataAPIURL = getEnv("PINATA_API_URL", c.PinataAPIURL)
	c.GatewayURL = getEnv("GATEWAY_URL", c.GatewayURL)
	c.IPFSGateway = getEnv("IPFS_GATEWAY", c.IPFSGateway)

	c.RPCURL = getEnv("RPC_URL", c.RPCURL)
	c.RegistryAddress = getEnv("AGENT_REGISTRY_ADDRESS", c.RegistryAddress)
	c.MaxRentalCost = getEnv("MARKET_MAX_RENTAL_COST", c.MaxRentalCost)
	c.KeyFile = getEnv("MARKET_KEY_FILE", c.KeyFile)
	c.AutoBlockEnabled = getEnv("AUTO_BLOCK_ENABLED", "false") == "true"

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("CHAIN_ID: invalid value %q", v)
		}
		c.ChainID = id
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("POLL_INTERVAL: invalid value %q", v)
		}
		c.PollInterval = d
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		c.RateLimitWhitelist = nil
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				c.RateLimitWhitelist = append(c.RateLimitWhitelist, entry)
			}
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LedgerConfigured reports whether a registry contract is set.
func (c *Config) LedgerConfigured() bool {
	return c.RPCURL != "" && c.RegistryAddress != ""
}

// MaxCost returns the rental sanity bound in smallest units.
func (c *Config) MaxCost() (*big.Int, error) {
	v, err := units.ParseAmount(c.MaxRentalCost)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MAX_RENTAL_COST: %w", err)
	}
	return v, nil
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".market/key"
	}
	return filepath.Join(home, ".market", "key")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

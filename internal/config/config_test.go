package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "DATABASE_URL", "REDIS_URL", "RPC_URL", "CHAIN_ID",
		"AGENT_REGISTRY_ADDRESS", "POLL_INTERVAL", "MARKET_MAX_RENTAL_COST",
		"GATEWAY_API_KEY", "MY_API_KEY", "IPFS_GATEWAY", "RATE_LIMIT_WHITELIST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "4000" {
		t.Fatalf("expected port 4000, got %s", cfg.Port)
	}
	if cfg.ChainID != DefaultChainID || cfg.RPCURL != DefaultRPCURL {
		t.Fatalf("unexpected network defaults %d %s", cfg.ChainID, cfg.RPCURL)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.LedgerConfigured() {
		t.Fatal("ledger should not be configured without a registry address")
	}

	bound, err := cfg.MaxCost()
	if err != nil {
		t.Fatalf("max cost: %v", err)
	}
	if bound.String() != "100000000000000000000" {
		t.Fatalf("unexpected bound %s", bound)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
network: local
poll_interval: 5s
max_rental_cost: "2.5"
networks:
  fuji:
    registry_address: "0x00000000000000000000000000000000000000f0"
  local:
    rpc_url: http://127.0.0.1:9650/ext/bc/C/rpc
    chain_id: 1337
    registry_address: "0x00000000000000000000000000000000000000aa"
`

func TestLoadFileProfile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 1337 || cfg.RPCURL != "http://127.0.0.1:9650/ext/bc/C/rpc" {
		t.Fatalf("profile not applied: %d %s", cfg.ChainID, cfg.RPCURL)
	}
	if cfg.RegistryAddress != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("unexpected registry %s", cfg.RegistryAddress)
	}
	if cfg.PollInterval != 5*time.Second || cfg.MaxRentalCost != "2.5" {
		t.Fatalf("file values not applied: %s %s", cfg.PollInterval, cfg.MaxRentalCost)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAIN_ID", "43114")
	t.Setenv("POLL_INTERVAL", "1s")
	t.Setenv("MY_API_KEY", "legacy")

	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 43114 || cfg.PollInterval != time.Second {
		t.Fatalf("env did not win: %d %s", cfg.ChainID, cfg.PollInterval)
	}
	if cfg.APIKey != "legacy" {
		t.Fatalf("expected legacy api key name to be honored, got %q", cfg.APIKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAIN_ID", "abc")
	if _, err := LoadFrom(""); err == nil {
		t.Fatal("expected error for bad CHAIN_ID")
	}

	clearEnv(t)
	if _, err := LoadFrom(writeConfig(t, "network: mainnet\n")); err == nil {
		t.Fatal("expected error for undefined network profile")
	}
}

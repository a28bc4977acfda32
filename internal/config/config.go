package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the volley server.
type Config struct {
	General  GeneralConfig  `yaml:"general"`
	Server   ServerConfig   `yaml:"server"`
	Solana   SolanaConfig   `yaml:"solana"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type SolanaConfig struct {
	RPCEndpoint      string  `yaml:"rpc_endpoint"`
	WSEndpoint       string  `yaml:"ws_endpoint"`
	SignerEndpoint   string  `yaml:"signer_endpoint"`
	TimeoutS         int     `yaml:"timeout_s"`
	PollIntervalMs   int     `yaml:"poll_interval_ms"`
	ReconnectDelayMs int     `yaml:"reconnect_delay_ms"`
	PingIntervalS    int     `yaml:"ping_interval_s"`
	SlippagePct      float64 `yaml:"slippage_pct"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty disables the durable ledger sink
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a config with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "volley-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Solana.RPCEndpoint == "" {
		cfg.Solana.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.WSEndpoint == "" {
		cfg.Solana.WSEndpoint = "wss://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.SignerEndpoint == "" {
		cfg.Solana.SignerEndpoint = "http://localhost:8899"
	}
	if cfg.Solana.TimeoutS == 0 {
		cfg.Solana.TimeoutS = 10
	}
	if cfg.Solana.PollIntervalMs == 0 {
		cfg.Solana.PollIntervalMs = 1000
	}
	if cfg.Solana.ReconnectDelayMs == 0 {
		cfg.Solana.ReconnectDelayMs = 1000
	}
	if cfg.Solana.PingIntervalS == 0 {
		cfg.Solana.PingIntervalS = 30
	}
	if cfg.Solana.SlippagePct == 0 {
		cfg.Solana.SlippagePct = 5
	}
}

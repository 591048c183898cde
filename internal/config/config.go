package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

// Config holds the sysinfo server configuration.
type Config struct {
	Host            string           `mapstructure:"host"`
	Port            string           `mapstructure:"port"`
	HTTPListen      string           `mapstructure:"http_listen"`
	GRPCListen      string           `mapstructure:"grpc_listen"`
	EnableSwagger   bool             `mapstructure:"enable_swagger"`
	APISecret       string           `mapstructure:"api_secret"`
	LogLevel        string           `mapstructure:"log_level"`
	LogFormat       string           `mapstructure:"log_format"`
	StrategyTimeout time.Duration    `mapstructure:"strategy_timeout"`
	CPUSample       time.Duration    `mapstructure:"cpu_sample"`
	ExternalIP      ExternalIP       `mapstructure:"external_ip"`
	Limits          collector.Limits `mapstructure:"limits"`
}

// ExternalIP controls the public address lookup.
type ExternalIP struct {
	Enabled   bool     `mapstructure:"enabled"`
	Endpoints []string `mapstructure:"endpoints"`
}

// Load reads configuration from .env, the config file, and the environment.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sysinfo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sysinfo")
	}

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", "")
	v.SetDefault("http_listen", ":9551")
	v.SetDefault("grpc_listen", ":9550")
	v.SetDefault("enable_swagger", true)
	v.SetDefault("api_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("strategy_timeout", collector.DefaultTimeout)
	v.SetDefault("cpu_sample", collector.DefaultCPUSample)
	v.SetDefault("external_ip.enabled", true)
	v.SetDefault("external_ip.endpoints", collector.DefaultExternalIPEndpoints)
	d := collector.DefaultLimits()
	v.SetDefault("limits.gpus", d.GPUs)
	v.SetDefault("limits.displays", d.Displays)
	v.SetDefault("limits.interfaces", d.Interfaces)
	v.SetDefault("limits.dns_servers", d.DNSServers)
	v.SetDefault("limits.volumes", d.Volumes)
	v.SetDefault("limits.devices", d.Devices)
	v.SetDefault("limits.processes", d.Processes)
	v.SetDefault("limits.listening_ports", d.ListeningPorts)
	v.SetDefault("limits.remote_hosts", d.RemoteHosts)

	v.SetEnvPrefix("SYSINFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Plain HOST and PORT select the MCP transport.
	_ = v.BindEnv("host", "SYSINFO_HOST", "HOST")
	_ = v.BindEnv("port", "SYSINFO_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if c.StrategyTimeout <= 0 {
		return fmt.Errorf("strategy_timeout must be positive, got %s", c.StrategyTimeout)
	}
	if c.CPUSample <= 0 {
		return fmt.Errorf("cpu_sample must be positive, got %s", c.CPUSample)
	}
	if c.CPUSample >= c.StrategyTimeout {
		return fmt.Errorf("cpu_sample (%s) must be shorter than strategy_timeout (%s)", c.CPUSample, c.StrategyTimeout)
	}
	return nil
}

// MCPAddr is the streamable-HTTP address, or "" when MCP runs over stdio.
func (c *Config) MCPAddr() string {
	if c.Port == "" {
		return ""
	}
	return c.Host + ":" + c.Port
}

// CollectorOptions builds collector options for the detected platform.
func (c *Config) CollectorOptions() collector.Options {
	return collector.Options{
		Platform:            platform.Detect(),
		Timeout:             c.StrategyTimeout,
		CPUSample:           c.CPUSample,
		Limits:              c.Limits,
		ExternalIPEnabled:   c.ExternalIP.Enabled,
		ExternalIPEndpoints: c.ExternalIP.Endpoints,
	}
}

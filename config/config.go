// Package config loads the pricefeed YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr     = ":8080"
	DefaultCacheTTL       = 30 * time.Second
	DefaultMaxConcurrency = 8
	DefaultHistoryDir     = "./wal/prices"
	DefaultTLSCacheDir    = "./certs"
	DefaultMaxStaleness   = time.Hour
	DefaultPythEndpoint   = "https://hermes.pyth.network"
	DefaultQuote          = "USDT"
	DefaultConfidence     = 0.8
	DefaultTimeout        = 10 * time.Second
)

// Supported custom providers.
const (
	ProviderHTTP    = "http"
	ProviderBinance = "binance"
	ProviderBybit   = "bybit"

	// ProviderHyperliquid reads mid prices; custom.url optionally overrides the API base URL.
	ProviderHyperliquid = "hyperliquid"
)

type Config struct {
	ListenAddr     string
	LogLevel       zapcore.Level
	CacheTTL       time.Duration
	Assets         []string
	MaxConcurrency int
	HistoryDir     string
	TLS            TLSConfig
	API            APIConfig

	// Sources, nil when not configured.
	Chainlink *ChainlinkConfig
	Pyth      *PythConfig
	Custom    *CustomConfig
}

type TLSConfig struct {
	Domains  []string
	CacheDir string
}

// Enabled reports whether automatic certificates are requested.
func (t TLSConfig) Enabled() bool {
	return len(t.Domains) > 0
}

// APIConfig limits inbound requests per client. Zero RequestsPerSecond disables the limit.
type APIConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type ChainlinkConfig struct {
	RPCURL       string
	ChainID      uint64
	MaxStaleness time.Duration
	Feeds        map[string]common.Address
}

type PythConfig struct {
	Endpoint          string
	RequestsPerSecond float64
	Feeds             map[string]string
}

type CustomConfig struct {
	Provider          string
	URL               string
	APIKeyHeader      string
	APIKey            string
	Assets            []string
	PricePath         string
	TimestampPath     string
	ConfidencePath    string
	SignaturePath     string
	Signer            *common.Address
	Quote             string
	Confidence        float64
	Timeout           time.Duration
	RequestsPerSecond float64
}

type ConfigTmp struct {
	ListenAddr     string        `yaml:"listen_addr,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl,omitempty"`
	Assets         []string      `yaml:"assets,omitempty"`
	MaxConcurrency int           `yaml:"max_concurrency,omitempty"`
	History        struct {
		Dir string `yaml:"dir,omitempty"`
	} `yaml:"history,omitempty"`
	TLS struct {
		Domains  []string `yaml:"domains,omitempty"`
		CacheDir string   `yaml:"cache_dir,omitempty"`
	} `yaml:"tls,omitempty"`
	API struct {
		RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
		Burst             int     `yaml:"burst,omitempty"`
	} `yaml:"api,omitempty"`
	Chainlink *ChainlinkTmp `yaml:"chainlink,omitempty"`
	Pyth      *PythTmp      `yaml:"pyth,omitempty"`
	Custom    *CustomTmp    `yaml:"custom,omitempty"`
}

type ChainlinkTmp struct {
	RPCURL       string            `yaml:"rpc_url"`
	ChainID      uint64            `yaml:"chain_id,omitempty"`
	MaxStaleness time.Duration     `yaml:"max_staleness,omitempty"`
	Feeds        map[string]string `yaml:"feeds"`
}

type PythTmp struct {
	Endpoint          string            `yaml:"endpoint,omitempty"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	Feeds             map[string]string `yaml:"feeds"`
}

type CustomTmp struct {
	Provider          string        `yaml:"provider"`
	URL               string        `yaml:"url,omitempty"`
	APIKeyHeader      string        `yaml:"api_key_header,omitempty"`
	APIKeyEnv         string        `yaml:"api_key_env,omitempty"`
	Assets            []string      `yaml:"assets,omitempty"`
	PricePath         string        `yaml:"price_path,omitempty"`
	TimestampPath     string        `yaml:"timestamp_path,omitempty"`
	ConfidencePath    string        `yaml:"confidence_path,omitempty"`
	SignaturePath     string        `yaml:"signature_path,omitempty"`
	SignerAddress     string        `yaml:"signer_address,omitempty"`
	Quote             string        `yaml:"quote,omitempty"`
	Confidence        *float64      `yaml:"confidence,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applying defaults.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, fmt.Errorf("failed to decode yaml config: %w", err)
	}
	return tmp.Parse()
}

// Parse converts the raw YAML values into a validated Config.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		ListenAddr:     withDefault(c.ListenAddr, DefaultListenAddr),
		CacheTTL:       c.CacheTTL,
		MaxConcurrency: c.MaxConcurrency,
		HistoryDir:     withDefault(c.History.Dir, DefaultHistoryDir),
		TLS: TLSConfig{
			Domains:  c.TLS.Domains,
			CacheDir: withDefault(c.TLS.CacheDir, DefaultTLSCacheDir),
		},
		API: APIConfig{
			RequestsPerSecond: c.API.RequestsPerSecond,
			Burst:             c.API.Burst,
		},
	}

	level, err := zapcore.ParseLevel(withDefault(c.LogLevel, "info"))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'log_level' param in yaml config: %w", err)
	}
	cfg.LogLevel = level

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheTTL < 0 {
		return Config{}, fmt.Errorf("incorrect 'cache_ttl' param in yaml config: must be positive, got %s", cfg.CacheTTL)
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MaxConcurrency < 0 {
		return Config{}, fmt.Errorf("incorrect 'max_concurrency' param in yaml config: must be positive, got %d", cfg.MaxConcurrency)
	}
	if cfg.API.RequestsPerSecond < 0 {
		return Config{}, fmt.Errorf("incorrect 'api.requests_per_second' param in yaml config: must not be negative")
	}
	if cfg.API.RequestsPerSecond > 0 && cfg.API.Burst <= 0 {
		cfg.API.Burst = int(cfg.API.RequestsPerSecond) + 1
	}
	for _, a := range c.Assets {
		cfg.Assets = append(cfg.Assets, normalizeSymbol(a))
	}

	if c.Chainlink != nil {
		if cfg.Chainlink, err = c.Chainlink.parse(); err != nil {
			return Config{}, err
		}
	}
	if c.Pyth != nil {
		if cfg.Pyth, err = c.Pyth.parse(); err != nil {
			return Config{}, err
		}
	}
	if c.Custom != nil {
		if cfg.Custom, err = c.Custom.parse(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func (c ChainlinkTmp) parse() (*ChainlinkConfig, error) {
	if c.RPCURL == "" {
		return nil, fmt.Errorf("incorrect 'chainlink.rpc_url' param in yaml config: required")
	}
	if len(c.Feeds) == 0 {
		return nil, fmt.Errorf("incorrect 'chainlink.feeds' param in yaml config: at least one feed is required")
	}

	out := &ChainlinkConfig{
		RPCURL:       c.RPCURL,
		ChainID:      c.ChainID,
		MaxStaleness: c.MaxStaleness,
		Feeds:        make(map[string]common.Address, len(c.Feeds)),
	}
	if out.MaxStaleness == 0 {
		out.MaxStaleness = DefaultMaxStaleness
	}
	for asset, addr := range c.Feeds {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("incorrect 'chainlink.feeds.%s' param in yaml config: %q is not an address", asset, addr)
		}
		out.Feeds[normalizeSymbol(asset)] = common.HexToAddress(addr)
	}
	return out, nil
}

func (c PythTmp) parse() (*PythConfig, error) {
	if len(c.Feeds) == 0 {
		return nil, fmt.Errorf("incorrect 'pyth.feeds' param in yaml config: at least one feed is required")
	}

	out := &PythConfig{
		Endpoint:          strings.TrimRight(withDefault(c.Endpoint, DefaultPythEndpoint), "/"),
		RequestsPerSecond: c.RequestsPerSecond,
		Feeds:             make(map[string]string, len(c.Feeds)),
	}
	for asset, id := range c.Feeds {
		id = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(id)), "0x")
		if len(id) != 64 {
			return nil, fmt.Errorf("incorrect 'pyth.feeds.%s' param in yaml config: feed id must be 32 bytes hex", asset)
		}
		out.Feeds[normalizeSymbol(asset)] = id
	}
	return out, nil
}

func (c CustomTmp) parse() (*CustomConfig, error) {
	out := &CustomConfig{
		Provider:          strings.ToLower(withDefault(c.Provider, ProviderHTTP)),
		URL:               c.URL,
		APIKeyHeader:      c.APIKeyHeader,
		PricePath:         c.PricePath,
		TimestampPath:     c.TimestampPath,
		ConfidencePath:    c.ConfidencePath,
		SignaturePath:     c.SignaturePath,
		Quote:             strings.ToUpper(withDefault(c.Quote, DefaultQuote)),
		Confidence:        DefaultConfidence,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if c.Confidence != nil {
		if !(*c.Confidence > 0 && *c.Confidence <= 1) {
			return nil, fmt.Errorf("incorrect 'custom.confidence' param in yaml config: must be within (0,1], got %v", *c.Confidence)
		}
		out.Confidence = *c.Confidence
	}
	for _, a := range c.Assets {
		out.Assets = append(out.Assets, normalizeSymbol(a))
	}

	switch out.Provider {
	case ProviderHTTP:
		if !strings.Contains(c.URL, "{asset}") {
			return nil, fmt.Errorf("incorrect 'custom.url' param in yaml config: must contain the {asset} placeholder")
		}
	case ProviderBinance, ProviderBybit, ProviderHyperliquid:
	default:
		return nil, fmt.Errorf("incorrect 'custom.provider' param in yaml config: %q (supported: http, binance, bybit, hyperliquid)", c.Provider)
	}

	if c.APIKeyEnv != "" {
		out.APIKey = os.Getenv(c.APIKeyEnv)
		if out.APIKey == "" {
			return nil, fmt.Errorf("environment variable %s must be set", c.APIKeyEnv)
		}
		if out.APIKeyHeader == "" {
			out.APIKeyHeader = "X-API-Key"
		}
	}

	if c.SignerAddress != "" {
		if !common.IsHexAddress(c.SignerAddress) {
			return nil, fmt.Errorf("incorrect 'custom.signer_address' param in yaml config: %q is not an address", c.SignerAddress)
		}
		signer := common.HexToAddress(c.SignerAddress)
		out.Signer = &signer
	}

	return out, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

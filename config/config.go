// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	minJWTLength = 32
)

// Wallet modes.
const (
	WalletModeNone     = "none"
	WalletModeLocal    = "local"
	WalletModeKeystore = "keystore"
	WalletModeExternal = "external"
)

// Defaults for the deployed EAS registry and the two feedback schemas.
const (
	DefaultEASContractAddress = "0xC2679fBD37d54388Ce493F1DB75320D236e1815e"
	DefaultFeedbackSchemaUID  = "0xf96cba05e00404771493fc70715f5afa43f784d8bd464954358f216fc014e090"
	DefaultNotUsefulSchemaUID = "0x74e3a8fc864bea385b06b01eae46dc3252332350946fd1a454464b40e08c549f"
	DefaultGasLimit           = 500000
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	// JwtSecretKey enables bearer authentication on the feedback routes when set.
	JwtSecretKey string `mapstructure:"JWT_SECRET_KEY" yaml:"jwt_secret_key"`
	// TrustedProxies is a list of CIDR ranges or IPs of trusted reverse proxies.
	// If empty, X-Forwarded-For headers are ignored entirely.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
}

// EthereumConfig holds the JSON-RPC endpoint used for transactions and receipts.
type EthereumConfig struct {
	RPCURL string `mapstructure:"RPC_URL" yaml:"rpc_url"`
	// ChainID is optional; when zero it is queried from the node at startup.
	ChainID int64 `mapstructure:"CHAIN_ID" yaml:"chain_id"`
}

// WalletConfig selects and configures the signer that stands in for the
// browser wallet extension.
type WalletConfig struct {
	Mode               string `mapstructure:"MODE" yaml:"mode"`
	PrivateKey         string `mapstructure:"PRIVATE_KEY" yaml:"private_key"`
	KeystorePath       string `mapstructure:"KEYSTORE_PATH" yaml:"keystore_path"`
	KeystorePassphrase string `mapstructure:"KEYSTORE_PASSPHRASE" yaml:"keystore_passphrase"`
	ExternalSignerURL  string `mapstructure:"EXTERNAL_SIGNER_URL" yaml:"external_signer_url"`
}

// AttestationConfig holds the fixed registry address and schema identifiers.
type AttestationConfig struct {
	EASContractAddress string `mapstructure:"EAS_CONTRACT_ADDRESS" yaml:"eas_contract_address"`
	FeedbackSchemaUID  string `mapstructure:"FEEDBACK_SCHEMA_UID" yaml:"feedback_schema_uid"`
	NotUsefulSchemaUID string `mapstructure:"NOT_USEFUL_SCHEMA_UID" yaml:"not_useful_schema_uid"`
	GasLimit           uint64 `mapstructure:"GAS_LIMIT" yaml:"gas_limit"`
	// ConfirmationTimeoutSeconds bounds the receipt wait. Zero leaves it to the node.
	ConfirmationTimeoutSeconds int `mapstructure:"CONFIRMATION_TIMEOUT_SECONDS" yaml:"confirmation_timeout_seconds"`
}

// EncoderConfig tunes payload encoding.
type EncoderConfig struct {
	// PermissiveNumbers accepts "12abc" as 12 the way the web form did.
	PermissiveNumbers bool `mapstructure:"PERMISSIVE_NUMBERS" yaml:"permissive_numbers"`
}

// RedisConfig holds Redis connection details. An empty address disables Redis.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	UseTLS   bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
}

// FormsConfig holds form session settings.
type FormsConfig struct {
	Store             string `mapstructure:"STORE" yaml:"store"` // "memory" or "redis"
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES" yaml:"session_ttl_minutes"`
}

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// SubmitRequestsPerMinute caps attestation submissions per client IP.
	SubmitRequestsPerMinute int `mapstructure:"SUBMIT_REQUESTS_PER_MINUTE" yaml:"submit_requests_per_minute"`
	WindowSeconds           int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server      ServerConfig      `mapstructure:"SERVER" yaml:"server"`
	Ethereum    EthereumConfig    `mapstructure:"ETHEREUM" yaml:"ethereum"`
	Wallet      WalletConfig      `mapstructure:"WALLET" yaml:"wallet"`
	Attestation AttestationConfig `mapstructure:"ATTESTATION" yaml:"attestation"`
	Encoder     EncoderConfig     `mapstructure:"ENCODER" yaml:"encoder"`
	Redis       RedisConfig       `mapstructure:"REDIS" yaml:"redis"`
	Forms       FormsConfig       `mapstructure:"FORMS" yaml:"forms"`
	RateLimit   RateLimitConfig   `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// logFields is the startup summary of the configuration. Anything that can
// carry a credential goes through the logger's masking helpers.
func (c *Config) logFields() []interface{} {
	return []interface{}{
		"environment", c.Server.Environment,
		"server_port", c.Server.Port,
		"rpc_url", logger.MaskRPCURL(c.Ethereum.RPCURL),
		"wallet_mode", c.Wallet.Mode,
		"keystore_path", logger.MaskSensitiveString(c.Wallet.KeystorePath, 4, 8),
		"external_signer_url", logger.MaskRPCURL(c.Wallet.ExternalSignerURL),
		"eas_contract", c.Attestation.EASContractAddress,
		"forms_store", c.Forms.Store,
		"redis_enabled", c.RedisEnabled(),
	}
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}

// SessionTTL returns the form session lifetime.
func (c *FormsConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ConfirmationTimeout returns the receipt wait bound, zero meaning unbounded.
func (c *AttestationConfig) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

// Window returns the rate limit window.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar, fallbackEnvVar...}; the first one set wins.
func bindEnvVars(v *viper.Viper, bindings [][]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper,
// applies defaults, unmarshals and validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("SERVER.TRUSTED_PROXIES", []string{})
	v.SetDefault("ETHEREUM.RPC_URL", "http://localhost:8545")
	v.SetDefault("ETHEREUM.CHAIN_ID", 0)
	v.SetDefault("WALLET.MODE", WalletModeNone)
	v.SetDefault("ATTESTATION.EAS_CONTRACT_ADDRESS", DefaultEASContractAddress)
	v.SetDefault("ATTESTATION.FEEDBACK_SCHEMA_UID", DefaultFeedbackSchemaUID)
	v.SetDefault("ATTESTATION.NOT_USEFUL_SCHEMA_UID", DefaultNotUsefulSchemaUID)
	v.SetDefault("ATTESTATION.GAS_LIMIT", DefaultGasLimit)
	v.SetDefault("ATTESTATION.CONFIRMATION_TIMEOUT_SECONDS", 0)
	v.SetDefault("ENCODER.PERMISSIVE_NUMBERS", false)
	v.SetDefault("REDIS.ADDRESS", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("FORMS.STORE", "memory")
	v.SetDefault("FORMS.SESSION_TTL_MINUTES", 30)
	v.SetDefault("RATE_LIMIT.SUBMIT_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][]string{
		// Server config
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT", "ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"SERVER.JWT_SECRET_KEY", "JWT_SECRET_KEY"},
		{"SERVER.TRUSTED_PROXIES", "TRUSTED_PROXIES"},
		// Ethereum
		{"ETHEREUM.RPC_URL", "ETHEREUM_RPC_URL"},
		{"ETHEREUM.CHAIN_ID", "ETHEREUM_CHAIN_ID"},
		// Wallet
		{"WALLET.MODE", "WALLET_MODE"},
		{"WALLET.PRIVATE_KEY", "WALLET_PRIVATE_KEY"},
		{"WALLET.KEYSTORE_PATH", "WALLET_KEYSTORE_PATH"},
		{"WALLET.KEYSTORE_PASSPHRASE", "WALLET_KEYSTORE_PASSPHRASE"},
		{"WALLET.EXTERNAL_SIGNER_URL", "WALLET_EXTERNAL_SIGNER_URL"},
		// Attestation
		{"ATTESTATION.EAS_CONTRACT_ADDRESS", "ATTESTATION_EAS_CONTRACT_ADDRESS"},
		{"ATTESTATION.FEEDBACK_SCHEMA_UID", "ATTESTATION_FEEDBACK_SCHEMA_UID"},
		{"ATTESTATION.NOT_USEFUL_SCHEMA_UID", "ATTESTATION_NOT_USEFUL_SCHEMA_UID"},
		{"ATTESTATION.GAS_LIMIT", "ATTESTATION_GAS_LIMIT"},
		{"ATTESTATION.CONFIRMATION_TIMEOUT_SECONDS", "ATTESTATION_CONFIRMATION_TIMEOUT_SECONDS"},
		// Encoder
		{"ENCODER.PERMISSIVE_NUMBERS", "ENCODER_PERMISSIVE_NUMBERS"},
		// Redis
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"REDIS.POOL_SIZE", "REDIS_POOL_SIZE"},
		// Forms
		{"FORMS.STORE", "FORMS_STORE"},
		{"FORMS.SESSION_TTL_MINUTES", "FORMS_SESSION_TTL_MINUTES"},
		// Rate limit
		{"RATE_LIMIT.SUBMIT_REQUESTS_PER_MINUTE", "RATE_LIMIT_SUBMIT_REQUESTS_PER_MINUTE"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	log.Infow("Configuration loaded", cfg.logFields()...)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration validated successfully")
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if cfg.Server.JwtSecretKey != "" && len(cfg.Server.JwtSecretKey) < minJWTLength {
		return fmt.Errorf("JWT secret key must be at least %d characters long", minJWTLength)
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	if _, err := url.ParseRequestURI(cfg.Ethereum.RPCURL); err != nil {
		return fmt.Errorf("invalid ethereum RPC URL: %w", err)
	}
	if cfg.Ethereum.ChainID < 0 {
		return fmt.Errorf("ethereum chain id must not be negative")
	}

	if err := validateWalletConfig(&cfg.Wallet); err != nil {
		return err
	}
	if cfg.Wallet.Mode == WalletModeNone {
		log.Warn("No wallet configured; every attestation submission will report the provider as unavailable.")
	}

	if err := validateAttestationConfig(&cfg.Attestation); err != nil {
		return err
	}

	switch cfg.Forms.Store {
	case "memory":
	case "redis":
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis form store requires REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("unknown form store %q (expected memory or redis)", cfg.Forms.Store)
	}
	if cfg.Forms.SessionTTLMinutes <= 0 {
		return fmt.Errorf("form session TTL must be positive")
	}

	if cfg.Redis.Password == "" && cfg.Redis.UseTLS {
		log.Warn("Redis password is not set, but TLS is enabled. Ensure this is correct for your Redis provider.")
	}

	if cfg.RateLimit.SubmitRequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit submit requests per minute must be positive")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}

	return nil
}

func validateWalletConfig(w *WalletConfig) error {
	switch w.Mode {
	case WalletModeNone:
	case WalletModeLocal:
		if w.PrivateKey == "" {
			return fmt.Errorf("wallet mode local requires WALLET_PRIVATE_KEY")
		}
	case WalletModeKeystore:
		if w.KeystorePath == "" {
			return fmt.Errorf("wallet mode keystore requires WALLET_KEYSTORE_PATH")
		}
	case WalletModeExternal:
		if w.ExternalSignerURL == "" {
			return fmt.Errorf("wallet mode external requires WALLET_EXTERNAL_SIGNER_URL")
		}
	default:
		return fmt.Errorf("unknown wallet mode %q", w.Mode)
	}
	return nil
}

func validateAttestationConfig(a *AttestationConfig) error {
	if !common.IsHexAddress(a.EASContractAddress) {
		return fmt.Errorf("invalid EAS contract address %q", a.EASContractAddress)
	}
	if !isHash(a.FeedbackSchemaUID) {
		return fmt.Errorf("invalid feedback schema UID %q", a.FeedbackSchemaUID)
	}
	if !isHash(a.NotUsefulSchemaUID) {
		return fmt.Errorf("invalid not-useful schema UID %q", a.NotUsefulSchemaUID)
	}
	if a.GasLimit == 0 {
		return fmt.Errorf("attestation gas limit must be positive")
	}
	if a.ConfirmationTimeoutSeconds < 0 {
		return fmt.Errorf("confirmation timeout must not be negative")
	}
	return nil
}

func isHash(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

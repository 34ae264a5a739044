package main

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	DSN string
}

// AuthConfig implements access.Config
type AuthConfig struct {
	SigningKey        string
	RefreshSigningKey string
	ContextKey        string
	TokenExpiration   int
	RefreshExpiration int
	TokenLookup       string
	AuthScheme        string
	Issuer            string
	Audience          []string
}

func (c *AuthConfig) GetSigningKey() string        { return c.SigningKey }
func (c *AuthConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }
func (c *AuthConfig) GetContextKey() string        { return c.ContextKey }
func (c *AuthConfig) GetTokenExpiration() int      { return c.TokenExpiration }
func (c *AuthConfig) GetRefreshExpiration() int    { return c.RefreshExpiration }
func (c *AuthConfig) GetTokenLookup() string       { return c.TokenLookup }
func (c *AuthConfig) GetAuthScheme() string        { return c.AuthScheme }
func (c *AuthConfig) GetIssuer() string            { return c.Issuer }
func (c *AuthConfig) GetAudience() []string        { return c.Audience }

type AppConfig struct {
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Auth        AuthConfig
}

func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CARECAL")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.SigningKey == "" || cfg.Auth.RefreshSigningKey == "" {
		return nil, fmt.Errorf("auth.signingkey and auth.refreshsigningkey are required")
	}

	if cfg.Auth.SigningKey == cfg.Auth.RefreshSigningKey {
		return nil, fmt.Errorf("auth.signingkey and auth.refreshsigningkey must differ")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8580)

	v.SetDefault("database.dsn", "file:carecal.db?cache=shared&_pragma=foreign_keys(1)")

	v.SetDefault("auth.contextkey", "user")
	v.SetDefault("auth.tokenexpiration", 24)    // hours
	v.SetDefault("auth.refreshexpiration", 168) // 7 days
	v.SetDefault("auth.tokenlookup", "header:Authorization")
	v.SetDefault("auth.authscheme", "Bearer")
	v.SetDefault("auth.issuer", "carecal")
}

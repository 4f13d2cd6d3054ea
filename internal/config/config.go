package config

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Provider exposes configuration to the rest of the application. Consumers
// depend on this interface so tests can substitute fixed values.
type Provider interface {
	GetAuthURL() string
	GetAuthAnonKey() string
	GetSessionSecret() string
	GetAppBaseURL() string
	GetBindAddr() string
	GetOAuthProviders() []string
}

// Config holds all configuration for the application, loaded from the
// environment. The auth backend owns everything persistent; the portal only
// needs to know where that backend lives and how to sign its own cookies.
type Config struct {
	AuthURL        string `validate:"required,url"`
	AuthAnonKey    string `validate:"required"`
	SessionSecret  string `validate:"required,min=32"`
	AppBaseURL     string `validate:"required,url"`
	BindAddr       string `validate:"required"`
	OAuthProviders []string
}

// New loads configuration from environment variables. It terminates the
// process when a required variable is missing, matching how the server treats
// configuration errors at startup.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

// Load reads and validates configuration without exiting, so tests and the
// CLI can surface the error themselves.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		AuthURL:        os.Getenv("AUTH_URL"),
		AuthAnonKey:    os.Getenv("AUTH_ANON_KEY"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		AppBaseURL:     getenvDefault("APP_BASE_URL", "http://localhost:8080"),
		BindAddr:       getenvDefault("BIND_ADDR", ":8080"),
		OAuthProviders: []string{"github"},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) GetAuthURL() string       { return c.AuthURL }
func (c *Config) GetAuthAnonKey() string   { return c.AuthAnonKey }
func (c *Config) GetSessionSecret() string { return c.SessionSecret }
func (c *Config) GetAppBaseURL() string    { return c.AppBaseURL }
func (c *Config) GetBindAddr() string      { return c.BindAddr }
func (c *Config) GetOAuthProviders() []string { return c.OAuthProviders }

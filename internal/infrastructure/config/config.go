package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Security SecurityConfig
}

// ServerConfig represents the proxy's own listen configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for Prometheus metrics HTTP server
}

// UpstreamConfig represents the protected document store
type UpstreamConfig struct {
	URL            string
	TimeoutSeconds int
}

// SecurityConfig represents the authorization layer's settings
type SecurityConfig struct {
	Strict         bool     // strict command vocabulary + drop aggregations
	PolicyIndex    string   // index holding the policy documents
	ForwardHeader  string   // e.g. "X-Forwarded-For", empty disables
	TrustedProxies []string // proxy IPs allowed to set the forward header
	EnforceForward bool     // reject requests missing the forward header
	IdentitySecret string   // HMAC key for the gateway identity assertion
	UserClaim      string   // JWT claim carrying the username
	ResolveHosts   bool     // reverse-resolve client IPs for hostname rules
	DNSCacheTTL    int      // seconds a reverse-DNS answer is reused
}

// ListenAddr returns the proxy's host:port listen address.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr returns the metrics endpoint's host:port listen address.
func (c *ServerConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Timeout returns the upstream request timeout as a duration.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Find project root
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot) // Project root

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 9200)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("UPSTREAM_URL", "http://localhost:19200")
	viper.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 10)

	viper.SetDefault("SECURITY_STRICT", false)
	viper.SetDefault("SECURITY_POLICY_INDEX", "securityconfiguration")
	viper.SetDefault("SECURITY_FORWARD_HEADER", "")
	viper.SetDefault("SECURITY_TRUSTED_PROXIES", []string{})
	viper.SetDefault("SECURITY_ENFORCE_FORWARD", false)
	viper.SetDefault("SECURITY_USER_CLAIM", "sub")
	viper.SetDefault("SECURITY_RESOLVE_HOSTS", true)
	viper.SetDefault("SECURITY_DNS_CACHE_TTL", 60)

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	upstreamURL := viper.GetString("UPSTREAM_URL")
	if upstreamURL == "" {
		return nil, fmt.Errorf("UPSTREAM_URL is required (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Upstream: UpstreamConfig{
			URL:            upstreamURL,
			TimeoutSeconds: viper.GetInt("UPSTREAM_TIMEOUT_SECONDS"),
		},
		Security: SecurityConfig{
			Strict:         viper.GetBool("SECURITY_STRICT"),
			PolicyIndex:    viper.GetString("SECURITY_POLICY_INDEX"),
			ForwardHeader:  viper.GetString("SECURITY_FORWARD_HEADER"),
			TrustedProxies: viper.GetStringSlice("SECURITY_TRUSTED_PROXIES"),
			EnforceForward: viper.GetBool("SECURITY_ENFORCE_FORWARD"),
			IdentitySecret: viper.GetString("SECURITY_IDENTITY_SECRET"),
			UserClaim:      viper.GetString("SECURITY_USER_CLAIM"),
			ResolveHosts:   viper.GetBool("SECURITY_RESOLVE_HOSTS"),
			DNSCacheTTL:    viper.GetInt("SECURITY_DNS_CACHE_TTL"),
		},
	}

	return config, nil
}

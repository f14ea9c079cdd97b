// Package config loads and validates the backplane's runtime configuration:
// a YAML file overlaid with environment variables, following hector's
// config.Loader conventions but sized to this service's narrower surface.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/kadirpekel/backplane/internal/sqlutil"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Port              int    `yaml:"port"`
	Transport         string `yaml:"transport"`
	LogLevel          string `yaml:"log_level"`
	LogFile           string `yaml:"log_file"`
	LogFormat         string `yaml:"log_format"`
	DocumentsBasePath string `yaml:"documents_base_path"`

	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"supabase_service_key"`

	RedisURL string `yaml:"redis_url"`

	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig selects the database/sql dialect and DSN shared by every
// SQL-backed store (session memory, pattern store, context board, handoffs,
// council, conductor log, audit, plan/task store, whiteboard).
type DatabaseConfig struct {
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connection_string"`
}

// Dialect maps the configured driver name to a sqlutil.Dialect, defaulting
// to SQLite when unset.
func (d DatabaseConfig) Dialect() sqlutil.Dialect {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return sqlutil.DialectPostgres
	case "mysql":
		return sqlutil.DialectMySQL
	default:
		return sqlutil.DialectSQLite
	}
}

// SetDefaults fills in zero-value fields with the service's defaults.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Transport == "" {
		c.Transport = "streamable-http"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
	if c.DocumentsBasePath == "" {
		c.DocumentsBasePath = "./documents"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "backplane.db"
	}
}

// Validate applies the fatal startup checks: a bad port, an unknown
// transport, a non-HTTPS non-local Supabase URL, and an anon-role Supabase
// service key all abort startup rather than degrading silently. The URL and
// the key are checked only when set; an empty Supabase URL or service key
// passes Validate.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.Transport != "" && c.Transport != "stdio" && c.Transport != "streamable-http" {
		return fmt.Errorf("invalid transport %q: must be \"stdio\" or \"streamable-http\"", c.Transport)
	}

	if c.SupabaseURL != "" {
		if err := ValidateSupabaseURL(c.SupabaseURL); err != nil {
			return err
		}
	}
	if c.SupabaseServiceKey != "" {
		valid, reason := ValidateSupabaseKey(c.SupabaseServiceKey)
		if !valid {
			return fmt.Errorf("invalid SUPABASE_SERVICE_KEY: %s", reason)
		}
	}

	return nil
}

// ValidateSupabaseURL requires a well-formed http(s) URL, and requires HTTPS
// unless the host is loopback, host.docker.internal, or an RFC1918 private
// address — matching the original service's local-dev exemption.
func ValidateSupabaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("supabase URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid Supabase URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("supabase URL must use HTTP or HTTPS, got scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid Supabase URL %q: missing host", raw)
	}

	if u.Scheme == "http" && !isLocalHost(u.Hostname()) {
		return fmt.Errorf("supabase URL must use HTTPS for non-local hosts, got %q", raw)
	}
	return nil
}

func isLocalHost(host string) bool {
	if host == "localhost" || host == "host.docker.internal" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	return ip.IsPrivate()
}

// ValidateSupabaseKey inspects a Supabase key's JWT role claim, mirroring
// the original service's rejection of anon keys at startup. Non-JWT keys
// (custom formats, test doubles) are allowed through unvalidated.
func ValidateSupabaseKey(key string) (bool, string) {
	if strings.TrimSpace(key) == "" {
		return false, "EMPTY_KEY"
	}

	claims, ok := decodeJWTClaims(key)
	if !ok {
		return true, "UNABLE_TO_VALIDATE"
	}

	role, _ := claims["role"].(string)
	switch role {
	case "service_role":
		return true, "VALID_SERVICE_KEY"
	case "anon":
		return false, "ANON_KEY_DETECTED"
	default:
		return false, "UNKNOWN_KEY_TYPE: " + role
	}
}

// ValidateOpenAIAPIKey requires the key to be present and use OpenAI's
// "sk-" prefix convention.
func ValidateOpenAIAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("OpenAI API key cannot be empty")
	}
	if !strings.HasPrefix(key, "sk-") {
		return fmt.Errorf("OpenAI API key must start with 'sk-'")
	}
	return nil
}

func decodeJWTClaims(token string) (map[string]any, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, false
	}
	claims, err := parseJSONObject(payload)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// PortFromEnv parses PORT or falls back to ARCHON_MCP_PORT, returning 0 if
// neither is set or parseable (SetDefaults then applies the service default).
func PortFromEnv(port, archonMCPPort string) int {
	for _, raw := range []string{port, archonMCPPort} {
		if raw == "" {
			continue
		}
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

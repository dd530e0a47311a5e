// Package config loads gateway configuration from an optional YAML file,
// overlays environment variables and fills in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Sessions SessionsConfig `yaml:"sessions"`
	SSE      SSEConfig      `yaml:"sse"`
	Headers  HeaderConfig   `yaml:"headers"`
	Jira     JiraConfig     `yaml:"jira"`
	Logging  LoggingConfig  `yaml:"logging"`
	Stdio    StdioConfig    `yaml:"stdio"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

type SessionsConfig struct {
	Timeout       Duration `yaml:"timeout"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type SSEConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// HeaderConfig names the identity headers read by the HTTP transport.
type HeaderConfig struct {
	UserID   string `yaml:"user_id"`
	JiraURL  string `yaml:"jira_url"`
	APIToken string `yaml:"api_token"`
}

type JiraConfig struct {
	Timeout     Duration `yaml:"timeout"`
	ReadRetries int      `yaml:"read_retries"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StdioConfig carries the single tenant served by the stdio transport.
type StdioConfig struct {
	UserID   string `yaml:"user_id"`
	JiraURL  string `yaml:"jira_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
}

// Duration is a time.Duration that unmarshals from strings like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":3000"},
		Auth:     AuthConfig{TokenTTL: Duration(24 * time.Hour)},
		Sessions: SessionsConfig{Timeout: Duration(time.Hour), SweepInterval: Duration(5 * time.Minute)},
		SSE:      SSEConfig{HeartbeatInterval: Duration(30 * time.Second)},
		Headers: HeaderConfig{
			UserID:   "x-user-id",
			JiraURL:  "x-jira-url",
			APIToken: "x-jira-api-token",
		},
		Jira:    JiraConfig{Timeout: Duration(30 * time.Second), ReadRetries: 0},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Stdio:   StdioConfig{UserID: "stdio"},
	}
}

// Load reads path (if non-empty), expands ${VAR} references, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	cfg.Stdio.JiraURL = strings.TrimRight(strings.TrimSpace(cfg.Stdio.JiraURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value (empty if unset).
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "JIRA_GATEWAY_ADDR")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Logging.Level, "JIRA_GATEWAY_LOG_LEVEL")
	setString(&cfg.Logging.Format, "JIRA_GATEWAY_LOG_FORMAT")
	setString(&cfg.Stdio.UserID, "JIRA_USER_ID")
	setString(&cfg.Stdio.JiraURL, "JIRA_URL")
	setString(&cfg.Stdio.Email, "JIRA_EMAIL")
	setString(&cfg.Stdio.APIToken, "JIRA_API_TOKEN")

	durations := []struct {
		dst *Duration
		key string
	}{
		{&cfg.Auth.TokenTTL, "JIRA_GATEWAY_TOKEN_TTL"},
		{&cfg.Sessions.Timeout, "JIRA_GATEWAY_SESSION_TIMEOUT"},
		{&cfg.Sessions.SweepInterval, "JIRA_GATEWAY_SWEEP_INTERVAL"},
		{&cfg.SSE.HeartbeatInterval, "JIRA_GATEWAY_HEARTBEAT_INTERVAL"},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = Duration(parsed)
	}

	if v := strings.TrimSpace(os.Getenv("JIRA_HTTP_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("JIRA_HTTP_TIMEOUT_SECONDS must be a positive integer")
		}
		cfg.Jira.Timeout = Duration(time.Duration(n) * time.Second)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks invariants that hold for every transport.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Sessions.Timeout <= 0 {
		errs = append(errs, errors.New("sessions.timeout must be positive"))
	}
	if c.Sessions.SweepInterval <= 0 {
		errs = append(errs, errors.New("sessions.sweep_interval must be positive"))
	}
	if c.SSE.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("sse.heartbeat_interval must be positive"))
	}
	if c.Jira.Timeout <= 0 {
		errs = append(errs, errors.New("jira.timeout must be positive"))
	}
	if c.Jira.ReadRetries < 0 || c.Jira.ReadRetries > 1 {
		errs = append(errs, errors.New("jira.read_retries must be 0 or 1"))
	}
	if c.Headers.UserID == "" || c.Headers.JiraURL == "" || c.Headers.APIToken == "" {
		errs = append(errs, errors.New("headers.user_id, headers.jira_url and headers.api_token must be set"))
	}
	return errors.Join(errs...)
}

// ValidateHTTP checks what the HTTP transport additionally needs.
func (c *Config) ValidateHTTP() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret (JWT_SECRET) must be at least 16 characters")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	return nil
}

// ValidateStdio checks what the stdio transport additionally needs.
func (c *Config) ValidateStdio() error {
	var missing []string
	if c.Stdio.JiraURL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.Stdio.Email == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.Stdio.APIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing stdio credentials: set %s", strings.Join(missing, ", "))
	}
	return nil
}

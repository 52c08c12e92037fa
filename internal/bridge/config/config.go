// Package config loads the bridge configuration. Values come from built-in
// defaults, an optional TOML file, a .env file, environment variables and
// command-line overrides, each layer overriding the one before it.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// Environment variables read by LoadConfig.
const (
	EnvHost        = "N8N_BRIDGE_HOST"
	EnvPort        = "N8N_BRIDGE_PORT"
	EnvBasePath    = "N8N_BRIDGE_BASE_PATH"
	EnvLogLevel    = "N8N_BRIDGE_LOG_LEVEL"
	EnvBackendURL  = "N8N_BASE_URL"
	EnvAPIKey      = "N8N_API_KEY"
	EnvMessagesURL = "N8N_MESSAGES_URL"
)

// ServerConfig holds the listener configuration
type ServerConfig struct {
	Host           string   `toml:"host" validate:"required"`         // interface to bind
	Port           string   `toml:"port" validate:"required,tcpport"` // TCP port
	BasePath       string   `toml:"base_path"`                        // prefix for the stream and message routes
	HandleCORS     bool     `toml:"handle_cors"`                      // whether to answer CORS requests
	AllowedOrigins []string `toml:"allowed_origins"`                  // CORS origins; empty allows any
	RequestTimeout string   `toml:"request_timeout"`                  // bound for non-streaming routes
}

// BackendConfig holds the n8n API configuration
type BackendConfig struct {
	URL           string `toml:"url" validate:"required,url"`          // base URL of the n8n REST API
	APIKey        string `toml:"api_key"`                              // sent as X-N8N-API-KEY when set
	MessagesURL   string `toml:"messages_url" validate:"required,url"` // target of the sendMessage tool
	Timeout       string `toml:"timeout"`                              // per-call timeout
	RetryAttempts uint   `toml:"retry_attempts" validate:"min=1,max=10"`
}

// SessionConfig holds the per-session limits
type SessionConfig struct {
	QueueSize int    `toml:"queue_size" validate:"min=1,max=65536"`
	KeepAlive string `toml:"keep_alive"` // interval between stream keep-alive comments
}

// ConfigParam holds all configuration parameters for the bridge
type ConfigParam struct {
	FormatVersion string        `toml:"format_version"`
	LogLevel      string        `toml:"log_level" validate:"oneof=trace debug info warn error"`
	Server        ServerConfig  `toml:"server"`
	Backend       BackendConfig `toml:"backend"`
	Session       SessionConfig `toml:"session"`
}

// Default returns the configuration used when nothing is set.
func Default() *ConfigParam {
	return &ConfigParam{
		FormatVersion: ConfigFormatVersion,
		LogLevel:      "info",
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           "3002",
			BasePath:       "/",
			RequestTimeout: "30s",
		},
		Backend: BackendConfig{
			URL:           "http://localhost:5678/api/v1",
			MessagesURL:   "http://127.0.0.1:3002/messages",
			Timeout:       "30s",
			RetryAttempts: 1,
		},
		Session: SessionConfig{
			QueueSize: 64,
			KeepAlive: "15s",
		},
	}
}

// LoadConfig builds the configuration from the defaults, the TOML file at
// filename when one is given, .env and the environment.
func LoadConfig(filename string) (*ConfigParam, error) {
	cfg := Default()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	_ = godotenv.Load() // no error if .env doesn't exist
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func (c *ConfigParam) applyEnv() {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvHost, &c.Server.Host)
	set(EnvPort, &c.Server.Port)
	set(EnvBasePath, &c.Server.BasePath)
	set(EnvLogLevel, &c.LogLevel)
	set(EnvBackendURL, &c.Backend.URL)
	set(EnvAPIKey, &c.Backend.APIKey)
	set(EnvMessagesURL, &c.Backend.MessagesURL)
}

// Overrides are values given on the command line. Empty fields are ignored.
type Overrides struct {
	Host       string
	Port       string
	BackendURL string
	LogLevel   string
}

// ApplyOverrides applies o and validates the result.
func (c *ConfigParam) ApplyOverrides(o Overrides) error {
	if o.Host != "" {
		c.Server.Host = o.Host
	}
	if o.Port != "" {
		c.Server.Port = o.Port
	}
	if o.BackendURL != "" {
		c.Backend.URL = o.BackendURL
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	return c.Validate()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("tcpport", portValidator); err != nil {
		panic(fmt.Sprintf("registering tcpport validation: %v", err))
	}
	return v
}

func portValidator(fl validator.FieldLevel) bool {
	port, err := strconv.Atoi(fl.Field().String())
	return err == nil && port > 0 && port < 65536
}

// Validate checks every field and the duration strings.
func (c *ConfigParam) Validate() error {
	if c.FormatVersion != "" && c.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	for name, value := range map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"backend.timeout":        c.Backend.Timeout,
		"session.keep_alive":     c.Session.KeepAlive,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	return nil
}

// ParseDuration parses a Go duration string, additionally accepting a "d"
// suffix for days.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if strings.HasSuffix(input, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(input, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}
	return d, nil
}

func durationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// ListenAddr is the host:port the server binds.
func (c *ConfigParam) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// GetServerURL returns the n8n API base URL.
func (c *ConfigParam) GetServerURL() string {
	return c.Backend.URL
}

func (c *ConfigParam) GetAPIKey() string {
	return c.Backend.APIKey
}

// GetTimeout returns the per-call backend timeout.
func (c *ConfigParam) GetTimeout() time.Duration {
	return durationOr(c.Backend.Timeout, 30*time.Second)
}

func (c *ConfigParam) GetRequestTimeout() time.Duration {
	return durationOr(c.Server.RequestTimeout, 30*time.Second)
}

// GetKeepAlive returns the keep-alive interval; zero disables keep-alives.
func (c *ConfigParam) GetKeepAlive() time.Duration {
	return durationOr(c.Session.KeepAlive, 15*time.Second)
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rbaliyan/stegocrypt"
	"github.com/rbaliyan/stegocrypt/covertext"
)

// Config holds the server settings. Zero values are replaced by defaults
// in LoadConfig and DefaultConfig.
type Config struct {
	Listen           string   `yaml:"listen"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	IdentifierPolicy string   `yaml:"identifier_policy"`
	MaxBodyBytes     int64    `yaml:"max_body_bytes"`
	// MaxPlaintextBytes bounds messages accepted for encryption or hiding.
	// Stego text is roughly a hundred times larger than its input.
	MaxPlaintextBytes int64         `yaml:"max_plaintext_bytes"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// Defaults.
const (
	DefaultListen         = ":8080"
	DefaultMaxBodyBytes   = 2 << 20
	DefaultMaxPlaintext   = 64 << 10
	DefaultRequestTimeout = 30 * time.Second
)

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:            DefaultListen,
		AllowedOrigins:    []string{"*"},
		IdentifierPolicy:  string(stegocrypt.IdentifierPolicyWarn),
		MaxBodyBytes:      DefaultMaxBodyBytes,
		MaxPlaintextBytes: DefaultMaxPlaintext,
		LogLevel:          "info",
		LogFormat:         "text",
		RequestTimeout:    DefaultRequestTimeout,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Unknown keys are
// rejected. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("server: open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		result = multierror.Append(result, fmt.Errorf("listen %q: %w", c.Listen, err))
	}
	if len(c.AllowedOrigins) == 0 {
		result = multierror.Append(result, errors.New("allowed_origins must not be empty"))
	}
	if _, err := stegocrypt.ParseIdentifierPolicy(c.IdentifierPolicy); err != nil {
		result = multierror.Append(result, err)
	}
	if c.MaxBodyBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.MaxPlaintextBytes <= 0 || c.MaxPlaintextBytes > covertext.MaxPayload/2 {
		result = multierror.Append(result, fmt.Errorf("max_plaintext_bytes must be 1-%d, got %d",
			covertext.MaxPayload/2, c.MaxPlaintextBytes))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		result = multierror.Append(result, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}

	return result.ErrorOrNil()
}

// NewLogger builds a logger from the log settings.
func (c Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}

// Package config resolves SDK settings from a .env file, an optional TOML
// or YAML file and the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultURL        = "https://nyx-community-1.dev.iotics.space"
	DefaultTimeout    = 30 * time.Second
	DefaultChunkSize  = 1000
	DefaultQdrantPort = 6334
)

// Keys read by Load. Config files use the same names, in any case.
var keys = []string{
	"NYX_URL", "NYX_USERNAME", "NYX_EMAIL", "NYX_PASSWORD", "NYX_TOKEN", "NYX_ORG",
	"NYX_TIMEOUT", "NYX_RATE_LIMIT", "NYX_LOG_LEVEL", "HOST_VERIFY_SSL",
	"OPENAI_API_KEY", "COHERE_API_KEY", "NYX_LLM_PROVIDER", "NYX_LLM_MODEL",
	"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY", "QDRANT_TLS",
	"GITHUB_TOKEN",
	"NYX_S3_ENDPOINT", "NYX_S3_ACCESS_KEY", "NYX_S3_SECRET_KEY", "NYX_S3_SECURE", "NYX_S3_REGION",
	"NYX_CHUNK_SIZE", "NYX_SQLITE_FILE",
}

// Config is the resolved configuration.
type Config struct {
	URL      string
	Username string
	Email    string
	Password string
	// Token skips login. Org should be set with it.
	Token string
	Org   string

	Timeout   time.Duration
	RateLimit float64
	LogLevel  slog.Level
	VerifySSL bool

	OpenAIKey   string
	CohereKey   string
	LLMProvider string
	LLMModel    string

	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool

	GitHubToken string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool
	S3Region    string

	ChunkSize  int
	SQLiteFile string
}

// Options select the files Load reads.
type Options struct {
	// EnvFile defaults to ".env". A missing file is not an error.
	EnvFile string
	// File is an optional .toml, .yaml or .yml file.
	File string
}

// Load resolves the configuration. Later sources win: defaults, the .env
// file, the config file, then the process environment.
func Load(opts Options) (*Config, error) {
	values := make(map[string]string)

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		merge(values, dotenv)
	case errors.Is(err, os.ErrNotExist) && opts.EnvFile == "":
	default:
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	if opts.File != "" {
		fileValues, err := readFile(opts.File)
		if err != nil {
			return nil, err
		}
		merge(values, fileValues)
	}

	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			values[k] = v
		}
	}

	return fromValues(values)
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		dst[strings.ToUpper(k)] = v
	}
}

// readFile decodes a flat key/value file, choosing the format by extension.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%w: %s is not a scalar", ErrInvalidValue, k)
		case nil:
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return values, nil
}

func fromValues(v map[string]string) (*Config, error) {
	cfg := &Config{
		URL:         get(v, "NYX_URL", DefaultURL),
		Username:    v["NYX_USERNAME"],
		Email:       v["NYX_EMAIL"],
		Password:    v["NYX_PASSWORD"],
		Token:       v["NYX_TOKEN"],
		Org:         v["NYX_ORG"],
		OpenAIKey:   v["OPENAI_API_KEY"],
		CohereKey:   v["COHERE_API_KEY"],
		LLMProvider: get(v, "NYX_LLM_PROVIDER", "openai"),
		LLMModel:    v["NYX_LLM_MODEL"],
		QdrantHost:  v["QDRANT_HOST"],
		GitHubToken: v["GITHUB_TOKEN"],
		S3Endpoint:  v["NYX_S3_ENDPOINT"],
		S3AccessKey: v["NYX_S3_ACCESS_KEY"],
		S3SecretKey: v["NYX_S3_SECRET_KEY"],
		S3Region:    v["NYX_S3_REGION"],
		SQLiteFile:  v["NYX_SQLITE_FILE"],
	}
	cfg.QdrantAPIKey = v["QDRANT_API_KEY"]

	timeout, err := intValue(v, "NYX_TIMEOUT", int(DefaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeout) * time.Second

	if s := v["NYX_RATE_LIMIT"]; s != "" {
		if cfg.RateLimit, err = strconv.ParseFloat(s, 64); err != nil || cfg.RateLimit < 0 {
			return nil, fmt.Errorf("%w: NYX_RATE_LIMIT=%q", ErrInvalidValue, s)
		}
	}
	if cfg.LogLevel, err = ParseLevel(v["NYX_LOG_LEVEL"]); err != nil {
		return nil, err
	}
	if cfg.VerifySSL, err = boolValue(v, "HOST_VERIFY_SSL", true); err != nil {
		return nil, err
	}
	if cfg.S3Secure, err = boolValue(v, "NYX_S3_SECURE", true); err != nil {
		return nil, err
	}
	if cfg.QdrantTLS, err = boolValue(v, "QDRANT_TLS", false); err != nil {
		return nil, err
	}
	if cfg.QdrantPort, err = intValue(v, "QDRANT_PORT", DefaultQdrantPort); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = intValue(v, "NYX_CHUNK_SIZE", DefaultChunkSize); err != nil {
		return nil, err
	}
	return cfg, nil
}

func get(v map[string]string, key, def string) string {
	if s := v[key]; s != "" {
		return s
	}
	return def
}

func intValue(v map[string]string, key string, def int) (int, error) {
	s := v[key]
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, s)
	}
	return i, nil
}

func boolValue(v map[string]string, key string, def bool) (bool, error) {
	s := v[key]
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, s)
	}
	return b, nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: NYX_LOG_LEVEL=%q", ErrInvalidValue, s)
	}
	return level, nil
}

// Validate checks that the portal can be reached with these credentials:
// either a token, or username, email and password together.
func (c *Config) Validate() error {
	if c.Token != "" {
		return nil
	}
	var missing []string
	if c.Username == "" {
		missing = append(missing, "NYX_USERNAME")
	}
	if c.Email == "" {
		missing = append(missing, "NYX_EMAIL")
	}
	if c.Password == "" {
		missing = append(missing, "NYX_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// LLMKey is the API key for the configured provider.
func (c *Config) LLMKey() string {
	if strings.EqualFold(c.LLMProvider, "cohere") {
		return c.CohereKey
	}
	return c.OpenAIKey
}

// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPostgREST = "postgrest"
	BackendSQL       = "sql"
)

// Config is the full service configuration.
type Config struct {
	Backend string        `yaml:"backend"`
	Service ServiceConfig `yaml:"service"`
	DB      DBConfig      `yaml:"db"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Uploads UploadConfig  `yaml:"uploads"`
}

// ServiceConfig holds the external data service endpoint and credentials.
type ServiceConfig struct {
	URL            string        `yaml:"url"`
	ServiceRoleKey string        `yaml:"service_role_key"`
	AnonKey        string        `yaml:"anon_key"`
	JWTSecret      string        `yaml:"jwt_secret"`
	JWTAudience    string        `yaml:"jwt_audience"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DBConfig selects the SQL database used by the sql backend.
type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	GRPCAddr     string   `yaml:"grpc_addr"`
	CORSOrigins  []string `yaml:"cors_origins"`
	RateBurst    int      `yaml:"rate_burst"`
	RatePerSec   int      `yaml:"rate_per_sec"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	// TrustedProxies are addresses or CIDR prefixes whose X-Forwarded-For is honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// UploadConfig: Dir and PublicURL only apply to the sql backend, which stores
// uploads itself.
type UploadConfig struct {
	Buckets   []string      `yaml:"buckets"`
	TTL       time.Duration `yaml:"ttl"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Dir       string        `yaml:"dir"`
	PublicURL string        `yaml:"public_url"`
}

// Default returns a configuration with every optional value populated.
func Default() *Config {
	return &Config{
		Backend: BackendPostgREST,
		Service: ServiceConfig{
			JWTAudience: "authenticated",
			Timeout:     10 * time.Second,
		},
		DB: DBConfig{Driver: "sqlite3"},
		HTTP: HTTPConfig{
			Addr:         ":8000",
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateBurst:    40,
			RatePerSec:   20,
			MaxBodyBytes: 1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Uploads: UploadConfig{
			Buckets:   []string{"certificates", "sds"},
			TTL:       15 * time.Minute,
			MaxBytes:  5 << 20,
			Dir:       "data/uploads",
			PublicURL: "http://localhost:8000",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a missing
// .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Service.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		cfg.Service.ServiceRoleKey = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		cfg.Service.AnonKey = v
	}
	if v := os.Getenv("SUPABASE_JWT_SECRET"); v != "" {
		cfg.Service.JWTSecret = v
	}
	if v := os.Getenv("WASTECHEM_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("WASTECHEM_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("WASTECHEM_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("WASTECHEM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("WASTECHEM_GRPC_ADDR"); v != "" {
		cfg.HTTP.GRPCAddr = v
	}
	if v := os.Getenv("WASTECHEM_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("WASTECHEM_TRUSTED_PROXIES"); v != "" {
		cfg.HTTP.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("WASTECHEM_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WASTECHEM_RATE_BURST: %w", err))
		} else {
			cfg.HTTP.RateBurst = n
		}
	}
	if v := os.Getenv("WASTECHEM_RATE_PER_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WASTECHEM_RATE_PER_SEC: %w", err))
		} else {
			cfg.HTTP.RatePerSec = n
		}
	}
	if v := os.Getenv("WASTECHEM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WASTECHEM_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WASTECHEM_UPLOAD_BUCKETS"); v != "" {
		cfg.Uploads.Buckets = splitList(v)
	}
	if v := os.Getenv("WASTECHEM_UPLOAD_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}
	if v := os.Getenv("WASTECHEM_PUBLIC_URL"); v != "" {
		cfg.Uploads.PublicURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("WASTECHEM_UPLOAD_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WASTECHEM_UPLOAD_TTL: %w", err))
		} else {
			cfg.Uploads.TTL = d
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.ServiceRoleKey == "" {
		errs = append(errs, errors.New("SUPABASE_SERVICE_ROLE_KEY is required"))
	}
	if c.Service.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}

	switch c.Backend {
	case BackendPostgREST:
		if c.Service.URL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required"))
		}
	case BackendSQL:
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("WASTECHEM_DB_DSN is required for the sql backend"))
		}
		if c.DB.Driver != "pgx" && c.DB.Driver != "sqlite3" {
			errs = append(errs, fmt.Errorf("unsupported db driver %q", c.DB.Driver))
		}
		if c.Service.JWTSecret == "" {
			errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required for the sql backend"))
		}
		if strings.TrimSpace(c.Uploads.Dir) == "" {
			errs = append(errs, errors.New("WASTECHEM_UPLOAD_DIR is required for the sql backend"))
		}
		if u, err := url.Parse(c.Uploads.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("WASTECHEM_PUBLIC_URL %q must be an absolute URL", c.Uploads.PublicURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if c.HTTP.RateBurst <= 0 || c.HTTP.RatePerSec <= 0 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	for _, p := range c.HTTP.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an IP address or CIDR prefix", p))
		}
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload max bytes must be positive"))
	}
	if len(c.Uploads.Buckets) == 0 {
		errs = append(errs, errors.New("at least one upload bucket is required"))
	}
	if c.Uploads.TTL <= 0 {
		errs = append(errs, errors.New("upload ttl must be positive"))
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

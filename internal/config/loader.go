package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// KeyringService is the OS keyring service under which database DSNs are
// stored, one entry per driver name.
const KeyringService = "deskbook"

// DefaultSQLiteDSN is the database file used when the sqlite driver is
// selected without a DSN.
const DefaultSQLiteDSN = "deskbook.db"

// Config captures the settings of the booking service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Booking  BookingConfig  `yaml:"booking"`
	Log      LogConfig      `yaml:"log"`
}

// HTTPConfig controls the dispatch listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the host:port the server listens on.
func (c HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// DatabaseConfig selects the store backend. For sqlite, DSN is a file path or a
// full "file:" connection string.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SessionConfig controls bearer token sessions.
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// BookingConfig bounds booking requests and sizes the availability cache.
type BookingConfig struct {
	MaxRangeDays int           `yaml:"max_range_days"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// LogConfig selects the log handler and sink. An empty File logs to stdout.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when nothing overrides it. The DSN
// is left empty; Load fills it once the driver is known.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            8080,
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Booking: BookingConfig{
			MaxRangeDays: 366,
			CacheSize:    1024,
			CacheTTL:     30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Options tells Load where to look besides the process environment.
type Options struct {
	// File is an optional YAML file. When empty, DESKBOOK_CONFIG is consulted.
	File string
	// EnvFile is an optional dotenv file; a missing file is ignored.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration, lowest precedence first: defaults, the YAML
// file, the dotenv file, then DESKBOOK_* environment variables. When a
// postgres or mysql DSN is still empty it is read from the OS keyring. Every
// missing or invalid value is reported in one error.
func Load(opts Options) (Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	file := opts.File
	if file == "" {
		file, _ = lookup("DESKBOOK_CONFIG")
	}
	if file = strings.TrimSpace(file); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
	}

	env := envReader{lookup: lookup, dotenv: dotenv}
	env.string("DESKBOOK_HTTP_ADDR", &cfg.HTTP.Addr)
	env.positiveInt("DESKBOOK_HTTP_PORT", &cfg.HTTP.Port)
	env.duration("DESKBOOK_REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout)
	env.duration("DESKBOOK_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	env.string("DESKBOOK_DB_DRIVER", &cfg.Database.Driver)
	env.string("DESKBOOK_DB_DSN", &cfg.Database.DSN)
	env.positiveInt("DESKBOOK_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	env.positiveInt("DESKBOOK_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	env.duration("DESKBOOK_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	env.string("DESKBOOK_SESSION_SECRET", &cfg.Session.Secret)
	env.duration("DESKBOOK_SESSION_TTL", &cfg.Session.TTL)
	env.positiveInt("DESKBOOK_MAX_RANGE_DAYS", &cfg.Booking.MaxRangeDays)
	env.positiveInt("DESKBOOK_CACHE_SIZE", &cfg.Booking.CacheSize)
	env.duration("DESKBOOK_CACHE_TTL", &cfg.Booking.CacheTTL)
	env.string("DESKBOOK_LOG_LEVEL", &cfg.Log.Level)
	env.string("DESKBOOK_LOG_FORMAT", &cfg.Log.Format)
	env.string("DESKBOOK_LOG_FILE", &cfg.Log.File)
	env.positiveInt("DESKBOOK_LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB)
	env.positiveInt("DESKBOOK_LOG_MAX_BACKUPS", &cfg.Log.MaxBackups)
	env.positiveInt("DESKBOOK_LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays)

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	var missing []string
	invalid := env.invalid

	switch cfg.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			cfg.Database.DSN = DefaultSQLiteDSN
		}
	case "memory":
	case "postgres", "mysql":
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			dsn, err := keyring.Get(KeyringService, cfg.Database.Driver)
			switch {
			case err == nil:
				cfg.Database.DSN = dsn
			case errors.Is(err, keyring.ErrNotFound):
				missing = append(missing, "DESKBOOK_DB_DSN")
			default:
				return Config{}, fmt.Errorf("read %s DSN from keyring: %w", cfg.Database.Driver, err)
			}
		}
	default:
		invalid = append(invalid, "DESKBOOK_DB_DRIVER")
	}
	if strings.TrimSpace(cfg.Session.Secret) == "" {
		missing = append(missing, "DESKBOOK_SESSION_SECRET")
	}
	if cfg.Session.TTL <= 0 {
		invalid = append(invalid, "DESKBOOK_SESSION_TTL")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		invalid = append(invalid, "DESKBOOK_HTTP_PORT")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "DESKBOOK_LOG_LEVEL")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
	default:
		invalid = append(invalid, "DESKBOOK_LOG_FORMAT")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required settings are missing: %s", strings.Join(dedupe(missing), ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("settings have invalid values: %s", strings.Join(dedupe(invalid), ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StoreDSN saves a database DSN in the OS keyring for driver.
func StoreDSN(driver, dsn string) error {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != "postgres" && driver != "mysql" {
		return fmt.Errorf("keyring storage is only supported for postgres and mysql, not %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(KeyringService, driver, dsn); err != nil {
		return fmt.Errorf("store %s DSN in keyring: %w", driver, err)
	}
	return nil
}

// envReader reads process variables first and dotenv values second, collecting
// the names of unparsable values.
type envReader struct {
	lookup  func(string) (string, bool)
	dotenv  map[string]string
	invalid []string
}

func (r *envReader) value(key string) (string, bool) {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if v, ok := r.dotenv[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func (r *envReader) string(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) positiveInt(key string, dst *int) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.invalid = append(r.invalid, key)
		return
	}
	*dst = n
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.invalid = append(r.invalid, key)
		return
	}
	*dst = d
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(Options{LookupEnv: envMap(map[string]string{"DESKBOOK_SESSION_SECRET": "super-secret"})})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 8080 || cfg.HTTP.Address() != ":8080" {
		t.Fatalf("expected default port 8080, got %d (%s)", cfg.HTTP.Port, cfg.HTTP.Address())
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != DefaultSQLiteDSN {
		t.Fatalf("unexpected default database %#v", cfg.Database)
	}
	if cfg.Session.Secret != "super-secret" || cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("unexpected session config %#v", cfg.Session)
	}
	if cfg.Booking.MaxRangeDays != 366 {
		t.Fatalf("expected max range 366, got %d", cfg.Booking.MaxRangeDays)
	}
	if cfg.Log.Format != "json" || cfg.Log.File != "" {
		t.Fatalf("unexpected log config %#v", cfg.Log)
	}
}

func TestLoad_Layering(t *testing.T) {
	t.Parallel()

	yamlFile := writeFile(t, "deskbook.yaml", `
http:
  port: 9000
  request_timeout: 5s
database:
  driver: sqlite
  dsn: /var/lib/deskbook/yaml.db
session:
  secret: from-yaml
  ttl: 2h
booking:
  cache_size: 10
log:
  format: text
`)
	envFile := writeFile(t, ".env", "DESKBOOK_HTTP_PORT=9100\nDESKBOOK_LOG_FORMAT=console\n")

	cfg, err := Load(Options{
		File:    yamlFile,
		EnvFile: envFile,
		LookupEnv: envMap(map[string]string{
			"DESKBOOK_LOG_FORMAT": "json",
			"DESKBOOK_CACHE_TTL":  "1m",
		}),
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.HTTP.Port != 9100 {
		t.Fatalf("expected dotenv to override yaml port, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("expected process env to override dotenv, got %q", cfg.Log.Format)
	}
	if cfg.HTTP.RequestTimeout != 5*time.Second || cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("expected yaml durations, got %s and %s", cfg.HTTP.RequestTimeout, cfg.Session.TTL)
	}
	if cfg.Database.DSN != "/var/lib/deskbook/yaml.db" || cfg.Session.Secret != "from-yaml" {
		t.Fatalf("expected yaml values to survive, got %#v", cfg)
	}
	if cfg.Booking.CacheSize != 10 || cfg.Booking.CacheTTL != time.Minute {
		t.Fatalf("unexpected booking config %#v", cfg.Booking)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected defaults under the yaml file, got %s", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoad_ConfigPathFromEnvironment(t *testing.T) {
	t.Parallel()

	yamlFile := writeFile(t, "deskbook.yaml", "session:\n  secret: from-file\n")
	cfg, err := Load(Options{
		EnvFile:   filepath.Join(t.TempDir(), "missing.env"),
		LookupEnv: envMap(map[string]string{"DESKBOOK_CONFIG": yamlFile}),
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.Secret != "from-file" {
		t.Fatalf("expected secret from DESKBOOK_CONFIG file, got %q", cfg.Session.Secret)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		env      map[string]string
		contains []string
	}{
		{
			name:     "missing secret",
			env:      map[string]string{},
			contains: []string{"required settings are missing: DESKBOOK_SESSION_SECRET"},
		},
		{
			name: "invalid values are aggregated",
			env: map[string]string{
				"DESKBOOK_SESSION_SECRET": "s",
				"DESKBOOK_HTTP_PORT":      "eighty",
				"DESKBOOK_SESSION_TTL":    "-1h",
				"DESKBOOK_LOG_LEVEL":      "loud",
			},
			contains: []string{"DESKBOOK_HTTP_PORT", "DESKBOOK_SESSION_TTL", "DESKBOOK_LOG_LEVEL"},
		},
		{
			name: "missing and invalid together",
			env: map[string]string{
				"DESKBOOK_DB_DRIVER":  "oracle",
				"DESKBOOK_LOG_FORMAT": "xml",
			},
			contains: []string{"DESKBOOK_SESSION_SECRET", "DESKBOOK_DB_DRIVER", "DESKBOOK_LOG_FORMAT"},
		},
		{
			name:     "port out of range",
			env:      map[string]string{"DESKBOOK_SESSION_SECRET": "s", "DESKBOOK_HTTP_PORT": "70000"},
			contains: []string{"settings have invalid values: DESKBOOK_HTTP_PORT"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(Options{LookupEnv: envMap(tc.env)})
			if err == nil {
				t.Fatal("expected error")
			}
			for _, fragment := range tc.contains {
				if !strings.Contains(err.Error(), fragment) {
					t.Fatalf("expected error to mention %q, got %q", fragment, err.Error())
				}
			}
		})
	}
}

func TestLoad_BadFiles(t *testing.T) {
	t.Parallel()

	env := envMap(map[string]string{"DESKBOOK_SESSION_SECRET": "s"})
	if _, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml"), LookupEnv: env}); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
	broken := writeFile(t, "broken.yaml", "http: [unterminated")
	if _, err := Load(Options{File: broken, LookupEnv: env}); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

// Keyring tests share the global mock provider and stay sequential.

func TestLoad_KeyringDSN(t *testing.T) {
	keyring.MockInit()

	env := envMap(map[string]string{
		"DESKBOOK_SESSION_SECRET": "s",
		"DESKBOOK_DB_DRIVER":      "Postgres",
	})
	_, err := Load(Options{LookupEnv: env})
	if err == nil || !strings.Contains(err.Error(), "DESKBOOK_DB_DSN") {
		t.Fatalf("expected missing DSN error, got %v", err)
	}

	const dsn = "postgres://deskbook@localhost:5432/deskbook?sslmode=disable"
	if err := StoreDSN("postgres", dsn); err != nil {
		t.Fatalf("StoreDSN failed: %v", err)
	}
	cfg, err := Load(Options{LookupEnv: env})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != dsn {
		t.Fatalf("expected DSN from keyring, got %#v", cfg.Database)
	}

	explicit := envMap(map[string]string{
		"DESKBOOK_SESSION_SECRET": "s",
		"DESKBOOK_DB_DRIVER":      "postgres",
		"DESKBOOK_DB_DSN":         "postgres://other@db/deskbook",
	})
	cfg, err = Load(Options{LookupEnv: explicit})
	if err != nil || cfg.Database.DSN != "postgres://other@db/deskbook" {
		t.Fatalf("expected explicit DSN to win over keyring, got %q, %v", cfg.Database.DSN, err)
	}
}

func TestLoad_KeyringDSNFromConfigFile(t *testing.T) {
	keyring.MockInit()

	const dsn = "deskbook:pw@tcp(db:3306)/deskbook"
	if err := StoreDSN("mysql", dsn); err != nil {
		t.Fatalf("StoreDSN failed: %v", err)
	}
	yamlFile := writeFile(t, "deskbook.yaml", "database:\n  driver: mysql\nsession:\n  secret: s\n")
	cfg, err := Load(Options{File: yamlFile, LookupEnv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.DSN != dsn {
		t.Fatalf("expected the keyring DSN instead of a sqlite default, got %q", cfg.Database.DSN)
	}

	explicitSQLite := writeFile(t, "sqlite.yaml", "database:\n  driver: sqlite\n  dsn: \"\"\nsession:\n  secret: s\n")
	cfg, err = Load(Options{File: explicitSQLite, LookupEnv: envMap(nil)})
	if err != nil || cfg.Database.DSN != DefaultSQLiteDSN {
		t.Fatalf("expected sqlite default DSN, got %q, %v", cfg.Database.DSN, err)
	}
}

func TestStoreDSN_Validation(t *testing.T) {
	keyring.MockInit()

	if err := StoreDSN("sqlite", "deskbook.db"); err == nil {
		t.Fatal("expected sqlite to be refused")
	}
	if err := StoreDSN("mysql", "  "); err == nil {
		t.Fatal("expected empty DSN to be refused")
	}
	if err := StoreDSN("MySQL", "deskbook:pw@tcp(localhost:3306)/deskbook"); err != nil {
		t.Fatalf("StoreDSN failed: %v", err)
	}
	got, err := keyring.Get(KeyringService, "mysql")
	if err != nil || got != "deskbook:pw@tcp(localhost:3306)/deskbook" {
		t.Fatalf("unexpected keyring entry %q, %v", got, err)
	}
}

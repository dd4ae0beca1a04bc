package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wolftalk.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want func(c *Config)
	}{
		{
			name: "Defaults",
			want: func(c *Config) {},
		},
		{
			name: "File",
			yaml: `
server:
  addr: ":9000"
  create_schema: true
client:
  base_url: https://wolftalk.example.edu
  unity_id: jdoe
logging:
  format: json
`,
			want: func(c *Config) {
				c.Server.Addr = ":9000"
				c.Server.CreateSchema = true
				c.Client.BaseURL = "https://wolftalk.example.edu"
				c.Client.UnityID = "jdoe"
				c.Logging.Format = "json"
			},
		},
		{
			name: "EnvOverridesFile",
			yaml: `
server:
  redis_addr: cache:6379
client:
  base_url: https://a.example.edu
`,
			env: map[string]string{
				"WOLFTALK_BASE_URL":      "https://b.example.edu",
				"WOLFTALK_SESSION":       "s3cr3t",
				"WOLFTALK_UNITY_ID":      "asmith",
				"WOLFTALK_LOG_LEVEL":     "debug",
				"WOLFTALK_REDIS_ADDR":    "",
				"WOLFTALK_CREATE_SCHEMA": "true",
			},
			want: func(c *Config) {
				c.Server.RedisAddr = "cache:6379"
				c.Client.BaseURL = "https://b.example.edu"
				c.Client.Session = "s3cr3t"
				c.Client.UnityID = "asmith"
				c.Logging.Level = "debug"
				c.Server.CreateSchema = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{
				"WOLFTALK_ADDR", "WOLFTALK_POSTGRES_DSN", "WOLFTALK_REDIS_ADDR",
				"WOLFTALK_BASE_URL", "WOLFTALK_SESSION", "WOLFTALK_LOG_LEVEL", "WOLFTALK_UNITY_ID",
				"WOLFTALK_CREATE_SCHEMA",
			} {
				t.Setenv(k, tt.env[k])
			}
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}

			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			want := Default()
			tt.want(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Load() (-want +got):\n%s", diff)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("Load(bad yaml) error = %v", err)
	}

	t.Setenv("WOLFTALK_CREATE_SCHEMA", "sometimes")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "WOLFTALK_CREATE_SCHEMA") {
		t.Errorf("Load(bad create schema) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "BadURL",
			mutate:  func(c *Config) { c.Client.BaseURL = "not a url" },
			wantErr: "base_url",
		},
		{
			name:    "BadLevel",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "level",
		},
		{
			name:    "MissingAddr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "addr",
		},
		{
			name:    "BadUnityID",
			mutate:  func(c *Config) { c.Client.UnityID = "Jane Doe" },
			wantErr: "unity_id",
		},
		{
			name:    "BadTimeout",
			mutate:  func(c *Config) { c.Client.Timeout = "soon" },
			wantErr: "client.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	c := Default()
	if got := c.ClientTimeout(); got != 30*time.Second {
		t.Errorf("ClientTimeout() = %v", got)
	}
	c.Client.Timeout = "5s"
	c.Server.ShutdownTimeout = ""
	if got := c.ClientTimeout(); got != 5*time.Second {
		t.Errorf("ClientTimeout() = %v", got)
	}
	if got := c.ShutdownTimeout(); got != 10*time.Second {
		t.Errorf("ShutdownTimeout() = %v", got)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := Default()
	c.Logging.Format = "json"
	c.Logging.Level = "warn"
	log := c.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("warn record missing: %s", out)
	}
}

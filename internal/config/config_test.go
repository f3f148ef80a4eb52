package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compliance-sentinel/sentinel/internal/config"
	"github.com/compliance-sentinel/sentinel/pipeline"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "sentinel"
user = "sentinel"
password = "sentinel"
ssl_mode = "disable"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "15m"
conn_timeout = "5s"

[storage]
container_name = "documents"
connection_string = "DefaultEndpointsProtocol=http;AccountName=sentinelstore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/sentinelstore;"

[api]
base_path = "/api"

[api.cors]
enabled = false

[pipeline]
generator = "stub"
sessions = "memory"
max_concurrent = 8

[agent]
name = "test-agent"

[agent.provider]
name = "ollama"
base_url = "http://localhost:11434"

[agent.model]
name = "llama3.1:8b"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[pipeline]
max_concurrent = 2
`

// minimalConfig provides the minimum fields required for validation to pass
// (db name, db user, storage connection string). Pipeline defaults fill in
// the rest, and stub mode needs no agent configuration.
const minimalConfig = `
shutdown_timeout = "30s"

[server]
port = 8080

[database]
name = "sentinel"
user = "sentinel"

[storage]
connection_string = "conn"

[api]
base_path = "/api"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.ContainerName != "documents" {
		t.Errorf("storage container: got %s, want documents", cfg.Storage.ContainerName)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("api base_path: got %s, want /api", cfg.API.BasePath)
	}
	if cfg.Pipeline.MaxConcurrent != 8 {
		t.Errorf("pipeline max_concurrent: got %d, want 8", cfg.Pipeline.MaxConcurrent)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Pipeline.MaxConcurrent != 2 {
		t.Errorf("pipeline max_concurrent: got %d, want 2 (from overlay)", cfg.Pipeline.MaxConcurrent)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_VERSION", "2.0.0")
	t.Setenv("SENTINEL_SERVER_PORT", "3000")
	t.Setenv("SENTINEL_PIPELINE_MAX_CONCURRENT", "16")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Pipeline.MaxConcurrent != 16 {
		t.Errorf("pipeline max_concurrent: got %d, want 16", cfg.Pipeline.MaxConcurrent)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("SENTINEL_DB_NAME", "testdb")
	t.Setenv("SENTINEL_DB_USER", "testuser")
	t.Setenv("SENTINEL_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Storage.ConnectionString != "conn" {
		t.Errorf("storage conn from env: got %s, want conn", cfg.Storage.ConnectionString)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `invalid = `)
	chdir(t, dir)

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnvDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
}

func TestEnvFromEnvVar(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_ENV", "production")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "production" {
		t.Errorf("env: got %s, want production", cfg.Env())
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
}

func TestServerAddr(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
}

func TestMaxUploadSizeBytes(t *testing.T) {
	tests := []struct {
		name string
		size string
		want int64
	}{
		{"valid 50MB", "50MB", 50 * 1024 * 1024},
		{"valid 10MB", "10MB", 10 * 1024 * 1024},
		{"valid 1GB", "1GB", 1024 * 1024 * 1024},
		{"invalid falls back to 50MB", "bad", 50 * 1024 * 1024},
		{"empty falls back to 50MB", "", 50 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.APIConfig{MaxUploadSize: tt.size}
			got := cfg.MaxUploadSizeBytes()
			if got != tt.want {
				t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMaxUploadSizeEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_API_MAX_UPLOAD_SIZE", "100MB")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := int64(100 * 1024 * 1024)
	if got := cfg.API.MaxUploadSizeBytes(); got != want {
		t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, want)
	}
}

func TestServerValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name: "invalid port",
			config: `
shutdown_timeout = "30s"

[server]
port = 99999

[database]
name = "sentinel"
user = "sentinel"

[storage]
connection_string = "conn"
`,
			wantErr: "invalid port",
		},
		{
			name: "invalid read_timeout",
			config: `
shutdown_timeout = "30s"

[server]
read_timeout = "bad"

[database]
name = "sentinel"
user = "sentinel"

[storage]
connection_string = "conn"
`,
			wantErr: "invalid read_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", tt.config)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPipelineDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Pipeline.Generator != config.GeneratorStub {
		t.Errorf("generator: got %s, want stub", cfg.Pipeline.Generator)
	}
	if cfg.Pipeline.Sessions != config.SessionsMemory {
		t.Errorf("sessions: got %s, want memory", cfg.Pipeline.Sessions)
	}
	if cfg.Pipeline.MaxConcurrent != 4 {
		t.Errorf("max_concurrent: got %d, want 4", cfg.Pipeline.MaxConcurrent)
	}
	if !cfg.Pipeline.HashUploaderIDsEnabled() {
		t.Error("hash_uploader_ids should default to true")
	}
	if cfg.Pipeline.PoliciesDir != "docs/policies" {
		t.Errorf("policies_dir: got %s, want docs/policies", cfg.Pipeline.PoliciesDir)
	}
	if cfg.Pipeline.TemplatesDir != "docs/templates" {
		t.Errorf("templates_dir: got %s, want docs/templates", cfg.Pipeline.TemplatesDir)
	}
}

func TestApprovalDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	policy := cfg.Pipeline.Approval.Policy()
	standard := pipeline.DefaultApprovalPolicy()

	for _, sev := range pipeline.Severities {
		if policy.Weights[sev] != standard.Weights[sev] {
			t.Errorf("%s weight: got %d, want %d", sev, policy.Weights[sev], standard.Weights[sev])
		}
	}
	if policy.AutoFixThreshold != standard.AutoFixThreshold {
		t.Errorf("auto_fix_threshold: got %d, want %d", policy.AutoFixThreshold, standard.AutoFixThreshold)
	}
	if policy.ReviewThreshold != standard.ReviewThreshold {
		t.Errorf("review_threshold: got %d, want %d", policy.ReviewThreshold, standard.ReviewThreshold)
	}
}

func TestApprovalEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_APPROVAL_HIGH_WEIGHT", "7")
	t.Setenv("SENTINEL_APPROVAL_AUTO_FIX_THRESHOLD", "3")
	t.Setenv("SENTINEL_APPROVAL_REVIEW_THRESHOLD", "9")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Pipeline.Approval.HighWeight != 7 {
		t.Errorf("high_weight: got %d, want 7", cfg.Pipeline.Approval.HighWeight)
	}
	if cfg.Pipeline.Approval.AutoFixThreshold != 3 {
		t.Errorf("auto_fix_threshold: got %d, want 3", cfg.Pipeline.Approval.AutoFixThreshold)
	}
	if cfg.Pipeline.Approval.ReviewThreshold != 9 {
		t.Errorf("review_threshold: got %d, want 9", cfg.Pipeline.Approval.ReviewThreshold)
	}
}

func TestPipelineValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVar  string
		value   string
		wantErr string
	}{
		{"invalid generator", "SENTINEL_PIPELINE_GENERATOR", "llm", "invalid generator"},
		{"invalid sessions", "SENTINEL_PIPELINE_SESSIONS", "redis", "invalid sessions"},
		{"invalid hash flag", "SENTINEL_PIPELINE_HASH_UPLOADER_IDS", "maybe", "invalid hash_uploader_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", minimalConfig)
			chdir(t, dir)

			t.Setenv(tt.envVar, tt.value)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestThresholdOrderingValidation(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_APPROVAL_AUTO_FIX_THRESHOLD", "10")
	t.Setenv("SENTINEL_APPROVAL_REVIEW_THRESHOLD", "5")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error when auto_fix_threshold exceeds review_threshold")
	}
	if !strings.Contains(err.Error(), "auto_fix_threshold") {
		t.Errorf("error %q does not mention auto_fix_threshold", err.Error())
	}
}

func TestAgentConfigFromTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Agent.Name != "test-agent" {
		t.Errorf("agent name: got %s, want test-agent", cfg.Agent.Name)
	}
	if cfg.Agent.Provider == nil {
		t.Fatal("agent provider is nil")
	}
	if cfg.Agent.Provider.Name != "ollama" {
		t.Errorf("provider name: got %s, want ollama", cfg.Agent.Provider.Name)
	}
	if cfg.Agent.Provider.BaseURL != "http://localhost:11434" {
		t.Errorf("provider base_url: got %s, want http://localhost:11434", cfg.Agent.Provider.BaseURL)
	}
	if cfg.Agent.Model == nil {
		t.Fatal("agent model is nil")
	}
	if cfg.Agent.Model.Name != "llama3.1:8b" {
		t.Errorf("model name: got %s, want llama3.1:8b", cfg.Agent.Model.Name)
	}
}

// Stub mode must not require agent configuration, while agent mode
// finalizes and validates it.
func TestAgentFinalizedOnlyInAgentMode(t *testing.T) {
	t.Run("stub mode skips agent defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "config.toml", minimalConfig)
		chdir(t, dir)

		cfg, err := config.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Agent.Name != "" {
			t.Errorf("agent name should stay empty in stub mode, got %s", cfg.Agent.Name)
		}
	})

	t.Run("agent mode applies defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "config.toml", minimalConfig)
		chdir(t, dir)

		t.Setenv("SENTINEL_PIPELINE_GENERATOR", "agent")

		cfg, err := config.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Agent.Name == "" {
			t.Error("agent name should be defaulted in agent mode")
		}
		if cfg.Agent.Provider == nil || cfg.Agent.Provider.Name == "" {
			t.Error("agent provider should be defaulted in agent mode")
		}
	})
}

func TestAgentEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("SENTINEL_PIPELINE_GENERATOR", "agent")
	t.Setenv("SENTINEL_AGENT_PROVIDER_NAME", "azure")
	t.Setenv("SENTINEL_AGENT_BASE_URL", "https://myendpoint.openai.azure.com")
	t.Setenv("SENTINEL_AGENT_MODEL_NAME", "gpt-5-mini")
	t.Setenv("SENTINEL_AGENT_TOKEN", "test-token")
	t.Setenv("SENTINEL_AGENT_DEPLOYMENT", "gpt-5-mini")
	t.Setenv("SENTINEL_AGENT_API_VERSION", "2024-12-01-preview")
	t.Setenv("SENTINEL_AGENT_AUTH_TYPE", "api_key")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Agent.Provider.Name != "azure" {
		t.Errorf("provider name: got %s, want azure", cfg.Agent.Provider.Name)
	}
	if cfg.Agent.Provider.BaseURL != "https://myendpoint.openai.azure.com" {
		t.Errorf("provider base_url: got %s, want https://myendpoint.openai.azure.com", cfg.Agent.Provider.BaseURL)
	}
	if cfg.Agent.Model.Name != "gpt-5-mini" {
		t.Errorf("model name: got %s, want gpt-5-mini", cfg.Agent.Model.Name)
	}

	opts := cfg.Agent.Provider.Options
	if opts["token"] != "test-token" {
		t.Errorf("token: got %v, want test-token", opts["token"])
	}
	if opts["deployment"] != "gpt-5-mini" {
		t.Errorf("deployment: got %v, want gpt-5-mini", opts["deployment"])
	}
	if opts["api_version"] != "2024-12-01-preview" {
		t.Errorf("api_version: got %v, want 2024-12-01-preview", opts["api_version"])
	}
	if opts["auth_type"] != "api_key" {
		t.Errorf("auth_type: got %v, want api_key", opts["auth_type"])
	}
}

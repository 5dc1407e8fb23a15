package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_FieldValues(t *testing.T) {
	cfg := Config{
		ListenAddr:    ":143",
		TLSListenAddr: ":993",
		SQLitePath:    "kakimail.db",
	}

	if cfg.ListenAddr != ":143" {
		t.Errorf("expected listen_addr ':143', got %q", cfg.ListenAddr)
	}
	if cfg.TLSListenAddr != ":993" {
		t.Errorf("expected tls_listen_addr ':993', got %q", cfg.TLSListenAddr)
	}
	if cfg.SQLitePath != "kakimail.db" {
		t.Errorf("expected sqlite_path 'kakimail.db', got %q", cfg.SQLitePath)
	}
}

func TestLoadConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kakimail.yaml")

	configContent := `listen_addr: ":1143"
tls_listen_addr: ":1993"
sqlite_path: "/var/lib/kakimail/data.db"
tls:
  cert_file: "/etc/kakimail/cert.pem"
  key_file: "/etc/kakimail/key.pem"
delivery_api:
  listen_addr: ":8143"
  jwt_key: "test-secret"
archive:
  enabled: true
  bucket: "kakimail-archive"
  region: "us-east-1"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	defer func() { _ = os.Chdir(originalDir) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	if cfg.ListenAddr != ":1143" {
		t.Errorf("expected listen_addr ':1143', got %q", cfg.ListenAddr)
	}
	if cfg.TLSListenAddr != ":1993" {
		t.Errorf("expected tls_listen_addr ':1993', got %q", cfg.TLSListenAddr)
	}
	if cfg.SQLitePath != "/var/lib/kakimail/data.db" {
		t.Errorf("expected sqlite_path, got %q", cfg.SQLitePath)
	}
	if cfg.TLS.CertFile != "/etc/kakimail/cert.pem" {
		t.Errorf("expected tls cert_file, got %q", cfg.TLS.CertFile)
	}
	if cfg.DeliveryAPI.JWTKey != "test-secret" {
		t.Errorf("expected delivery_api jwt_key, got %q", cfg.DeliveryAPI.JWTKey)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Bucket != "kakimail-archive" {
		t.Errorf("expected archive enabled with bucket, got %+v", cfg.Archive)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	defer func() { _ = os.Chdir(originalDir) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when no config file is present")
	}
}

func TestLoadConfig_PartialYAMLKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kakimail.yaml")

	if err := os.WriteFile(configPath, []byte("sqlite_path: \"/data/kakimail.db\"\n"), 0600); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	defer func() { _ = os.Chdir(originalDir) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.SQLitePath != "/data/kakimail.db" {
		t.Errorf("expected overridden sqlite_path, got %q", cfg.SQLitePath)
	}
	if cfg.ListenAddr != ":143" {
		t.Errorf("expected default listen_addr to survive partial YAML, got %q", cfg.ListenAddr)
	}
}

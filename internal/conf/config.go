// Package conf loads the server's YAML configuration file, the same
// multi-path-search pattern the teacher's internal/conf package uses.
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// TLSConfig holds the certificate pair for the implicit-TLS (993) listener
// and STARTTLS upgrades on the plain (143) listener.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DeliveryAPIConfig configures the internal HTTP endpoint the SMTP/LMTP
// collaborator calls to hand off incoming mail (spec.md §1).
type DeliveryAPIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	JWTKey     string `yaml:"jwt_key"`
}

// ArchiveConfig configures the best-effort S3 mirror of expunged messages.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // non-empty for an S3-compatible endpoint other than AWS
}

// Config is the full set of server settings.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`     // plain/STARTTLS IMAP, e.g. ":143"
	TLSListenAddr string `yaml:"tls_listen_addr"` // implicit TLS IMAP, e.g. ":993"

	TLS TLSConfig `yaml:"tls"`

	SQLitePath string `yaml:"sqlite_path"`

	DeliveryAPI DeliveryAPIConfig `yaml:"delivery_api"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

// configPaths mirrors the teacher's search order: an absolute system path,
// then two relative fallbacks for running out of a checkout.
var configPaths = []string{
	"/etc/kakimail/kakimail.yaml",
	"./config/kakimail.yaml",
	"./kakimail.yaml",
}

// LoadConfig reads the first config file found on configPaths.
func LoadConfig() (*Config, error) {
	var data []byte
	var err error
	for _, path := range configPaths {
		data, err = os.ReadFile(filepath.Clean(path))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no config file found in %v: %w", configPaths, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:    ":143",
		TLSListenAddr: ":993",
		SQLitePath:    "kakimail.db",
		DeliveryAPI:   DeliveryAPIConfig{ListenAddr: ":8143"},
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/flagx"
	"github.com/dmitrijs2005/gideon/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Pointer fields tell "absent" from "zero"
// so a file only overrides what it names. Durations accept "30m" or
// nanoseconds.
type fileConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 *string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   *string         `json:"secret_key" yaml:"secret_key"`
	EncryptionKey               *string         `json:"encryption_key" yaml:"encryption_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	LogFormat                   *string         `json:"log_format" yaml:"log_format"`
	MigrateOnStart              *bool           `json:"migrate_on_start" yaml:"migrate_on_start"`
}

// parseFile overlays the file named by -c / -config. The format follows the
// extension: .yaml and .yml are YAML, anything else is JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.SecretKey, fc.SecretKey)
	setString(&cfg.EncryptionKey, fc.EncryptionKey)
	setString(&cfg.LogFormat, fc.LogFormat)

	if fc.AccessTokenValidityDuration != nil {
		if err := fc.AccessTokenValidityDuration.Validate(); err != nil {
			return &ConfigError{Field: "access_token_validity_duration", Reason: err.Error()}
		}
		cfg.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.MigrateOnStart != nil {
		cfg.MigrateOnStart = *fc.MigrateOnStart
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

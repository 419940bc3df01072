package config

import (
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvSecretKey          = "SECRET_KEY"
	EnvEncryptionKey      = "ENCRYPTION_KEY"
	EnvAccessTokenMinutes = "ACCESS_TOKEN_EXPIRE_MINUTES"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvHTTPAddr           = "HTTP_ADDR"
	EnvGRPCAddr           = "GRPC_ADDR"
	EnvLogFormat          = "LOG_FORMAT"
	EnvMigrateOnStart     = "MIGRATE_ON_START"
)

// parseEnv overlays non-empty environment variables.
func parseEnv(cfg *Config, getenv func(string) string) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{EnvSecretKey, &cfg.SecretKey},
		{EnvEncryptionKey, &cfg.EncryptionKey},
		{EnvDatabaseURL, &cfg.DatabaseDSN},
		{EnvHTTPAddr, &cfg.EndpointAddrHTTP},
		{EnvGRPCAddr, &cfg.EndpointAddrGRPC},
		{EnvLogFormat, &cfg.LogFormat},
	}
	for _, s := range strs {
		if v := getenv(s.name); v != "" {
			*s.dst = v
		}
	}

	if v := getenv(EnvAccessTokenMinutes); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: EnvAccessTokenMinutes, Reason: "must be an integer number of minutes"}
		}
		cfg.AccessTokenValidityDuration = time.Duration(minutes) * time.Minute
	}

	if v := getenv(EnvMigrateOnStart); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: EnvMigrateOnStart, Reason: "must be a boolean"}
		}
		cfg.MigrateOnStart = b
	}

	return nil
}

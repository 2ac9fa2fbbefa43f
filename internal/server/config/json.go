package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carmarket/marketauth/internal/flagx"
	"github.com/carmarket/marketauth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "2h" or
// integer nanoseconds; absent keys keep the current value.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	StorageDriver                *string         `json:"storage_driver"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	RedisAddr                    *string         `json:"redis_addr"`
	SecretKey                    *string         `json:"secret_key"`
	TokenIssuer                  *string         `json:"token_issuer"`
	TokenAudience                *string         `json:"token_audience"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RefreshTokenSize             *int            `json:"refresh_token_size"`
	Argon2Time                   *uint32         `json:"argon2_time"`
	Argon2Memory                 *uint32         `json:"argon2_memory"`
	Argon2Threads                *uint8          `json:"argon2_threads"`
	LogLevel                     *string         `json:"log_level"`
	LogFormat                    *string         `json:"log_format"`
}

// parseJson loads the file named by -c / -config in args, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.StorageDriver, c.StorageDriver)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.RedisAddr, c.RedisAddr)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.TokenIssuer, c.TokenIssuer)
	setIf(&config.TokenAudience, c.TokenAudience)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	setIf(&config.RefreshTokenSize, c.RefreshTokenSize)
	setIf(&config.Argon2Time, c.Argon2Time)
	setIf(&config.Argon2Memory, c.Argon2Memory)
	setIf(&config.Argon2Threads, c.Argon2Threads)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.LogFormat, c.LogFormat)

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

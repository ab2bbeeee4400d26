// Package config loads the zkauthd configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/storage"
)

// Duration is a time.Duration written as a string ("2m", "30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Protocol ProtocolConfig `toml:"protocol"`
	Sessions SessionsConfig `toml:"sessions"`
	Tokens   TokensConfig   `toml:"tokens"`
	Storage  StorageConfig  `toml:"storage"`
	Limits   LimitsConfig   `toml:"limits"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
	GRPCAddr string `toml:"grpc_addr"`
}

// ProtocolConfig selects the group. Group takes precedence; otherwise all
// four custom values (hex) are used.
type ProtocolConfig struct {
	Group string `toml:"group"`
	P     string `toml:"p"`
	Q     string `toml:"q"`
	Alpha string `toml:"alpha"`
	Beta  string `toml:"beta"`
}

// SessionsConfig bounds the pending-session registry.
type SessionsConfig struct {
	TTL           Duration `toml:"ttl"`
	MaxPending    int      `toml:"max_pending"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// TokensConfig controls session token minting. An empty KeyFile means an
// ephemeral signing key.
type TokensConfig struct {
	Issuer        string   `toml:"issuer"`
	Audience      string   `toml:"audience"`
	TTL           Duration `toml:"ttl"`
	KeyFile       string   `toml:"key_file"`
	KeyConfigFile string   `toml:"key_config_file"`
}

// StorageConfig selects the user registry. An empty UsersDB keeps users
// in memory.
type StorageConfig struct {
	UsersDB string `toml:"users_db"`
}

// LimitsConfig holds request rate limits. RateLimit is requests per
// client per minute; zero disables limiting.
type LimitsConfig struct {
	RateLimit int `toml:"rate_limit"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Default returns a configuration that serves on localhost with the
// default group and in-memory storage.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8080",
			GRPCAddr: "127.0.0.1:50051",
		},
		Protocol: ProtocolConfig{
			Group: chaumpedersen.DefaultGroup,
		},
		Sessions: SessionsConfig{
			TTL:           Duration{storage.DefaultSessionTTL},
			MaxPending:    storage.DefaultMaxPending,
			SweepInterval: Duration{storage.DefaultSweepInterval},
		},
		Tokens: TokensConfig{
			Issuer:   "zkauthd",
			Audience: "zkauth",
			TTL:      Duration{15 * time.Minute},
		},
		Limits: LimitsConfig{
			RateLimit: 120,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.HTTPAddr == "":
		return errors.New("server.http_addr is required")
	case c.Server.GRPCAddr == "":
		return errors.New("server.grpc_addr is required")
	case c.Sessions.TTL.Duration <= 0:
		return errors.New("sessions.ttl must be positive")
	case c.Sessions.MaxPending <= 0:
		return errors.New("sessions.max_pending must be positive")
	case c.Sessions.SweepInterval.Duration <= 0:
		return errors.New("sessions.sweep_interval must be positive")
	case c.Tokens.TTL.Duration <= 0:
		return errors.New("tokens.ttl must be positive")
	case c.Tokens.KeyFile != "" && c.Tokens.KeyConfigFile == "":
		return errors.New("tokens.key_config_file is required with tokens.key_file")
	case c.Limits.RateLimit < 0:
		return errors.New("limits.rate_limit must not be negative")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	_, err := c.Params()
	return err
}

// Params resolves the protocol section into group parameters.
func (c *Config) Params() (*chaumpedersen.Params, error) {
	p := c.Protocol
	if p.Group != "" {
		return chaumpedersen.Group(p.Group)
	}

	var values [4]*big.Int
	for i, field := range []struct{ name, hex string }{
		{"p", p.P}, {"q", p.Q}, {"alpha", p.Alpha}, {"beta", p.Beta},
	} {
		if field.hex == "" {
			continue
		}
		v, ok := new(big.Int).SetString(strings.TrimPrefix(field.hex, "0x"), 16)
		if !ok {
			return nil, fmt.Errorf("protocol.%s is not a hex integer", field.name)
		}
		values[i] = v
	}

	return chaumpedersen.NewParams(chaumpedersen.Config{
		P:     values[0],
		Q:     values[1],
		Alpha: values[2],
		Beta:  values[3],
	})
}

// SessionOptions maps the sessions section onto registry options.
func (c *Config) SessionOptions() storage.SessionOptions {
	return storage.SessionOptions{
		TTL:           c.Sessions.TTL.Duration,
		MaxPending:    c.Sessions.MaxPending,
		SweepInterval: c.Sessions.SweepInterval.Duration,
	}
}

// Package config loads server settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("config")

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds the server settings. Every option can come from a flag or
// its env var; flags win.
type Config struct {
	Store    string `long:"store" env:"STORE" default:"mongo" choice:"mongo" choice:"memory" description:"row store backend"`
	MongoURI string `long:"mongodb-uri" env:"MONGODB_URI" description:"MongoDB connection string (required)"`
	MongoDB  string `long:"mongodb-db" env:"MONGODB_DB" default:"chat_db" description:"database name"`

	JWTSecret    string        `long:"jwt-secret" env:"JWT_SECRET" description:"single HMAC signing secret"`
	JWTKeys      string        `long:"jwt-keys" env:"JWT_KEYS" description:"rotating keys as kid:secret,kid2:secret2"`
	JWTActiveKid string        `long:"jwt-active-kid" env:"JWT_ACTIVE_KID" description:"kid used to sign new tokens"`
	TokenTTL     time.Duration `long:"token-ttl" env:"TOKEN_TTL" default:"24h" description:"token lifetime"`

	Port         string `short:"p" long:"port" env:"PORT" default:"50051" description:"gRPC listen port"`
	HTTPPort     string `long:"http-port" env:"HTTP_PORT" default:"8080" description:"HTTP/WebSocket listen port"`
	RateLimitRPM int    `long:"rate-limit-rpm" env:"RATE_LIMIT_RPM" default:"10" description:"requests per minute for auth and search endpoints"`

	TLSCert    string `long:"tls-cert" env:"TLS_CERT" description:"TLS certificate file"`
	TLSKey     string `long:"tls-key" env:"TLS_KEY" description:"TLS key file"`
	RequireTLS bool   `long:"require-tls" env:"REQUIRE_TLS" description:"refuse to start without TLS"`

	ValkeyAddr    string `long:"valkey-addr" env:"VALKEY_ADDR" description:"valkey address for cross-instance fan-out"`
	ValkeyChannel string `long:"valkey-channel" env:"VALKEY_CHANNEL" default:"convosync:changes" description:"pub/sub channel"`

	LogLevel string `short:"l" long:"loglevel" env:"LOG_LEVEL" default:"info" description:"set the logging level [debug, info, notice, warning, error, critical]"`
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"also write logs to this rotated file"`
}

// Load reads .env (if present) and then parses args over the environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warningf("could not load .env: %v", err)
	}
	return Parse(args)
}

// Parse parses args and the current environment without touching .env.
func Parse(args []string) (*Config, error) {
	var c Config
	parser := flags.NewParser(&c, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Store == StoreMongo && c.MongoURI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.JWTKeys != "" {
		keys, err := c.SigningKeys()
		if err != nil {
			return err
		}
		if _, ok := keys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if c.RequireTLS && !c.TLSEnabled() {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	if _, err := logging.LogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// SigningKeys parses JWT_KEYS into a kid -> secret map.
func (c *Config) SigningKeys() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWTKeys, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[kid] = secret
	}
	if len(keys) == 0 {
		return nil, errors.New("JWT_KEYS has no entries")
	}
	return keys, nil
}

// TLSEnabled reports whether both certificate and key are set.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Level returns the configured logging level.
func (c *Config) Level() logging.Level {
	lvl, err := logging.LogLevel(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return lvl
}

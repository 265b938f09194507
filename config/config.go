// Package config loads the service configuration from the command line and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every service setting. It satisfies the auth Config interface.
type Config struct {
	Listen        string `long:"listen" env:"PLANNER_AUTH_LISTEN" default:":8080" description:"HTTP listen address"`
	MetricsListen string `long:"metrics-listen" env:"PLANNER_AUTH_METRICS_LISTEN" default:":9090" description:"Metrics listen address, empty disables it"`
	RoutePrefix   string `long:"route-prefix" env:"PLANNER_AUTH_ROUTE_PREFIX" default:"/auth" description:"Path prefix of the auth endpoints"`

	DBDriver string `long:"db-driver" env:"PLANNER_AUTH_DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"PLANNER_AUTH_DB_DSN" default:"file:planner-auth.db?cache=shared" description:"Database connection string"`

	SigningKey     string        `long:"jwt-secret" env:"PLANNER_AUTH_JWT_SECRET" description:"HS512 signing secret"`
	AccessTokenTTL time.Duration `long:"access-token-ttl" env:"PLANNER_AUTH_ACCESS_TOKEN_TTL" default:"24h" description:"Access token and cookie lifetime"`
	ResetTokenTTL  time.Duration `long:"reset-token-ttl" env:"PLANNER_AUTH_RESET_TOKEN_TTL" default:"15m" description:"Password reset token lifetime"`
	CookieName     string        `long:"cookie-name" env:"PLANNER_AUTH_COOKIE_NAME" default:"jwt" description:"Access cookie name"`
	CookieDomain   string        `long:"cookie-domain" env:"PLANNER_AUTH_COOKIE_DOMAIN" default:"localhost" description:"Access cookie domain"`
	ClientURL      string        `long:"client-url" env:"PLANNER_AUTH_CLIENT_URL" default:"http://localhost:4200" description:"Client base URL used in emailed links"`
	DefaultRole    string        `long:"default-role" env:"PLANNER_AUTH_DEFAULT_ROLE" default:"USER" description:"Role assigned on registration"`
	PublicRoutes   []string      `long:"public-route" env:"PLANNER_AUTH_PUBLIC_ROUTES" env-delim:"," description:"Extra path keywords reachable without a token"`
	BcryptCost     int           `long:"bcrypt-cost" env:"PLANNER_AUTH_BCRYPT_COST" default:"12" description:"bcrypt cost"`

	SMTPHost       string `long:"smtp-host" env:"PLANNER_AUTH_SMTP_HOST" description:"SMTP server host:port, empty disables email"`
	SMTPUser       string `long:"smtp-user" env:"PLANNER_AUTH_SMTP_USER" description:"SMTP user"`
	SMTPPassword   string `long:"smtp-password" env:"PLANNER_AUTH_SMTP_PASSWORD" description:"SMTP password"`
	SMTPFrom       string `long:"smtp-from" env:"PLANNER_AUTH_SMTP_FROM" default:"Planner <noreply@localhost>" description:"Sender address"`
	SMTPSkipVerify bool   `long:"smtp-skip-verify" env:"PLANNER_AUTH_SMTP_SKIP_VERIFY" description:"Skip TLS verification of the SMTP server"`

	NotifyQueue  string `long:"notify-queue" env:"PLANNER_AUTH_NOTIFY_QUEUE" default:"memory" choice:"memory" choice:"redis" description:"Notification queue backend"`
	RedisURL     string `long:"redis-url" env:"PLANNER_AUTH_REDIS_URL" default:"redis://localhost:6379/0" description:"Redis URL for the redis queue"`
	QueueKey     string `long:"queue-key" env:"PLANNER_AUTH_QUEUE_KEY" default:"planner-auth:notifications" description:"Redis list key"`
	NotifyWorker int    `long:"notify-workers" env:"PLANNER_AUTH_NOTIFY_WORKERS" default:"2" description:"Notification workers"`
	NotifyBuffer int    `long:"notify-buffer" env:"PLANNER_AUTH_NOTIFY_BUFFER" default:"100" description:"Memory queue capacity"`

	LogLevel  string `long:"log-level" env:"PLANNER_AUTH_LOG_LEVEL" default:"info" description:"Log level"`
	LogFormat string `long:"log-format" env:"PLANNER_AUTH_LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log format"`
	Debug     bool   `long:"debug" env:"PLANNER_AUTH_DEBUG" description:"Log request payloads"`
}

// Load parses args and the environment into a validated Config. A help
// request is returned as a *flags.Error of type flags.ErrHelp carrying the
// usage text. Nothing is printed.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsHelp reports whether err is a help request
func IsHelp(err error) bool {
	var e *flags.Error
	return errors.As(err, &e) && e.Type == flags.ErrHelp
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.SigningKey) == "" {
		errs = append(errs, "jwt secret is required")
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, "access token ttl must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, "reset token ttl must be positive")
	}
	if c.CookieName == "" {
		errs = append(errs, "cookie name is required")
	}
	if c.DefaultRole == "" {
		errs = append(errs, "default role is required")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown db driver %q", c.DBDriver))
	}
	switch c.NotifyQueue {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown notify queue %q", c.NotifyQueue))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Sprintf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetAccessTokenTTL() time.Duration {
	return c.AccessTokenTTL
}

func (c *Config) GetResetTokenTTL() time.Duration {
	return c.ResetTokenTTL
}

func (c *Config) GetCookieName() string {
	return c.CookieName
}

func (c *Config) GetCookieDomain() string {
	return c.CookieDomain
}

func (c *Config) GetClientURL() string {
	return c.ClientURL
}

func (c *Config) GetDefaultRole() string {
	return c.DefaultRole
}

func (c *Config) GetPublicRoutes() []string {
	return c.PublicRoutes
}

func (c *Config) GetRoutePrefix() string {
	return c.RoutePrefix
}

func (c *Config) GetBcryptCost() int {
	return c.BcryptCost
}

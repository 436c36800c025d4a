package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevSecret is the signing secret older deployments fell back to when
// JWT_SECRET was unset.  It is refused in production.
const DevSecret = "inventory-dev-secret"

// MinProdSecretLen is the shortest JWT_SECRET accepted when APP_ENV=prod.
const MinProdSecretLen = 32

var (
	ErrSecretMissing = errors.New("config: JWT_SECRET is required")
	ErrSecretWeak    = errors.New("config: JWT_SECRET is too weak for production")
)

// Config holds all runtime configuration values.  Each section maps to a
// group of environment variables sharing a prefix.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	DB        DBConfig        `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Cache     CacheConfig     `envPrefix:"CACHE_"`
	AMQP      AMQPConfig      `envPrefix:"AMQP_"`
	Backend   BackendConfig   `envPrefix:"BACKEND_"`
	Seed      SeedConfig      `envPrefix:"SEED_ADMIN_"`

	JWTSecret  string `env:"JWT_SECRET"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"12"`
}

type AppConfig struct {
	Env     string `env:"ENV" envDefault:"dev"`
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

// DBConfig points at the MySQL database holding the users table.
type DBConfig struct {
	User string `env:"USER" envDefault:"inventory"`
	Pass string `env:"PASS"`
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"3306"`
	Name string `env:"NAME" envDefault:"inventory"`
}

// DSN renders the go-sql-driver/mysql data source name.  parseTime=true
// maps DATETIME to time.Time and loc=UTC keeps times consistent.
func (d DBConfig) DSN() string {
	auth := d.User
	if d.Pass != "" {
		auth = fmt.Sprintf("%s:%s", d.User, d.Pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, d.Host, d.Port, d.Name)
}

// AMQPConfig configures the session event queue.  An empty URL disables
// publishing and the consumer.
type AMQPConfig struct {
	URL     string `env:"URL"`
	Queue   string `env:"QUEUE" envDefault:"session.events"`
	LogPath string `env:"LOG_PATH" envDefault:"logs/session.log"`
}

// BackendConfig locates the REST service that owns employees, hardware,
// software, assignments and users.
type BackendConfig struct {
	URL     string        `env:"URL" envDefault:"http://localhost:9090"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// SeedConfig names an admin account created at startup when it does not
// exist yet.  Empty Username disables seeding.
type SeedConfig struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	FullName string `env:"FULL_NAME" envDefault:"Administrator"`
}

// IsProd reports whether the app runs with APP_ENV=prod.
func (c Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod") || strings.EqualFold(c.App.Env, "production")
}

// Parse builds a Config from the given environment.  A nil map reads the
// process environment.
func Parse(environ map[string]string) (Config, error) {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.RateLimit.normalize()
	cfg.Cache.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the signing secret rules.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrSecretMissing
	}
	if !c.IsProd() {
		return nil
	}
	if c.JWTSecret == DevSecret {
		return fmt.Errorf("%w: the development fallback secret is not allowed", ErrSecretWeak)
	}
	if len(c.JWTSecret) < MinProdSecretLen {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrSecretWeak, MinProdSecretLen, len(c.JWTSecret))
	}
	return nil
}

// Warnings lists non-fatal configuration problems worth logging at startup.
func (c Config) Warnings() []string {
	var out []string
	if c.JWTSecret == DevSecret {
		out = append(out, "JWT_SECRET is the development fallback secret")
	} else if len(c.JWTSecret) < MinProdSecretLen {
		out = append(out, fmt.Sprintf("JWT_SECRET is shorter than %d bytes", MinProdSecretLen))
	}
	if c.AMQP.URL == "" {
		out = append(out, "AMQP_URL is empty; session events are disabled")
	}
	return out
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads a .env file when present, then the process environment.  Any
// error aborts startup.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := Parse(nil)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

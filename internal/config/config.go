package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the identity service.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`

	Server     ServerConfig
	Logging    LoggingConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Notifier   NotifierConfig
	SMTP       SMTPConfig
	JWT        JWTConfig
	Hashing    HashingConfig
	OTP        OTPConfig
	Auth       AuthConfig
	KMS        KMSConfig
	Encryption EncryptionConfig
}

type ServerConfig struct {
	Port         int           `env:"PORT" envDefault:"3000"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	EnableTLS   bool   `env:"TLS_ENABLED" envDefault:"false"`
	TLSPort     int    `env:"TLS_PORT" envDefault:"8443"`
	AutoCert    bool   `env:"TLS_AUTOCERT" envDefault:"false"`
	Domain      string `env:"TLS_DOMAIN" envDefault:"localhost"`
	CertFile    string `env:"TLS_CERT_FILE"`
	KeyFile     string `env:"TLS_KEY_FILE"`
	AutoCertDir string `env:"TLS_AUTOCERT_DIR" envDefault:"./certs"`
	Email       string `env:"TLS_ACME_EMAIL"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// StoreConfig selects the Account Store backend: "mongo" or "memory".
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"mongo"`
}

type MongoConfig struct {
	URI        string        `env:"DB_DATABASE" envDefault:"mongodb://localhost:27017/express-server"`
	Database   string        `env:"MONGO_DATABASE"`
	Collection string        `env:"MONGO_COLLECTION" envDefault:"users"`
	Timeout    time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
}

type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	URL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	LockTTL  time.Duration `env:"OTP_LOCK_TTL" envDefault:"5s"`

	TLSCAFile   string `env:"REDIS_TLS_CA_FILE" envDefault:"/app/certs/ca.crt"`
	TLSCertFile string `env:"REDIS_TLS_CERT_FILE" envDefault:"/app/certs/redis.crt"`
	TLSKeyFile  string `env:"REDIS_TLS_KEY_FILE" envDefault:"/app/certs/redis.key"`
}

type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	EmailTopic string   `env:"KAFKA_EMAIL_TOPIC" envDefault:"identity.email"`
	GroupID    string   `env:"KAFKA_GROUP_ID" envDefault:"identity-mailer"`
}

// NotifierConfig selects how OTP emails leave the service: "smtp",
// "kafka" or "log".
type NotifierConfig struct {
	Driver      string        `env:"NOTIFIER_DRIVER" envDefault:"smtp"`
	SendTimeout time.Duration `env:"NOTIFIER_SEND_TIMEOUT" envDefault:"30s"`
}

type SMTPConfig struct {
	Host     string `env:"EMAIL_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"EMAIL_PORT" envDefault:"587"`
	Username string `env:"Org_Email"`
	Password string `env:"Org_Pass"`
	From     string `env:"GMAIL_USER"`
}

// JWTConfig holds the signing secret and token lifetimes. Lifetimes use the
// "1h" / "7d" notation and are resolved by AccessTTL and RefreshTTL.
type JWTConfig struct {
	Secret          string `env:"JWT_SECRET"`
	AccessTokenExp  string `env:"JWT_ACCESS_TOKEN_EXP" envDefault:"1h"`
	RefreshTokenExp string `env:"JWT_REFRESH_TOKEN_EXP" envDefault:"7d"`
}

// HashingConfig selects the password digest. Digests produced by either
// algorithm remain verifiable after switching.
type HashingConfig struct {
	Algorithm         string `env:"PASSWORD_HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"10"`
	Argon2MemoryCost  uint32 `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2TimeCost    uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"2"`
}

type OTPConfig struct {
	TTL time.Duration `env:"OTP_TTL" envDefault:"60s"`
}

type AuthConfig struct {
	AllowRoleOnSignup bool `env:"AUTH_ALLOW_ROLE_ON_SIGNUP" envDefault:"false"`
}

type KMSConfig struct {
	Enabled bool   `env:"KMS_ENABLED" envDefault:"false"`
	KeyID   string `env:"KMS_KEY_ID"`
	Region  string `env:"AWS_REGION"`
}

// EncryptionConfig controls envelope encryption of profile phone numbers.
// MasterKey (base64, 32 bytes) wraps data keys when KMS is disabled.
type EncryptionConfig struct {
	Enabled   bool   `env:"ENCRYPTION_ENABLED" envDefault:"false"`
	MasterKey string `env:"ENCRYPTION_MASTER_KEY"`
}

var ErrMissingJWTSecret = errors.New("JWT secret is missing or invalid in config")

// LoadConfig reads an optional .env file and the process environment.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return Parse()
}

// LoadMailerConfig is LoadConfig for the mail relay, which never signs tokens
// and so does not need the JWT settings.
func LoadMailerConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return ParseMailer()
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// Parse builds a Config from the current environment and validates it.
func Parse() (*Config, error) {
	return parse((*Config).Validate)
}

// ParseMailer builds a Config and checks only what the mail relay uses.
func ParseMailer() (*Config, error) {
	return parse((*Config).ValidateMailer)
}

func parse(validate func(*Config) error) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateMailer checks the Kafka and SMTP settings of the mail relay.
func (c *Config) ValidateMailer() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.Kafka.EmailTopic == "" {
		return fmt.Errorf("KAFKA_EMAIL_TOPIC is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID is required")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("EMAIL_HOST is required")
	}
	if c.Notifier.SendTimeout <= 0 {
		return fmt.Errorf("NOTIFIER_SEND_TIMEOUT must be positive")
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	if _, err := c.JWT.AccessTTL(); err != nil {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXP: %w", err)
	}
	if _, err := c.JWT.RefreshTTL(); err != nil {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXP: %w", err)
	}
	switch c.Store.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Notifier.Driver {
	case "smtp", "kafka", "log":
	default:
		return fmt.Errorf("unknown NOTIFIER_DRIVER %q", c.Notifier.Driver)
	}
	switch c.Hashing.Algorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown PASSWORD_HASH_ALGORITHM %q", c.Hashing.Algorithm)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.KMS.Enabled && c.KMS.KeyID == "" {
		return fmt.Errorf("KMS_KEY_ID is required when KMS is enabled")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MongoDatabase returns the configured database, falling back to the path
// component of the connection URI.
func (c *Config) MongoDatabase() string {
	if c.Mongo.Database != "" {
		return c.Mongo.Database
	}
	uri := c.Mongo.URI
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+3:]
	}
	if i := strings.Index(uri, "/"); i >= 0 {
		name := uri[i+1:]
		if j := strings.IndexAny(name, "?"); j >= 0 {
			name = name[:j]
		}
		if name != "" {
			return name
		}
	}
	return "identity"
}

func (j JWTConfig) AccessTTL() (time.Duration, error) {
	return ParseTTL(j.AccessTokenExp)
}

func (j JWTConfig) RefreshTTL() (time.Duration, error) {
	return ParseTTL(j.RefreshTokenExp)
}

// ParseTTL accepts Go durations ("90m", "1h30m"), a day suffix ("7d") and
// bare integers, which are read as seconds.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}

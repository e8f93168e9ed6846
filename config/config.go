package config

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Nodo     NodoConfig     `envPrefix:"NODO_"`
	Gateway  GatewayConfig  `envPrefix:"GATEWAY_"`
	Psp      PspConfig      `envPrefix:"PSP_"`
	JWT      JWTConfig      `envPrefix:"JWT_"`
	Closure  ClosureConfig  `envPrefix:"CLOSURE_"`
	Queue    QueueConfig    `envPrefix:"QUEUE_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	S3       S3Config       `envPrefix:"S3_"`

	PaymentTokenValidity time.Duration `env:"PAYMENT_TOKEN_VALIDITY" envDefault:"15m"`
	ActivationFanout     int           `env:"ACTIVATION_FANOUT" envDefault:"4"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Mode            string        `env:"MODE" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"ecommerce_transactions"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

// DSN renders a libpq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.MaxConns)
}

type RedisConfig struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"20m"`
}

type NodoConfig struct {
	BaseURL          string        `env:"BASE_URL" envDefault:"http://localhost:8081"`
	SubscriptionKey  string        `env:"SUBSCRIPTION_KEY"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"10s"`
	IssuerFiscalCode string        `env:"ISSUER_FISCAL_CODE" envDefault:"00000000000"`
}

type GatewayConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8082"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type PspConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8083"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type JWTConfig struct {
	Secret string        `env:"SECRET" envDefault:"change-me"`
	Expiry time.Duration `env:"EXPIRY" envDefault:"30m"`
}

type ClosureConfig struct {
	RetryInterval    time.Duration `env:"RETRY_INTERVAL" envDefault:"2m"`
	SafetyOffset     time.Duration `env:"SAFETY_OFFSET" envDefault:"1m"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"0"`
	RefundableErrors []string      `env:"REFUNDABLE_ERRORS" envSeparator:"," envDefault:"Node did not receive RPT yet"`
}

type QueueConfig struct {
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"50"`
	Lease         time.Duration `env:"LEASE" envDefault:"30s"`
	MaxDeliveries int           `env:"MAX_DELIVERIES" envDefault:"5"`
	Backoff       time.Duration `env:"BACKOFF" envDefault:"5s"`
	MessageTTL    time.Duration `env:"MESSAGE_TTL" envDefault:"24h"`

	// Outbox rows become visible to the relay once OutboxRelayDelay has
	// passed without the committing handler sending them.
	OutboxRelayDelay  time.Duration `env:"OUTBOX_RELAY_DELAY" envDefault:"10s"`
	OutboxMaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"20"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"transactions-projection"`
}

// Enabled reports whether a broker list is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type S3Config struct {
	Region          string `env:"REGION" envDefault:"eu-south-1"`
	Bucket          string `env:"BUCKET"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

var fiscalCodePattern = regexp.MustCompile(`^\d{11}$`)

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PaymentTokenValidity <= 0 {
		errs = append(errs, errors.New("PAYMENT_TOKEN_VALIDITY must be positive"))
	}
	if c.Closure.SafetyOffset >= c.PaymentTokenValidity {
		errs = append(errs, errors.New("CLOSURE_SAFETY_OFFSET must be shorter than PAYMENT_TOKEN_VALIDITY"))
	}
	if c.Closure.RetryInterval <= 0 {
		errs = append(errs, errors.New("CLOSURE_RETRY_INTERVAL must be positive"))
	}
	if c.Closure.MaxAttempts < 0 {
		errs = append(errs, errors.New("CLOSURE_MAX_ATTEMPTS must not be negative"))
	}
	if c.ActivationFanout < 1 {
		errs = append(errs, errors.New("ACTIVATION_FANOUT must be at least 1"))
	}
	if !fiscalCodePattern.MatchString(c.Nodo.IssuerFiscalCode) {
		errs = append(errs, fmt.Errorf("NODO_ISSUER_FISCAL_CODE %q must be 11 digits", c.Nodo.IssuerFiscalCode))
	}
	if c.Queue.MaxDeliveries < 1 {
		errs = append(errs, errors.New("QUEUE_MAX_DELIVERIES must be at least 1"))
	}
	if c.Queue.OutboxMaxAttempts < 1 {
		errs = append(errs, errors.New("QUEUE_OUTBOX_MAX_ATTEMPTS must be at least 1"))
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	return errors.Join(errs...)
}

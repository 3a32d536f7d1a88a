package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	Port          string
	GinMode       string
	LogLevel      string
	StorageDriver string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	JWTSecret  string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	DelayExchange   string
	MaxPriority     int

	CORSAllowOrigins []string

	Currency              currency.Unit
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	ServiceFee            decimal.Decimal
	PaymentWindow         time.Duration
	PaymentSweepInterval  time.Duration

	BankName          string
	BankAccountNumber string
	BankAccountName   string
}

// LoadConfig reads the environment, after loading a .env file when one exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StorageDriver: getEnv("STORAGE_DRIVER", StorageMySQL),

		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "harvest"),
		JWTSecret:  getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		DelayExchange:   getEnv("DELAY_EXCHANGE", "delay_exchange"),
		MaxPriority:     10,

		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),

		BankName:          getEnv("BANK_NAME", "Bank Mandiri"),
		BankAccountNumber: getEnv("BANK_ACCOUNT_NUMBER", "1234567890"),
		BankAccountName:   getEnv("BANK_ACCOUNT_NAME", "Farm Market"),
	}

	var err error

	if cfg.Currency, err = currency.ParseISO(getEnv("CURRENCY", "IDR")); err != nil {
		return nil, fmt.Errorf("CURRENCY: %w", err)
	}
	if cfg.DeliveryFee, err = getEnvDecimal("DELIVERY_FEE", "15000"); err != nil {
		return nil, err
	}
	if cfg.FreeDeliveryThreshold, err = getEnvDecimal("FREE_DELIVERY_THRESHOLD", "100000"); err != nil {
		return nil, err
	}
	if cfg.ServiceFee, err = getEnvDecimal("SERVICE_FEE", "2000"); err != nil {
		return nil, err
	}
	if cfg.PaymentWindow, err = getEnvDuration("PAYMENT_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PaymentSweepInterval, err = getEnvDuration("PAYMENT_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if c.StorageDriver != StorageMySQL && c.StorageDriver != StorageMemory {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMySQL, StorageMemory, c.StorageDriver)
	}
	if c.PaymentWindow <= 0 {
		return fmt.Errorf("PAYMENT_WINDOW must be positive")
	}
	if c.PaymentSweepInterval <= 0 {
		return fmt.Errorf("PAYMENT_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"settlement/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Ledger   LedgerConfig
	Payout   PayoutConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	UseHTTPS        bool
	CertFile        string
	KeyFile         string
	ShutdownTimeout time.Duration
	RateLimit       float64 // запросов в секунду на IP, 0 = без лимита
	RateBurst       int
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

// RedisConfig - pub/sub уведомлений и резервирование UTXO.
// Пустой Addr отключает Redis.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	NotifyChannel  string
	ReservationTTL time.Duration
}

// LedgerConfig - JSON-RPC узел блокчейна
type LedgerConfig struct {
	URL           string
	User          string
	Password      string
	Network       string // mainnet | testnet | regtest
	Timeout       time.Duration
	RateLimit     float64
	RetryAttempts int
}

// PayoutConfig - параметры выплат ICO инвесторам
type PayoutConfig struct {
	Enabled       bool
	SourceAddress string
	SourceWIF     string // может быть зашифрован (enc:...)
	Fee           int64
	Threshold     int64 // выплаты от этой суммы идут на ручную проверку
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	InternalTokenHash string // bcrypt хеш токена внутренних сервисов
	SecretsKey        string // ключ AES-256 для значений enc:...
	AllowedOrigins    []string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:        getEnvAsBool("USE_HTTPS", false),
			CertFile:        getEnv("CERT_FILE", ""),
			KeyFile:         getEnv("KEY_FILE", ""),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			RateLimit:       getEnvAsFloat("HTTP_RATE_LIMIT", 20),
			RateBurst:       getEnvAsInt("HTTP_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "settlement"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			NotifyChannel:  getEnv("REDIS_NOTIFY_CHANNEL", "notifications"),
			ReservationTTL: getEnvAsDuration("UTXO_RESERVATION_TTL", 10*time.Minute),
		},
		Ledger: LedgerConfig{
			URL:           getEnv("LEDGER_URL", "http://localhost:18332"),
			User:          getEnv("LEDGER_USER", ""),
			Password:      getEnv("LEDGER_PASSWORD", ""),
			Network:       getEnv("LEDGER_NETWORK", "testnet"),
			Timeout:       getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
			RateLimit:     getEnvAsFloat("LEDGER_RATE_LIMIT", 10),
			RetryAttempts: getEnvAsInt("LEDGER_RETRY_ATTEMPTS", 3),
		},
		Payout: PayoutConfig{
			Enabled:       getEnvAsBool("PAYOUT_ENABLED", true),
			SourceAddress: getEnv("PAYOUT_SOURCE_ADDRESS", ""),
			SourceWIF:     getEnv("PAYOUT_SOURCE_WIF", ""),
			Fee:           getEnvAsInt64("PAYOUT_FEE", 3000),
			Threshold:     getEnvAsInt64("PAYOUT_THRESHOLD", 100*100000000),
		},
		Security: SecurityConfig{
			InternalTokenHash: getEnv("INTERNAL_TOKEN_HASH", ""),
			SecretsKey:        getEnv("SECRETS_KEY", ""),
			AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	if err := cfg.validatePayout(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT cannot be negative, got %v", c.Server.RateLimit)
	}

	if c.Ledger.Timeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive, got %v", c.Ledger.Timeout)
	}

	if c.Ledger.RetryAttempts < 1 || c.Ledger.RetryAttempts > 10 {
		return fmt.Errorf("LEDGER_RETRY_ATTEMPTS must be between 1 and 10, got %d", c.Ledger.RetryAttempts)
	}

	if c.Ledger.RateLimit <= 0 {
		return fmt.Errorf("LEDGER_RATE_LIMIT must be positive, got %v", c.Ledger.RateLimit)
	}

	switch c.Ledger.Network {
	case "mainnet", "testnet", "regtest":
	default:
		return fmt.Errorf("LEDGER_NETWORK must be mainnet, testnet or regtest, got %q", c.Ledger.Network)
	}

	if c.Redis.ReservationTTL <= 0 {
		return fmt.Errorf("UTXO_RESERVATION_TTL must be positive, got %v", c.Redis.ReservationTTL)
	}

	return nil
}

// validatePayout проверяет параметры выплат и расшифровывает ключ источника
func (c *Config) validatePayout() error {
	if c.Payout.Fee < 0 {
		return fmt.Errorf("PAYOUT_FEE cannot be negative, got %d", c.Payout.Fee)
	}

	if c.Payout.Threshold <= 0 {
		return fmt.Errorf("PAYOUT_THRESHOLD must be positive, got %d", c.Payout.Threshold)
	}

	if !c.Payout.Enabled {
		return nil
	}

	if c.Payout.SourceAddress == "" || c.Payout.SourceWIF == "" {
		return fmt.Errorf("PAYOUT_SOURCE_ADDRESS and PAYOUT_SOURCE_WIF are required when PAYOUT_ENABLED=true")
	}

	wif, err := crypto.ResolveSecret(c.Payout.SourceWIF, c.Security.SecretsKey)
	if err != nil {
		return fmt.Errorf("PAYOUT_SOURCE_WIF: %w", err)
	}
	c.Payout.SourceWIF = wif

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

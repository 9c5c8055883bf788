// Пакет config - загрузка и валидация конфигурации Data Mapping Service
// из переменных окружения (и опционального .env файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Минимальная длина секрета подписи JWT (HS256).
const minJWTSecretLen = 32

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённые CORS origins (пусто - CORS отключён)
	CORSOrigins []string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула соединений
	DBMaxConns int

	// --- JWT ---

	// Секрет подписи HS256
	JWTSecret string
	// Issuer выпускаемых токенов
	JWTIssuer string
	// Время жизни access token
	JWTTTL time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// --- Пароли и кэш ---

	// Стоимость bcrypt
	BcryptCost int
	// Размер LRU-кэша публичных профилей
	UserCacheSize int
	// TTL записи LRU-кэша публичных профилей
	UserCacheTTL time.Duration

	// --- topologymetrics ---

	// Группа в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если в рабочем каталоге есть .env, он читается первым; уже заданные
// переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DM_PORT - порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DM_LOG_LEVEL - уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT - формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DM_CORS_ORIGINS - список origins через запятую (опционально)
	cfg.CORSOrigins = parseCSV(getEnvDefault("DM_CORS_ORIGINS", ""))

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("DM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("DM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("DM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// DM_DB_HOST - обязательный
	cfg.DBHost, err = getEnvRequired("DM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DM_DB_PORT - порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_PORT: %w", err)
	}

	// DM_DB_NAME - обязательный
	cfg.DBName, err = getEnvRequired("DM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DM_DB_USER - обязательный
	cfg.DBUser, err = getEnvRequired("DM_DB_USER")
	if err != nil {
		return nil, err
	}

	// DM_DB_PASSWORD - обязательный
	cfg.DBPassword, err = getEnvRequired("DM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DM_DB_SSL_MODE - режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// DM_DB_MAX_CONNS - размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("DM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("DM_DB_MAX_CONNS: значение должно быть > 0")
	}

	// --- JWT ---

	// DM_JWT_SECRET - обязательный, не короче 32 байт
	cfg.JWTSecret, err = getEnvRequired("DM_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, fmt.Errorf("DM_JWT_SECRET: длина секрета должна быть не меньше %d байт", minJWTSecretLen)
	}

	// DM_JWT_ISSUER - issuer токенов (по умолчанию data-mapping)
	cfg.JWTIssuer = getEnvDefault("DM_JWT_ISSUER", "data-mapping")

	// DM_JWT_TTL - время жизни токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("DM_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("DM_JWT_TTL: значение должно быть > 0")
	}

	// DM_JWT_LEEWAY - отклонение часов (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("DM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_JWT_LEEWAY: %w", err)
	}

	// --- Пароли и кэш ---

	// DM_BCRYPT_COST - стоимость bcrypt (по умолчанию 12)
	cfg.BcryptCost, err = getEnvInt("DM_BCRYPT_COST", 12)
	if err != nil {
		return nil, fmt.Errorf("DM_BCRYPT_COST: %w", err)
	}
	if cfg.BcryptCost < 10 || cfg.BcryptCost > 14 {
		return nil, fmt.Errorf("DM_BCRYPT_COST: значение %d вне допустимого диапазона 10-14", cfg.BcryptCost)
	}

	// DM_USER_CACHE_SIZE - размер кэша профилей (по умолчанию 1000)
	cfg.UserCacheSize, err = getEnvInt("DM_USER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("DM_USER_CACHE_SIZE: %w", err)
	}
	if cfg.UserCacheSize < 1 {
		return nil, fmt.Errorf("DM_USER_CACHE_SIZE: значение должно быть > 0")
	}

	// DM_USER_CACHE_TTL - TTL кэша профилей (по умолчанию 1m)
	cfg.UserCacheTTL, err = getEnvDuration("DM_USER_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_USER_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("DM_DEPHEALTH_GROUP", "data-mapping")
	cfg.DephealthCheckInterval, err = getEnvDuration("DM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// DM_SHUTDOWN_TIMEOUT - таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode, c.DBMaxConns,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

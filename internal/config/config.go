// Пакет config — загрузка и валидация конфигурации Audit Log Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Режимы хранилища записей аудита.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config содержит все параметры конфигурации Audit Log Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения HTTP-запроса
	ReadTimeout time.Duration
	// Таймаут записи HTTP-ответа
	WriteTimeout time.Duration

	// --- Хранилище ---

	// Режим хранилища: postgres (боевой) или memory (dev/тесты)
	Store string

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

	// --- Retention ---

	// Срок хранения записей в днях; записи старше удаляются
	// автоматическим purge
	RetentionDays int
	// Час запуска ежедневного purge (UTC)
	PurgeHour int
	// Минута запуска ежедневного purge (UTC)
	PurgeMinute int

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Claim для групп в JWT
	JWTGroupsClaim string
	// Группы Keycloak, дающие роль admin (через запятую)
	RoleAdminGroups []string

	// --- Кэш записей ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// Время жизни записи в кэше
	CacheTTL time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AL_PORT — порт HTTP-сервера (по умолчанию 8050)
	cfg.Port, err = getEnvInt("AL_PORT", 8050)
	if err != nil {
		return nil, fmt.Errorf("AL_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AL_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// AL_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AL_LOG_LEVEL: %w", err)
	}

	// AL_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AL_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// AL_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 10s)
	cfg.ReadTimeout, err = getEnvDuration("AL_HTTP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AL_HTTP_READ_TIMEOUT: %w", err)
	}

	// AL_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 30s)
	cfg.WriteTimeout, err = getEnvDuration("AL_HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AL_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	// AL_STORE — режим хранилища (по умолчанию postgres)
	cfg.Store = getEnvDefault("AL_STORE", StorePostgres)
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("AL_STORE: недопустимое значение %q, допустимые: postgres, memory", cfg.Store)
	}

	// --- PostgreSQL (обязательны только в режиме postgres) ---

	if cfg.Store == StorePostgres {
		// AL_DB_HOST — обязательный
		cfg.DBHost, err = getEnvRequired("AL_DB_HOST")
		if err != nil {
			return nil, err
		}

		// AL_DB_PORT — порт PostgreSQL (по умолчанию 5432)
		cfg.DBPort, err = getEnvInt("AL_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("AL_DB_PORT: %w", err)
		}

		// AL_DB_NAME — обязательный
		cfg.DBName, err = getEnvRequired("AL_DB_NAME")
		if err != nil {
			return nil, err
		}

		// AL_DB_USER — обязательный
		cfg.DBUser, err = getEnvRequired("AL_DB_USER")
		if err != nil {
			return nil, err
		}

		// AL_DB_PASSWORD — обязательный
		cfg.DBPassword, err = getEnvRequired("AL_DB_PASSWORD")
		if err != nil {
			return nil, err
		}

		// AL_DB_SSL_MODE — режим SSL (по умолчанию disable)
		cfg.DBSSLMode = getEnvDefault("AL_DB_SSL_MODE", "disable")
		validSSLModes := map[string]bool{
			"disable": true, "require": true, "verify-ca": true, "verify-full": true,
		}
		if !validSSLModes[cfg.DBSSLMode] {
			return nil, fmt.Errorf("AL_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	// --- Retention ---

	// AL_RETENTION_DAYS — срок хранения записей (по умолчанию 1095, три года)
	cfg.RetentionDays, err = getEnvInt("AL_RETENTION_DAYS", 1095)
	if err != nil {
		return nil, fmt.Errorf("AL_RETENTION_DAYS: %w", err)
	}
	if cfg.RetentionDays < 1 {
		return nil, fmt.Errorf("AL_RETENTION_DAYS: значение %d должно быть не меньше 1", cfg.RetentionDays)
	}

	// AL_PURGE_TIME — время ежедневного purge в формате HH:MM UTC (по умолчанию 02:00)
	cfg.PurgeHour, cfg.PurgeMinute, err = parsePurgeTime(getEnvDefault("AL_PURGE_TIME", "02:00"))
	if err != nil {
		return nil, fmt.Errorf("AL_PURGE_TIME: %w", err)
	}

	// --- Keycloak / JWT ---

	// AL_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("AL_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// AL_KEYCLOAK_REALM — realm (по умолчанию auditlog)
	cfg.KeycloakRealm = getEnvDefault("AL_KEYCLOAK_REALM", "auditlog")

	// AL_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("AL_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// AL_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("AL_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// AL_JWT_GROUPS_CLAIM — claim для групп (по умолчанию groups)
	cfg.JWTGroupsClaim = getEnvDefault("AL_JWT_GROUPS_CLAIM", "groups")

	// AL_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "auditlog-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("AL_ROLE_ADMIN_GROUPS", "auditlog-admins"))

	// --- Кэш записей ---

	// AL_CACHE_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("AL_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("AL_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("AL_CACHE_SIZE: значение %d должно быть не меньше 1", cfg.CacheSize)
	}

	// AL_CACHE_TTL — время жизни записи в кэше (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("AL_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AL_CACHE_TTL: %w", err)
	}

	// --- Graceful shutdown ---

	// AL_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("AL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AL_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
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

// parsePurgeTime разбирает время в формате HH:MM (UTC) на час и минуту.
func parsePurgeTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("некорректное время %q (ожидается формат HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("некорректный час в %q (допустимо 00-23)", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("некорректная минута в %q (допустимо 00-59)", s)
	}
	return hour, minute, nil
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

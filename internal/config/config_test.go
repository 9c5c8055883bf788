package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"DM_DB_HOST":     "localhost",
		"DM_DB_NAME":     "datamapping",
		"DM_DB_USER":     "datamapping",
		"DM_DB_PASSWORD": "secret",
		"DM_JWT_SECRET":  "0123456789abcdef0123456789abcdef",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if cfg.JWTIssuer != "data-mapping" {
		t.Errorf("JWTIssuer = %q, ожидается data-mapping", cfg.JWTIssuer)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v, ожидается 24h", cfg.JWTTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, ожидается 12", cfg.BcryptCost)
	}
	if cfg.UserCacheSize != 1000 {
		t.Errorf("UserCacheSize = %d, ожидается 1000", cfg.UserCacheSize)
	}
	if cfg.UserCacheTTL != time.Minute {
		t.Errorf("UserCacheTTL = %v, ожидается 1m", cfg.UserCacheTTL)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins = %v, ожидается пустой список", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_PORT"] = "3001"
	envs["DM_LOG_LEVEL"] = "debug"
	envs["DM_LOG_FORMAT"] = "text"
	envs["DM_DB_SSL_MODE"] = "require"
	envs["DM_JWT_TTL"] = "1h"
	envs["DM_BCRYPT_COST"] = "10"
	envs["DM_CORS_ORIGINS"] = "http://localhost:3000, https://app.example.com"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 3001 {
		t.Errorf("Port = %d, ожидается 3001", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.JWTTTL != time.Hour {
		t.Errorf("JWTTTL = %v, ожидается 1h", cfg.JWTTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, ожидается 10", cfg.BcryptCost)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v, ожидается 2 элемента", cfg.CORSOrigins)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"нет хоста БД", "DM_DB_HOST", "", "DM_DB_HOST"},
		{"нет секрета", "DM_JWT_SECRET", "", "DM_JWT_SECRET"},
		{"короткий секрет", "DM_JWT_SECRET", "short", "DM_JWT_SECRET"},
		{"порт не число", "DM_PORT", "abc", "DM_PORT"},
		{"неверный формат логов", "DM_LOG_FORMAT", "xml", "DM_LOG_FORMAT"},
		{"неверный уровень логов", "DM_LOG_LEVEL", "trace", "DM_LOG_LEVEL"},
		{"неверный ssl mode", "DM_DB_SSL_MODE", "prefer", "DM_DB_SSL_MODE"},
		{"bcrypt cost вне диапазона", "DM_BCRYPT_COST", "4", "DM_BCRYPT_COST"},
		{"неверная длительность", "DM_JWT_TTL", "forever", "DM_JWT_TTL"},
		{"нулевой TTL", "DM_JWT_TTL", "0s", "DM_JWT_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ошибка = %q, ожидалось упоминание %s", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBName: "dm", DBUser: "u", DBPassword: "p",
		DBSSLMode: "disable", DBMaxConns: 4,
	}
	want := "host=db port=5433 dbname=dm user=u password=p sslmode=disable pool_max_conns=4"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
	if got := cfg.DatabaseURL(); got != "postgres://db:5433/dm" {
		t.Errorf("DatabaseURL() = %q", got)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("parseCSV = %v, ожидается [a b]", got)
	}
	if parseCSV("") != nil {
		t.Error("parseCSV(\"\") должен вернуть nil")
	}
}

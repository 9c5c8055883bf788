// Точка входа Data Mapping Service - реестр записей об обработке персональных данных.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и API handlers, запускает topologymetrics
// и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/smartlt/criclabs-assignment/internal/api/handlers"
	"github.com/smartlt/criclabs-assignment/internal/api/middleware"
	"github.com/smartlt/criclabs-assignment/internal/auth"
	"github.com/smartlt/criclabs-assignment/internal/config"
	"github.com/smartlt/criclabs-assignment/internal/database"
	"github.com/smartlt/criclabs-assignment/internal/repository"
	"github.com/smartlt/criclabs-assignment/internal/server"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

func main() {
	// 1. Загрузка конфигурации (.env + переменные окружения)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Data Mapping Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	userRepo := repository.NewUserRepository(pool)
	recordRepo := repository.NewRecordRepository(pool)

	// 6. Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, cfg.JWTLeeway)
	userCache := service.NewUserCache(cfg.UserCacheSize, cfg.UserCacheTTL)
	authSvc := service.NewAuthService(userRepo, tokens, userCache, cfg.BcryptCost, logger)
	recordSvc := service.NewRecordService(recordRepo, userCache, logger)

	// 7. topologymetrics - мониторинг PostgreSQL
	dephealthSvc, err := service.NewDephealthService(
		"data-mapping",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 8. API handlers и JWT middleware
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(healthHandler, authSvc, recordSvc, logger)
	jwtAuth := middleware.NewJWTAuth(authSvc, logger)

	// 9. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Data Mapping Service остановлен")
}

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/api"
	"github.com/hayoung-dev/gptfolio-backend/internal/controller"
	"github.com/hayoung-dev/gptfolio-backend/internal/migrations"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage/postgres"
	storageredis "github.com/hayoung-dev/gptfolio-backend/internal/storage/redis"
	"github.com/hayoung-dev/gptfolio-backend/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	storage := postgres.NewStorage(db)
	denylist := storageredis.NewTokenDenylist(redisClient)

	tokenService := service.NewTokenService(util.NewTokenConfig(), denylist)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	authService := service.NewAuthService(storage, tokenService, webhookService, logger)
	userService := service.NewUserService(storage, logger)

	c := controller.NewController(logger, authService, userService)

	apiServer := api.NewAPI(c, tokenService, redisClient, util.NewRateLimiterConfig(), util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
	"github.com/hayoung-dev/gptfolio-backend/internal/util"
)

const bearerPrefix = "Bearer "

// BearerAuthMiddleware validates the access token (signature, expiry,
// denylist) and stores the user id and the raw token in the echo context.
// The rejection body is generic; the actual reason only goes to the log.
func BearerAuthMiddleware(tokenService *service.TokenService, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" || !strings.HasPrefix(header, bearerPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token missing")
			}
			token := strings.TrimPrefix(header, bearerPrefix)

			userID, err := tokenService.ValidateAccessTokenAndGetUserID(c.Request().Context(), token)
			if err != nil {
				log.Warnw("access token rejected", "error", err, "uri", c.Request().RequestURI)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(models.MwUserIDKey, userID)
			c.Set(models.MwTokenKey, token)

			return next(c)
		}
	}
}

// RateLimiterMiddleware is a fixed-window limiter keyed by client IP.
// Exceeding the window limit blocks the IP for the configured block time.
func RateLimiterMiddleware(rdb *redis.Client, cfg *util.RateLimiterConfig, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ip := c.RealIP()

			blockKey := fmt.Sprintf("ratelimit:block:%s", ip)
			blocked, err := rdb.Exists(ctx, blockKey).Result()
			if err != nil {
				log.Errorw("rate limiter redis error", "error", err)
				return next(c)
			}
			if blocked > 0 {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			countKey := fmt.Sprintf("ratelimit:count:%s", ip)
			pipe := rdb.Pipeline()
			incr := pipe.Incr(ctx, countKey)
			pipe.Expire(ctx, countKey, cfg.Interval)
			if _, err := pipe.Exec(ctx); err != nil {
				log.Errorw("rate limiter redis error", "error", err)
				return next(c)
			}

			if incr.Val() > int64(cfg.Limit) {
				if err := rdb.Set(ctx, blockKey, "blocked", cfg.BlockTime).Err(); err != nil {
					log.Errorw("rate limiter redis error", "error", err)
				}
				log.Warnw("client rate limited", "ip", ip)
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}

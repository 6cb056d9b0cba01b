package api

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	oapimiddleware "github.com/oapi-codegen/echo-middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/controller"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
	"github.com/hayoung-dev/gptfolio-backend/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	tokenService    *service.TokenService
	redisClient     *redis.Client
	rateLimiterCfg  *util.RateLimiterConfig
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

func NewAPI(
	c *controller.Controller,
	tokenService *service.TokenService,
	redisClient *redis.Client,
	rateLimiterCfg *util.RateLimiterConfig,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) *API {
	e := echo.New()

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	return &API{
		server:          e,
		controller:      c,
		tokenService:    tokenService,
		redisClient:     redisClient,
		rateLimiterCfg:  rateLimiterCfg,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))
	a.RegisterRoutes()

	a.ListenGracefulShutdown(ctx)
}

// RegisterRoutes wires the HTTP surface. The OpenAPI validator guards the
// JSON endpoints; /ping stays outside of it.
func (a *API) RegisterRoutes() {
	swagger, err := controller.GetSwagger()
	if err != nil {
		a.log.Fatalf("Failed to load OpenAPI specification: %v", err)
	}
	swagger.Servers = nil

	g := a.server.Group("")
	g.Use(oapimiddleware.OapiRequestValidator(swagger))

	auth := g.Group("/auth")
	if a.redisClient != nil {
		auth.Use(RateLimiterMiddleware(a.redisClient, a.rateLimiterCfg, a.log))
	}
	auth.POST("/login", a.controller.Login)
	auth.POST("/refresh", a.controller.Refresh)
	auth.POST("/logout", a.controller.Logout, BearerAuthMiddleware(a.tokenService, a.log))

	g.POST("/user/sign_up", a.controller.SignUp)

	a.server.GET("/ping", a.controller.CheckServer)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Errorf("shutdown: %v", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	longShutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(a.gracefulTimeout)
		longShutdown <- struct{}{}
	}()

	select {
	case <-shutdownCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			a.log.Info("server shutdown completed")
		} else {
			a.log.Errorf("server shutdown: %v", ctx.Err())
		}
	case <-longShutdown:
		a.log.Infof("finished")
	}
}

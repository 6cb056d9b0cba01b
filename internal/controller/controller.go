package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
	userService *service.UserService
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService, userService *service.UserService) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		userService: userService,
	}
}

// (POST /auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	accessToken, refreshToken, err := c.authService.Login(ctx.Request().Context(), req.Username, req.Password, clientMetadata(ctx))
	if err != nil {
		return err
	}

	setRefreshCookie(ctx, refreshToken)

	return ctx.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}

// (POST /auth/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(models.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	accessToken, newRefreshToken, err := c.authService.Regenerate(ctx.Request().Context(), cookie.Value, clientMetadata(ctx))
	if err != nil {
		return err
	}

	setRefreshCookie(ctx, newRefreshToken)

	return ctx.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}

// (POST /auth/logout). The bearer check happens in middleware; by the time
// we are here the access token in the context is valid.
func (c *Controller) Logout(ctx echo.Context) error {
	cookie, err := ctx.Cookie(models.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	accessToken, _ := ctx.Get(models.MwTokenKey).(string)

	if err := c.authService.Logout(ctx.Request().Context(), cookie.Value, accessToken); err != nil {
		return err
	}

	clearRefreshCookie(ctx)

	return ctx.JSON(http.StatusOK, models.LogoutResponse{Detail: "Logged out successfully"})
}

// (POST /user/sign_up).
func (c *Controller) SignUp(ctx echo.Context) error {
	var req models.SignUpRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}

	user, err := c.userService.Register(ctx.Request().Context(), req)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, models.SignUpResponse{
		ID:    user.ID,
		Email: user.Email,
	})
}

// (GET /ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

func clientMetadata(ctx echo.Context) models.UserMetadata {
	return models.UserMetadata{
		UserAgent: ctx.Request().UserAgent(),
		IPAddress: ctx.RealIP(),
	}
}

// The refresh cookie is a session cookie: the server-side expires_at is the
// only authority on token lifetime.
func setRefreshCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.RefreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

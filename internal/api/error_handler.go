package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/controller"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
)

// ErrorHandler maps service failures to transport responses. Refresh-token
// failures all collapse to one generic 401 body: which check failed
// (missing row, fingerprint, expiry) is logged but never surfaced.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeJSON(log, c, http.StatusUnauthorized, "invalid credentials")
			return
		case isRefreshTokenError(err):
			log.Warnw("refresh token rejected", "error", err, "uri", c.Request().RequestURI)
			writeJSON(log, c, http.StatusUnauthorized, "invalid refresh token")
			return
		case errors.Is(err, service.ErrDuplicateEmail):
			writeJSON(log, c, http.StatusBadRequest, "email already registered")
			return
		}

		he, ok := err.(*echo.HTTPError)
		if ok {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			msg, isString := he.Message.(string)
			if !isString {
				msg = http.StatusText(he.Code)
			}
			writeJSON(log, c, he.Code, msg)
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		writeJSON(log, c, http.StatusInternalServerError, "internal server error")
	}
}

func isRefreshTokenError(err error) bool {
	return errors.Is(err, service.ErrRefreshTokenNotFound) ||
		errors.Is(err, service.ErrFingerprintMismatch) ||
		errors.Is(err, service.ErrRefreshTokenExpired)
}

func writeJSON(log *zap.SugaredLogger, c echo.Context, status int, reason string) {
	if err := c.JSON(status, controller.ErrorResponse{Reason: reason}); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}

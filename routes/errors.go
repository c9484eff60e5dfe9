package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/biz/syncer"
	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/pkg/log"
)

// errorStatus 领域错误到 HTTP 状态码
func errorStatus(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, gateway.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncer.ErrSyncInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail 输出 {success: false, error}, 5xx 记错误日志
func fail(c echo.Context, err error) error {
	code := errorStatus(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	logger := log.LoggerWith(c.Request().Context(), xlog).WithError(err)
	if code >= http.StatusInternalServerError {
		logger.Errorf("%s %s 失败", c.Request().Method, c.Path())
	} else {
		logger.Infof("%s %s 失败", c.Request().Method, c.Path())
	}
	return c.JSON(code, echo.Map{"success": false, "error": msg})
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

package serve

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler 所有未处理的错误统一输出 {success: false, error: ...}
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he, ok := err.(*echo.HTTPError)
	if ok {
		if herr, ok := he.Internal.(*echo.HTTPError); ok {
			he = herr
		}
	} else {
		he = &echo.HTTPError{
			Code:    http.StatusInternalServerError,
			Message: err.Error(),
		}
	}

	var message string
	switch m := he.Message.(type) {
	case string:
		message = m
	case error:
		message = m.Error()
	default:
		message = http.StatusText(he.Code)
	}

	reqid := c.Response().Header().Get(echo.HeaderXRequestID)
	xlog.WithField("reqid", reqid).WithError(err).
		Infof("HTTP服务错误: %s %s", c.Request().Method, c.Request().URL.String())

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, echo.Map{"success": false, "error": message})
	}
	if err != nil {
		xlog.WithError(err).Warn("写错误响应失败")
	}
}

package serve

import (
	"fmt"
	"time"

	xlogctx "github.com/cometwk/standards/pkg/log"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

var xlog = logrus.WithField("module", "server")

// sessionMiddleware 把 reqid 放入 request context, 供 orm/业务日志使用
func sessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqid := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(xlogctx.WithReqID(req.Context(), reqid)))

			now := time.Now()
			c.Response().Before(func() {
				// 下载大文件/全量同步可能很慢, 超过 3 秒记录一条警告
				if elapsed := time.Since(now).Seconds(); elapsed > 3 {
					xlog.WithField("reqid", reqid).Warnf("%s %s 耗时 %f 秒", req.Method, req.URL.Path, elapsed)
				}
			})
			return next(c)
		}
	}
}

func httpLogMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			err := next(c)

			reqid := req.Header.Get(echo.HeaderXRequestID)
			if reqid == "" {
				reqid = res.Header().Get(echo.HeaderXRequestID)
			}

			latency := time.Since(start).Milliseconds()
			fields := logrus.Fields{
				"module":        "httplog",
				"latency":       latency,
				"latency_human": fmt.Sprintf("%dms", latency),
				"remote_ip":     c.RealIP(),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"route":         c.Path(),
				"reqid":         reqid,
				"status":        res.Status,
				"bytes_out":     res.Size,
			}
			if err != nil {
				fields["error"] = err.Error()
				if he, ok := err.(*echo.HTTPError); ok {
					fields["status"] = he.Code
				}
			}
			xlog.WithFields(fields).Info("request")
			return err
		}
	}
}

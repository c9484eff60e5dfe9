// Package routes exposes the resolver and sync operations over HTTP.
package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/biz/syncer"
	"github.com/cometwk/standards/pkg/cache"
	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/pkg/metrics"
)

var xlog = logrus.WithField("module", "routes")

// Deps 启动时构造一次, 所有 handler 共享
type Deps struct {
	Config  *config.Config
	Gateway *gateway.Gateway
	Cache   *cache.LocalCache
	Store   store.Store
	Sync    *syncer.Service
	Runner  *syncer.Runner
}

type handler struct {
	*Deps
}

func Attach(e *echo.Echo, deps *Deps) {
	h := &handler{deps}

	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/list", h.list)
	api.GET("/file/:id", h.file)
	api.GET("/download/:id", h.download)
	api.GET("/search", h.search)

	api.GET("/cache/stats", h.cacheStats)
	api.POST("/cache/clear", h.cacheClear)

	api.POST("/sync/standard/:id", h.syncStandard)
	api.POST("/sync/all", h.syncAll)
	api.GET("/sync/status/:syncId", h.syncStatus)
	api.GET("/sync/history", h.syncHistory)
	api.POST("/sync/trigger", h.syncTrigger)
}

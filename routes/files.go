package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *handler) health(c echo.Context) error {
	cfg := h.Config
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"status":  "healthy",
		"service": cfg.ServiceName,
		"version": cfg.Version,
		"config": echo.Map{
			"backend":          cfg.Backend,
			"allowedFolders":   len(cfg.AllowedFolders),
			"cacheTtlHours":    cfg.CacheTTL.Hours(),
			"cacheMaxSizeMB":   cfg.CacheMaxBytes / (1024 * 1024),
			"autoSyncEnabled":  cfg.AutoSyncEnabled,
			"autoSyncInterval": cfg.AutoSyncInterval.Hours(),
		},
	})
}

func (h *handler) list(c echo.Context) error {
	files, err := h.Gateway.List(c.Request().Context(), c.QueryParam("folderId"), c.QueryParam("query"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(files), "files": files})
}

func (h *handler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return fail(c, badRequest(`query parameter "q" is required`))
	}
	files, err := h.Gateway.List(c.Request().Context(), "", q)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(files), "files": files})
}

// file 元数据, 经过缓存
func (h *handler) file(c echo.Context) error {
	f, err := h.Cache.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "file": f})
}

// download 返回缓存文件描述, 不返回文件内容
func (h *handler) download(c echo.Context) error {
	useCache := !strings.EqualFold(c.QueryParam("cache"), "false")
	res, err := h.Cache.Download(c.Request().Context(), c.Param("id"), useCache)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"fileName": res.FileName,
		"fileId":   res.FileID,
		"filePath": res.FilePath,
		"cached":   res.Cached,
		"size":     res.Size,
		"mimeType": res.MimeType,
	})
}

func (h *handler) cacheStats(c echo.Context) error {
	stats, err := h.Cache.Stats()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "cache": stats})
}

func (h *handler) cacheClear(c echo.Context) error {
	removed, err := h.Cache.Clear()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "removed": removed})
}

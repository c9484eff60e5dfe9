package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/biz/syncer"
)

// syncStandard 下载阶段的错误 (403/404/500) 直接返回;
// 进入同步后即使 FAILED 也返回 200, 以 sync.status 区分
func (h *handler) syncStandard(c echo.Context) error {
	stats, err := h.Sync.SyncFile(c.Request().Context(), c.Param("id"), true)
	if stats == nil {
		return fail(c, err)
	}
	out := echo.Map{"success": err == nil, "sync": stats}
	if err != nil {
		out["error"] = err.Error()
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) syncAll(c echo.Context) error {
	mode := syncer.ParseMode(c.QueryParam("mode"))
	report, err := h.Runner.RunAll(c.Request().Context(), mode)
	if report == nil {
		return fail(c, err)
	}
	out := echo.Map{
		"success": err == nil,
		"syncId":  report.SyncID,
		"status":  report.Status,
		"summary": report.Summary,
		"results": report.Results,
	}
	if err != nil {
		out["error"] = err.Error()
		return c.JSON(http.StatusInternalServerError, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) syncStatus(c echo.Context) error {
	rec, err := h.Store.GetHistory(c.Request().Context(), c.Param("syncId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, echo.NewHTTPError(http.StatusNotFound, "sync id not found"))
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "sync": rec})
}

func (h *handler) syncHistory(c echo.Context) error {
	type Query struct {
		Limit    int    `query:"limit" validate:"gte=0"`
		Status   string `query:"status" validate:"omitempty,oneof=COMPLETED PARTIAL FAILED IN_PROGRESS"`
		SyncType string `query:"syncType" validate:"omitempty,oneof=SINGLE_FILE FULL INCREMENTAL"`
	}
	var q Query
	if err := c.Bind(&q); err != nil {
		return fail(c, err)
	}
	if err := c.Validate(&q); err != nil {
		return fail(c, err)
	}

	list, err := h.Store.ListHistory(c.Request().Context(), store.HistoryFilter{
		Status:   q.Status,
		SyncType: q.SyncType,
		Limit:    q.Limit,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(list), "history": list})
}

func (h *handler) syncTrigger(c echo.Context) error {
	mode := syncer.ParseMode(c.QueryParam("mode"))
	if err := h.Runner.Trigger(mode); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Sync job started in background. Check logs for progress.",
	})
}

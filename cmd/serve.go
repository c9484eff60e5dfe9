package cmd

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/cometwk/standards/biz/syncer"
	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/log"
	"github.com/cometwk/standards/pkg/serve"
	"github.com/cometwk/standards/pkg/task"
	"github.com/cometwk/standards/routes"
)

const cacheCleanupSpec = "@every 1h"

// Serve 启动 HTTP 服务和定时任务, 收到退出信号后返回
func Serve(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.Setup(cfg.LogDir, "standards.log", cfg.LogLevel); err != nil {
		return err
	}
	flush, err := log.InitSentry(cfg.SentryDSN, cfg.Version)
	if err != nil {
		xlog.WithError(err).Warn("sentry 初始化失败")
	}

	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		flush()
		return err
	}
	app.OnClose(flush)

	sched, err := newScheduler(app)
	if err != nil {
		app.Close()
		return err
	}
	sched.Start()

	server := serve.NewEchoServer(cfg.Addr(), func(e *echo.Echo) error {
		routes.Attach(e, app.Deps())
		return nil
	})
	// 先取消同步, 否则 sched.Stop 要等到定时同步跑完
	server.BeforeShutdown(app.Runner.Stop)
	server.BeforeShutdown(sched.Stop)
	server.OnShutdown(app.Close)

	xlog.Infof("%s %s 启动, 监听 %s", cfg.ServiceName, cfg.Version, cfg.Addr())
	return server.Start()
}

func newScheduler(app *App) (*task.Scheduler, error) {
	cfg := app.Config
	sched := task.NewScheduler()

	if cfg.AutoSyncEnabled {
		err := sched.Add(task.Every(cfg.AutoSyncInterval), &task.Job{
			Name: "auto-sync",
			Func: func(ctx context.Context) error {
				report, err := app.Runner.RunAll(ctx, syncer.ModeFull)
				if errors.Is(err, syncer.ErrSyncInProgress) {
					log.LoggerWith(ctx, xlog).Info("已有同步在运行, 跳过本次定时同步")
					return nil
				}
				if report != nil {
					log.LoggerWith(ctx, xlog).Infof("定时同步完成: %s, 成功 %d, 失败 %d, 跳过 %d",
						report.Status, report.Summary.SuccessCount, report.Summary.FailedCount, report.Summary.SkippedCount)
				}
				return err
			},
		})
		if err != nil {
			return nil, err
		}
	} else {
		xlog.Info("自动同步已关闭")
	}

	err := sched.Add(cacheCleanupSpec, &task.Job{
		Name: "cache-cleanup",
		Func: func(ctx context.Context) error {
			_, err := app.Cache.Cleanup()
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

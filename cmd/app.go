package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/biz/syncer"
	"github.com/cometwk/standards/pkg/cache"
	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/routes"
)

var xlog = logrus.WithField("module", "cmd")

const syncLockKey = "standards:sync:lock"

// App 启动时一次性装配好的全部组件
type App struct {
	Config  *config.Config
	Gateway *gateway.Gateway
	Cache   *cache.LocalCache
	Store   store.Store
	Sync    *syncer.Service
	Runner  *syncer.Runner

	closers []func()
}

// NewApp 按配置装配 gateway -> cache -> store -> syncer, 任一步失败都释放已创建的资源
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Gateway = gateway.New(backend, cfg.AllowedFolders)

	app.Cache, err = newCache(app.Gateway, cfg)
	if err != nil {
		return nil, err
	}

	app.Store, err = store.Open(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() { _ = app.Store.Close() })

	var lock syncer.Locker
	if cfg.RedisURL != "" {
		rl, err := syncer.NewRedisLock(cfg.RedisURL, syncLockKey, syncer.DefaultLockTTL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = rl.Close() })
		if err := rl.Ping(ctx); err != nil {
			return nil, errors.Wrap(err, "连接 redis 失败")
		}
		lock = rl
	}

	app.Sync = syncer.NewService(syncer.NewEngine(app.Store), app.Cache, app.Gateway)
	app.Runner = syncer.NewRunner(app.Sync, lock)
	return app, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (gateway.Backend, error) {
	var (
		backend gateway.Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendDrive:
		backend, err = gateway.NewDriveBackend(ctx, cfg.DriveCredentialsFile)
	case config.BackendS3:
		backend, err = gateway.NewS3Backend(ctx, gateway.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case config.BackendMemory:
		xlog.Warn("使用内存文件后端, 仅用于开发调试")
		backend = gateway.NewMemoryBackend()
	default:
		return nil, &config.ConfigError{Key: "GATEWAY_BACKEND", Reason: "unknown backend " + cfg.Backend}
	}
	if err != nil {
		return nil, err
	}
	if cfg.GatewayRPS > 0 {
		backend = gateway.NewRateLimited(backend, cfg.GatewayRPS)
	}
	return backend, nil
}

// src 为 nil 时只能做本地操作 (stats/clear/cleanup)
func newCache(src cache.Source, cfg *config.Config) (*cache.LocalCache, error) {
	return cache.New(src, cache.Options{
		Dir:      cfg.CacheDir,
		TTL:      cfg.CacheTTL,
		MaxBytes: cfg.CacheMaxBytes,
	})
}

func (a *App) Deps() *routes.Deps {
	return &routes.Deps{
		Config:  a.Config,
		Gateway: a.Gateway,
		Cache:   a.Cache,
		Store:   a.Store,
		Sync:    a.Sync,
		Runner:  a.Runner,
	}
}

func (a *App) OnClose(f func()) {
	a.closers = append(a.closers, f)
}

// Close 逆序释放
func (a *App) Close() {
	if a.Runner != nil {
		a.Runner.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

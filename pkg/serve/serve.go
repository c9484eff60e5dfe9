package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cometwk/standards/pkg/env"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

type EchoServer struct {
	engine   *echo.Echo
	addr     string
	initFunc func(e *echo.Echo) error
	// 停止接收请求前调用, 例如取消定时任务和后台同步
	beforeShutdown []func()
	// HTTP 请求处理完之后调用, 例如关闭数据库
	onShutdown []func()
}

func NewEchoServer(addr string, init func(e *echo.Echo) error) *EchoServer {
	return &EchoServer{
		engine:   echo.New(),
		addr:     addr,
		initFunc: init,
	}
}

func (s *EchoServer) BeforeShutdown(f func()) {
	s.beforeShutdown = append(s.beforeShutdown, f)
}

func (s *EchoServer) OnShutdown(f func()) {
	s.onShutdown = append(s.onShutdown, f)
}

// NewEngine 创建带通用中间件的 echo 实例, 测试也复用它
func NewEngine() *echo.Echo {
	engine := echo.New()
	Setup(engine)
	return engine
}

func Setup(engine *echo.Echo) {
	engine.Debug = env.IsDebug()
	engine.HideBanner = true
	engine.HTTPErrorHandler = HTTPErrorHandler
	engine.Logger = &echoLogger{Entry: logrus.WithField("module", "echo")}

	engine.Use(middleware.Recover())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.BodyLimit("10M"))
	engine.Use(middleware.CORS())
	engine.Use(sessionMiddleware())
	engine.Use(httpLogMiddleware())

	engine.Validator = NewCustomValidator()
	engine.Binder = NewCustomBinder()
}

func (s *EchoServer) Start() error {
	engine := s.engine
	Setup(engine)

	// 写操作(同步/清缓存)限速, GET 不限制
	rlconfig := middleware.DefaultRateLimiterConfig
	rlconfig.Store = middleware.NewRateLimiterMemoryStore(20)
	rlconfig.Skipper = func(c echo.Context) bool {
		return c.Request().Method == http.MethodGet
	}
	engine.Use(middleware.RateLimiterWithConfig(rlconfig))

	if s.initFunc != nil {
		if err := s.initFunc(engine); err != nil {
			return fmt.Errorf("初始化失败: %w", err)
		}
	}

	if env.IsDev() {
		printRoutes(engine)
	}

	go startup(engine, s.addr)

	// 捕获系统信号，优雅的退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logrus.Infof("接收到信号 %s", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.shutdown(ctx)
}

// shutdown: beforeShutdown -> 等待进行中的请求 -> onShutdown
func (s *EchoServer) shutdown(ctx context.Context) error {
	for _, f := range s.beforeShutdown {
		f()
	}
	err := s.engine.Shutdown(ctx)
	for _, f := range s.onShutdown {
		f()
	}
	return err
}

// 在单独的 goroutine 中启动 http/2 cleartext 服务
func startup(engine *echo.Echo, bind string) {
	h2s := &http2.Server{
		MaxReadFrameSize:     1024 * 1024 * 5,
		MaxConcurrentStreams: 250,
		IdleTimeout:          10 * time.Second,
	}
	logrus.Printf("HTTP 服务 %d 准备就绪, 监听地址 %s", os.Getpid(), bind)

	if err := engine.StartH2CServer(bind, h2s); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			engine.Logger.Debug("服务器关闭, 清理...")
			return
		}
		logrus.WithError(err).Fatalf("启动服务器错: %v", err)
	}
}

func printRoutes(engine *echo.Echo) {
	routes := engine.Routes()
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Path < routes[j].Path
	})
	sb := strings.Builder{}
	for i, v := range routes {
		if v.Method == "echo_route_not_found" {
			continue
		}
		arr := strings.Split(v.Name, "/")
		sb.WriteString(fmt.Sprintf("\n%4d %-6s %-42s %s", i, v.Method, v.Path, arr[len(arr)-1]))
	}
	fmt.Printf("%s\n", sb.String())
}

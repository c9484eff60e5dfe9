package log

import (
	"context"
	"os"
	"path"
	"runtime"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// FIELD:
//  - reqid: 请求ID
//  - module: 模块名称
//  - fileId: 远程文件ID
//  - syncId: 同步运行ID

type contextKey string

const reqIDKey = contextKey("reqid")

func WithReqID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, reqIDKey, reqID)
}

func GetReqID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(reqIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerWith attaches the request id carried by ctx.
func LoggerWith(ctx context.Context, logger *logrus.Entry) *logrus.Entry {
	if id := GetReqID(ctx); id != "" {
		return logger.WithField("reqid", id)
	}
	return logger
}

func InitDebug() {
	initlog(false)
}

func InitDebugNoColor() {
	initlog(true)
}

func initlog(noColor bool) {
	color.NoColor = noColor
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetReportCaller(true)
	logrus.SetFormatter(newFormatter())
	nullFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		logrus.Fatalf("无法打开 /dev/null: %v", err)
	}
	logrus.SetOutput(nullFile)
	logrus.AddHook(NewTerminalHook())
}

func newFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		CallerPrettyfier: func(f *runtime.Frame) (function string, file string) {
			function = path.Base(f.Function)
			file = path.Base(f.File) + ":" + strconv.Itoa(f.Line)
			return
		},
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	}
}

// SetLevel 未知级别按 info 处理
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// Setup 终端彩色输出 + 滚动日志文件
func Setup(logdir, logfile, level string) error {
	if err := os.MkdirAll(logdir, 0o755); err != nil {
		return err
	}
	InitDebug()
	logrus.SetOutput(NewLogWriter(path.Join(logdir, logfile)))
	SetLevel(level)
	return nil
}

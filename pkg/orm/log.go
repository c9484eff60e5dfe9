package orm

import (
	"fmt"

	xlogctx "github.com/cometwk/standards/pkg/log"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm/log"
)

const SKIP_LOG_SQL = "_skip_sql_"

// 将 xorm 的日志适配到 logrus
type XormLogrus struct {
	logger *logrus.Entry
}

var _ log.ContextLogger = &XormLogrus{}

func NewXormLogrus(logger *logrus.Entry) *XormLogrus {
	return &XormLogrus{
		logger: logger,
	}
}

func (x *XormLogrus) BeforeSQL(context log.LogContext) {
}

// only invoked when IsShowSQL is true
func (x *XormLogrus) AfterSQL(context log.LogContext) {
	reqid := xlogctx.GetReqID(context.Ctx)
	if reqid == SKIP_LOG_SQL {
		return
	}

	const maxContentLength = 100
	args := make([]any, len(context.Args))
	for i, arg := range context.Args {
		s := fmt.Sprintf("%v", arg)
		if len(s) > maxContentLength {
			s = s[:maxContentLength] + "..."
		}
		args[i] = s
	}

	entry := x.logger.WithField("reqid", reqid)
	if context.Err != nil {
		entry.WithError(context.Err).Warnf("[SQL] %v %v - %v", context.SQL, args, context.ExecuteTime)
		return
	}
	entry.Debugf("[SQL] %v %v - %v", context.SQL, args, context.ExecuteTime)
}

func (x *XormLogrus) Debug(v ...any) {
	x.logger.Debug(v...)
}

func (x *XormLogrus) Debugf(format string, v ...any) {
	x.logger.Debugf(format, v...)
}

func (x *XormLogrus) Error(v ...any) {
	x.logger.Error(v...)
}

func (x *XormLogrus) Errorf(format string, v ...any) {
	x.logger.Errorf(format, v...)
}

func (x *XormLogrus) Info(v ...any) {
	x.logger.Info(v...)
}

func (x *XormLogrus) Infof(format string, v ...any) {
	x.logger.Infof(format, v...)
}

func (x *XormLogrus) Warn(v ...any) {
	x.logger.Warn(v...)
}

func (x *XormLogrus) Warnf(format string, v ...any) {
	x.logger.Warnf(format, v...)
}

func (x *XormLogrus) Level() log.LogLevel {
	switch x.logger.Logger.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		return log.LOG_DEBUG
	case logrus.InfoLevel:
		return log.LOG_INFO
	case logrus.WarnLevel:
		return log.LOG_WARNING
	case logrus.ErrorLevel:
		return log.LOG_ERR
	default:
		return log.LOG_OFF
	}
}

// 级别由 logrus 全局控制
func (x *XormLogrus) SetLevel(l log.LogLevel) {
}

func (x *XormLogrus) ShowSQL(show ...bool) {
}

func (x *XormLogrus) IsShowSQL() bool {
	return true
}

package serve

import (
	"io"

	echoLog "github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"
)

// echoLogger 让 echo 内部日志走 logrus; Debug/Info/... 由 *logrus.Entry 提供
type echoLogger struct {
	*logrus.Entry
}

func (l *echoLogger) Output() io.Writer {
	return l.Entry.Writer()
}

func (l *echoLogger) SetOutput(w io.Writer) {}

func (l *echoLogger) Prefix() string {
	return ""
}

func (l *echoLogger) SetPrefix(p string) {}

func (l *echoLogger) SetHeader(h string) {}

func (l *echoLogger) Level() echoLog.Lvl {
	switch l.Entry.Logger.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		return echoLog.DEBUG
	case logrus.WarnLevel:
		return echoLog.WARN
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return echoLog.ERROR
	default:
		return echoLog.INFO
	}
}

func (l *echoLogger) SetLevel(v echoLog.Lvl) {}

func (l *echoLogger) Printj(j echoLog.JSON) { l.WithFields(logrus.Fields(j)).Info() }
func (l *echoLogger) Debugj(j echoLog.JSON) { l.WithFields(logrus.Fields(j)).Debug() }
func (l *echoLogger) Infoj(j echoLog.JSON)  { l.WithFields(logrus.Fields(j)).Info() }
func (l *echoLogger) Warnj(j echoLog.JSON)  { l.WithFields(logrus.Fields(j)).Warn() }
func (l *echoLogger) Errorj(j echoLog.JSON) { l.WithFields(logrus.Fields(j)).Error() }
func (l *echoLogger) Fatalj(j echoLog.JSON) { l.WithFields(logrus.Fields(j)).Fatal() }
func (l *echoLogger) Panicj(j echoLog.JSON) { l.WithFields(logrus.Fields(j)).Panic() }

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type terminalHook struct {
	out io.Writer
}

// NewTerminalHook 创建一个彩色 stdout 输出终端日志钩子
func NewTerminalHook() *terminalHook {
	return &terminalHook{out: os.Stdout}
}

func (h *terminalHook) Fire(entry *logrus.Entry) error {
	raw, err := entry.String()
	if err != nil {
		return err
	}
	var data map[string]any
	if err := jsoniter.UnmarshalFromString(raw, &data); err != nil {
		_, err = io.WriteString(h.out, raw)
		return err
	}
	_, err = io.WriteString(h.out, formatLine(data))
	return err
}

func (h *terminalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// 格式: LEVEL TIME MODULE : REQID MESSAGE
func formatLine(data map[string]any) string {
	errorMsg, isError := data["error"]
	str := func(k string) string {
		if v, ok := data[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	level := str("level")
	if lvl, err := logrus.ParseLevel(level); err == nil && lvl <= logrus.WarnLevel {
		level = color.RedString("%-7s", level)
	} else {
		level = fmt.Sprintf("%-7s", level)
	}

	ts := str("time")
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		ts = t.Local().Format("01-02 15:04:05.000")
	}

	where := str("module")
	if where == "" {
		where = str("file")
	}

	msg := str("message")
	if isError {
		msg = color.RedString(msg)
	}

	list := []string{level, ts, color.MagentaString("%-12s", where), ":"}
	if id := str("reqid"); id != "" {
		list = append(list, color.MagentaString(id))
	}
	list = append(list, msg)

	var b strings.Builder
	b.WriteString(strings.Join(list, " "))
	b.WriteString("\n")
	if isError && errorMsg != nil {
		b.WriteString("\t")
		b.WriteString(color.RedString(fmt.Sprint(errorMsg)))
		b.WriteString("\n")
	}
	return b.String()
}

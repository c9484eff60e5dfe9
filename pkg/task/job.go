package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/tevino/abool/v2"

	"github.com/cometwk/standards/pkg/log"
)

// 任务执行超时时间（默认 2 小时）
const defaultTimeout = 2 * time.Hour

type Job struct {
	Name    string
	Func    func(ctx context.Context) error
	Timeout time.Duration
	Running abool.AtomicBool

	entry cron.EntryID
}

// Run 实现 cron.Job 接口
func (j *Job) Run() {
	timeout := j.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	j.RunWithContext(ctx)
}

// RunWithContext 带 context 执行任务
func (j *Job) RunWithContext(ctx context.Context) {
	instID := "T" + uuid.NewString()[:8]
	ctx = log.WithReqID(ctx, instID)
	logger := log.LoggerWith(ctx, xlog).WithField("task", j.Name)

	if !j.Running.SetToIf(false, true) {
		logger.Infof("任务'%s'正在执行中，本次调度被忽略", j.Name)
		return
	}
	defer j.Running.UnSet()

	if ctx.Err() != nil {
		logger.WithError(ctx.Err()).Warnf("任务'%s'执行前 context 已取消", j.Name)
		return
	}

	now := time.Now()
	if j.Func == nil {
		logger.Errorf("任务'%s'未定义函数", j.Name)
		return
	}
	if err := j.Func(ctx); err != nil {
		logger.WithError(err).Errorf("任务'%s'执行错", j.Name)
	}

	elapsed := time.Since(now)
	logger.Infof("任务 %s 执行完成，耗时 %s", j.Name, elapsed.Round(time.Millisecond))
}

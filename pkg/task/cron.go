package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var xlog = logrus.WithField("module", "task")

type Scheduler struct {
	lock sync.Mutex
	cron *cron.Cron
	jobs map[string]*Job
}

func NewScheduler() *Scheduler {
	logger := cron.PrintfLogger(xlog)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(
				cron.Recover(logger),
				cron.SkipIfStillRunning(logger),
			),
			cron.WithParser(cron.NewParser(
				cron.SecondOptional|cron.Minute|cron.Hour|
					cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
			)),
		),
		jobs: make(map[string]*Job),
	}
}

// Every 生成固定间隔的调度表达式
func Every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// Add 添加任务, 同名任务只能添加一次
func (s *Scheduler) Add(spec string, job *Job) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("任务'%s'已存在", job.Name)
	}
	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return errors.Wrapf(err, "添加任务'%s'错", job.Name)
	}
	job.entry = id
	s.jobs[job.Name] = job
	xlog.Infof("添加任务'%s' %s", job.Name, spec)
	return nil
}

// Next 任务的下次执行时间
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(job.entry).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度, 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// 运行中的任务
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Wait 等待所有任务退出, 超时返回 false
func (s *Scheduler) Wait(ctx context.Context) bool {
	select {
	case <-s.cron.Stop().Done():
		return true
	case <-ctx.Done():
		return false
	}
}

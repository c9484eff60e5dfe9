package syncer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tevino/abool/v2"

	"github.com/cometwk/standards/pkg/log"
)

// Locker 跨进程互斥, 获取失败 (已被占用) 时返回 ErrSyncInProgress
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Runner 保证同一时刻只有一次全量同步: 进程内用 abool, 多实例部署时再叠加 Locker
type Runner struct {
	svc     *Service
	lock    Locker
	running abool.AtomicBool

	// mu 保证 Stop 之后不再有 wg.Add
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(svc *Service, lock Locker) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{svc: svc, lock: lock, ctx: ctx, cancel: cancel}
}

func (r *Runner) Running() bool { return r.running.IsSet() }

var ErrRunnerStopped = errors.New("sync runner stopped")

// RunAll 同步执行; 已有运行中的同步时返回 ErrSyncInProgress.
// Stop 会取消 ctx, 同步在文件之间退出
func (r *Runner) RunAll(ctx context.Context, mode Mode) (*Report, error) {
	if !r.enter() {
		return nil, ErrRunnerStopped
	}
	defer r.wg.Done()
	if !r.running.SetToIf(false, true) {
		return nil, ErrSyncInProgress
	}
	defer r.running.UnSet()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	return r.run(ctx, mode)
}

// Trigger 在后台启动一次同步并立即返回
func (r *Runner) Trigger(mode Mode) error {
	if !r.enter() {
		return ErrRunnerStopped
	}
	if !r.running.SetToIf(false, true) {
		r.wg.Done()
		return ErrSyncInProgress
	}

	go func() {
		defer r.wg.Done()
		defer r.running.UnSet()

		ctx := log.WithReqID(r.ctx, "sync-"+uuid.NewString()[:8])
		logger := log.LoggerWith(ctx, xlog)
		logger.Infof("后台同步开始 (%s)", mode)
		if _, err := r.run(ctx, mode); err != nil {
			logger.WithError(err).Error("后台同步失败")
		}
	}()
	return nil
}

func (r *Runner) enter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return false
	}
	r.wg.Add(1)
	return true
}

func (r *Runner) run(ctx context.Context, mode Mode) (*Report, error) {
	if r.lock != nil {
		release, err := r.lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return r.svc.SyncAll(ctx, mode)
}

// Stop 取消正在进行的同步 (RunAll 和 Trigger) 并等待其退出, 可重复调用
func (r *Runner) Stop() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

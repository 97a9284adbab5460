package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// RunExecutor 生成流程执行接口
type RunExecutor interface {
	ExecuteRun(ctx context.Context, bookID string) error
}

// Runner 生成任务运行器
// 每本书一次生成流程，协程池限制并发；每个运行中的流程注册取消函数
type Runner struct {
	pool     *ants.Pool
	executor RunExecutor

	runTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	activeCancellations map[string]context.CancelFunc
	cancelMutex         sync.Mutex
}

var ErrRunnerStopped = errors.New("runner is stopped")

// NewRunner 创建运行器
func NewRunner(maxWorkers int, executor RunExecutor) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(100),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	return &Runner{
		pool:                pool,
		executor:            executor,
		runTimeout:          60 * time.Minute,
		ctx:                 ctx,
		cancel:              cancel,
		activeCancellations: make(map[string]context.CancelFunc),
	}, nil
}

// Submit 提交一本书的生成流程
// 流程失败不在此层重试，置失败态由执行方负责
func (r *Runner) Submit(bookID string) error {
	select {
	case <-r.ctx.Done():
		return ErrRunnerStopped
	default:
	}

	err := r.pool.Submit(func() {
		r.executeRun(bookID)
	})
	if err != nil {
		klog.Errorf("提交生成任务到协程池失败: bookID=%s, err=%v", bookID, err)
		return err
	}
	klog.V(6).Infof("生成任务已提交: bookID=%s", bookID)
	return nil
}

func (r *Runner) executeRun(bookID string) {
	defer func() {
		if rec := recover(); rec != nil {
			klog.Errorf("Run panic recovered: bookID=%s, err=%v", bookID, rec)
			r.unregisterCancel(bookID)
		}
	}()

	ctx, cancel := context.WithTimeout(r.ctx, r.runTimeout)
	defer cancel()
	runCtx, manualCancel := context.WithCancel(ctx)
	defer manualCancel()

	r.registerCancel(bookID, manualCancel)
	defer r.unregisterCancel(bookID)

	if err := r.executor.ExecuteRun(runCtx, bookID); err != nil {
		klog.Warningf("生成流程结束（失败）: bookID=%s, err=%v", bookID, err)
		return
	}
	klog.V(6).Infof("生成流程结束（成功）: bookID=%s", bookID)
}

func (r *Runner) registerCancel(bookID string, cancel context.CancelFunc) {
	r.cancelMutex.Lock()
	defer r.cancelMutex.Unlock()
	r.activeCancellations[bookID] = cancel
}

func (r *Runner) unregisterCancel(bookID string) {
	r.cancelMutex.Lock()
	defer r.cancelMutex.Unlock()
	delete(r.activeCancellations, bookID)
}

// Cancel 取消指定书的运行中流程
// 返回 false 表示该书当前没有运行中的流程
func (r *Runner) Cancel(bookID string) bool {
	r.cancelMutex.Lock()
	cancel, ok := r.activeCancellations[bookID]
	r.cancelMutex.Unlock()
	if !ok {
		return false
	}
	klog.V(6).Infof("取消生成流程: bookID=%s", bookID)
	cancel()
	return true
}

// Running 返回运行中的流程数
func (r *Runner) Running() int {
	return r.pool.Running()
}

// Stop 停止运行器并等待运行中的流程退出
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		klog.V(6).Infof("Runner stopping...")
		r.cancel()
		if err := r.pool.ReleaseTimeout(30 * time.Second); err != nil {
			klog.Warningf("Runner stop timeout: some runs may be forced to stop: %v", err)
		}
		klog.V(6).Infof("Runner stopped")
	})
}

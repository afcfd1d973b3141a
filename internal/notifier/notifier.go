package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sax-estudios/internal/model"

	"golang.org/x/sync/errgroup"
)

// Notifier 接收成功支付的通知。
type Notifier interface {
	Notify(ctx context.Context, p model.Purchase) error
}

// Fanout 并发通知多个下游，任一失败不影响其他下游，最终合并错误返回。
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, p model.Purchase) error {
	errs := make([]error, len(f))
	var g errgroup.Group
	for i, n := range f {
		if n == nil {
			continue
		}
		g.Go(func() error {
			errs[i] = n.Notify(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Async 在后台执行通知，调用方立即返回，错误只记录日志。
// 后台任务使用独立的超时上下文，请求结束不会取消通知。
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewAsync 创建 Async，timeout 默认 10 秒。
func NewAsync(next Notifier, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{next: next, timeout: timeout, logger: logger.With("module", "notifier")}
}

func (a *Async) Notify(ctx context.Context, p model.Purchase) error {
	if a.next == nil {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, p); err != nil {
			a.logger.WarnContext(ctx, "purchase notification failed", "doc_id", p.SubmissionID, "error", err)
		}
	}()
	return nil
}

// Wait 等待所有后台通知完成，或直到 ctx 结束。
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

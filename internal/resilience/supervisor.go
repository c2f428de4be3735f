// Package resilience 浏览器操作的重试与人机校验监督
//
// 面向动态页面的每一次导航/滚动/提取都可能因网络抖动、渲染超时或
// 人机校验弹窗而失败。本包提供统一的执行监督器: 固定间隔重试,
// 每次动作完成后探测人机校验并轮询等待人工处理,等待超时则降级继续。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socmint-lab/fbharvest/internal/utils"
)

// CaptchaProbe 人机校验探测器
// 由浏览器适配层实现,测试中用假实现注入
type CaptchaProbe interface {
	// Present 当前页面是否存在人机校验元素
	Present() bool
}

// CaptchaState 人机校验处理结果
type CaptchaState int

const (
	CaptchaNone     CaptchaState = iota // 未出现
	CaptchaResolved                     // 等待期间消失(人工已处理)
	CaptchaTimedOut                     // 等待超时,降级继续
)

func (s CaptchaState) String() string {
	switch s {
	case CaptchaResolved:
		return "resolved"
	case CaptchaTimedOut:
		return "timed_out"
	default:
		return "none"
	}
}

// ErrRetriesExhausted 重试耗尽
var ErrRetriesExhausted = errors.New("重试次数耗尽")

// Options 监督器参数
type Options struct {
	MaxRetries          int           // 首次之外的最大重试次数
	Backoff             time.Duration // 重试前的固定等待
	CaptchaMaxWait      time.Duration // 人机校验最长等待
	CaptchaPollInterval time.Duration // 人机校验轮询间隔
}

// DefaultOptions 默认监督参数
func DefaultOptions() Options {
	return Options{
		MaxRetries:          2,
		Backoff:             5 * time.Second,
		CaptchaMaxWait:      30 * time.Second,
		CaptchaPollInterval: time.Second,
	}
}

// Result 一次受监督执行的结果
type Result struct {
	Attempts int          // 实际执行次数
	Captcha  CaptchaState // 期间人机校验的最终状态
	Err      error        // nil表示成功
}

// Supervisor 受监督执行器
type Supervisor struct {
	opts  Options
	probe CaptchaProbe // 可为nil(纯静态通道无人机校验)
}

// NewSupervisor 创建监督器,零值参数回填默认值
func NewSupervisor(opts Options, probe CaptchaProbe) *Supervisor {
	def := DefaultOptions()
	if opts.MaxRetries < 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.CaptchaMaxWait <= 0 {
		opts.CaptchaMaxWait = def.CaptchaMaxWait
	}
	if opts.CaptchaPollInterval <= 0 {
		opts.CaptchaPollInterval = def.CaptchaPollInterval
	}
	return &Supervisor{opts: opts, probe: probe}
}

// Do 受监督地执行action
//
// 每次尝试: 执行action,完成后探测人机校验,检出则轮询等待人工处理;
// 等待超时不中断,记录状态后降级继续。action返回错误时固定间隔重试,
// 耗尽后Result.Err包装ErrRetriesExhausted。ctx取消立即返回。
func (s *Supervisor) Do(ctx context.Context, name string, action func(ctx context.Context) error) Result {
	res := Result{Captcha: CaptchaNone}
	var lastErr error

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		if attempt > 0 {
			utils.Warnf("⚠️ 操作[%s]第%d次重试,%v后执行", name, attempt, s.opts.Backoff)
			if err := sleepCtx(ctx, s.opts.Backoff); err != nil {
				res.Err = err
				return res
			}
		}

		res.Attempts++
		lastErr = action(ctx)

		// 人机校验常由导航本身触发,动作完成后再探测;
		// 最后一次失败后不再探测,没有后续尝试可受益
		if lastErr == nil || attempt < s.opts.MaxRetries {
			if state := s.awaitCaptcha(ctx); state != CaptchaNone {
				res.Captcha = state
			}
		}
		if lastErr == nil {
			return res
		}
		utils.Warnf("⚠️ 操作[%s]失败 (第%d次): %v", name, res.Attempts, lastErr)
	}

	res.Err = fmt.Errorf("操作[%s]: %w: %w", name, ErrRetriesExhausted, lastErr)
	return res
}

// awaitCaptcha 探测并等待人机校验
// 未检出返回CaptchaNone;检出后轮询至消失或超时
func (s *Supervisor) awaitCaptcha(ctx context.Context) CaptchaState {
	if s.probe == nil || !s.probe.Present() {
		return CaptchaNone
	}

	utils.Warnf("🤖 检出人机校验,等待人工处理 (最长%v)", s.opts.CaptchaMaxWait)
	deadline := time.Now().Add(s.opts.CaptchaMaxWait)

	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, s.opts.CaptchaPollInterval); err != nil {
			return CaptchaTimedOut
		}
		if !s.probe.Present() {
			utils.Infof("✅ 人机校验已解除,恢复采集")
			return CaptchaResolved
		}
	}

	utils.Warnf("⚠️ 人机校验等待超时,降级继续 (本批结果可能不完整)")
	return CaptchaTimedOut
}

// sleepCtx 可取消的定时等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package harvest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/socmint-lab/fbharvest/internal/locale"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/resilience"
)

// Collector 信息流分页控制器
//
// 每次Collect收割至多maxItems条新条目: 反复"快照-过滤-滚动"直到凑满一批
// 或信息流终止(出现早于截止时间的条目、连续空轮达到上限、滚动轮数达到
// 上限)。去重账本、空轮计数与终止信号跨Collect调用共享,调用方把每批
// 立即送详情提取,分页与提取逐批交替推进
type Collector struct {
	source  FeedSource
	sup     *resilience.Supervisor
	seen    *models.SeenIDSet
	cfg     models.RunConfig
	limiter *rate.Limiter
	stats   *models.RunStats
	now     func() time.Time

	opened bool
	done   bool
	rounds int
	stall  int
	total  int
}

// NewCollector 创建分页控制器
// scrollPerMinute限定滚动节奏,过快的滚动是风控的主要触发源
func NewCollector(source FeedSource, sup *resilience.Supervisor, seen *models.SeenIDSet,
	cfg models.RunConfig, scrollPerMinute int, stats *models.RunStats) *Collector {
	if scrollPerMinute < 1 {
		scrollPerMinute = 30
	}
	return &Collector{
		source:  source,
		sup:     sup,
		seen:    seen,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(scrollPerMinute)/60.0), 1),
		stats:   stats,
		now:     time.Now,
	}
}

// markOpened 声明信息流入口已由调用方打开,首次Collect不再导航
func (c *Collector) markOpened() {
	c.opened = true
}

// Collect 收割下一批新条目,至多maxItems条
// done=true表示信息流已终止,后续调用不再产出条目。
// 中途失败时返回已收割的条目和错误,调用方可对已有条目继续详情提取
func (c *Collector) Collect(ctx context.Context, maxItems int) ([]models.FeedItem, bool, error) {
	if maxItems < 1 {
		maxItems = 10
	}
	if c.done {
		return nil, true, nil
	}

	if !c.opened {
		if res := c.sup.Do(ctx, "open_feed", func(ctx context.Context) error {
			return c.source.Navigate(ctx, c.cfg.FeedRootURL)
		}); res.Err != nil {
			return nil, false, res.Err
		}
		c.opened = true
	}

	var collected []models.FeedItem

	for c.rounds < c.cfg.MaxScrollRounds {
		if err := ctx.Err(); err != nil {
			return collected, false, err
		}

		var snap []models.FeedItem
		res := c.sup.Do(ctx, "snapshot_feed", func(ctx context.Context) error {
			var err error
			snap, err = c.source.Snapshot(ctx)
			return err
		})
		if res.Captcha == resilience.CaptchaTimedOut {
			c.stats.CaptchaTimeouts++
		}
		if res.Err != nil {
			return collected, false, res.Err
		}

		newCount := 0
		for _, item := range snap {
			if len(collected) >= maxItems {
				break
			}
			if c.seen.Contains(item.ID) {
				continue
			}

			// 时间文本解析失败按当前时间处理: 宁可多采不漏采,
			// 详情提取阶段还有一次机会拿到准确时间
			ts := locale.ParseTimestamp(item.RawTimestampText, c.now())
			if ts.Equal(locale.SentinelEpoch) {
				ts = c.now()
			}
			item.DiscoveredAt = ts.UnixMilli()

			if c.cfg.Cutoff != nil && ts.Before(*c.cfg.Cutoff) {
				// 信息流按时间倒序,太旧条目之后渲染的只会更旧,
				// 本轮快照就此停扫
				c.done = true
				c.stats.OlderReached = true
				break
			}

			c.seen.Add(item.ID)
			collected = append(collected, item)
			newCount++
		}

		c.rounds++
		c.total += newCount
		c.stats.ScrollRounds = c.rounds
		c.stats.Discovered = c.total
		log.Info().Msgf("📥 第%d轮收割: 新增%d条,累计%d条", c.rounds, newCount, c.total)

		if newCount > 0 {
			c.stall = 0
		}

		if c.done {
			log.Info().Msg("⏱️ 信息流已滚动至截止时间之前,分页结束")
			return collected, true, nil
		}
		if len(collected) >= maxItems {
			return collected, false, nil
		}

		if newCount == 0 {
			c.stall++
			if c.stall >= c.cfg.StallRetries {
				c.done = true
				c.stats.StallExhausted = true
				log.Info().Msgf("信息流连续%d轮无新条目,视为耗尽", c.stall)
				return collected, true, nil
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return collected, false, err
		}
		res = c.sup.Do(ctx, "scroll_feed", func(ctx context.Context) error {
			return c.source.Scroll(ctx)
		})
		if res.Captcha == resilience.CaptchaTimedOut {
			c.stats.CaptchaTimeouts++
		}
		if res.Err != nil {
			return collected, false, res.Err
		}
	}

	c.done = true
	log.Info().Msgf("滚动轮数达到上限%d,分页结束", c.cfg.MaxScrollRounds)
	return collected, true, nil
}

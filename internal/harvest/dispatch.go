package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/socmint-lab/fbharvest/internal/extract"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/resilience"
)

// reactionFetcher 表态名单专用通道
// 名单藏在弹窗里,拿不到独立详情页,需要点击+滚动交互
type reactionFetcher interface {
	FetchReactionsHTML(ctx context.Context, postURL string) (string, error)
}

// Dispatcher 批量详情分发器
//
// 每批为每个条目起一个goroutine并发提取,批内全部结束后才返回。
// 单条目重试耗尽不污染同批其他条目: 该条目产出整条默认值记录,
// 批和运行照常推进
type Dispatcher struct {
	primary  DetailFetcher
	fallback DetailFetcher // 静态HTTP兜底通道,可为nil
	sup      *resilience.Supervisor
	kind     models.ContentKind
	spec     extract.KindSpec
	stats    *models.RunStats
	statsMu  sync.Mutex
	now      func() time.Time
}

// NewDispatcher 创建分发器
func NewDispatcher(primary, fallback DetailFetcher, sup *resilience.Supervisor,
	kind models.ContentKind, stats *models.RunStats) *Dispatcher {
	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		sup:      sup,
		kind:     kind,
		spec:     extract.SpecForKind(kind),
		stats:    stats,
		now:      time.Now,
	}
}

// ProcessBatch 并发提取一批条目的详情
// 返回的记录与批内条目一一对应且保持顺序,绝不返回nil记录
func (d *Dispatcher) ProcessBatch(ctx context.Context, batch models.Batch) []*models.DetailRecord {
	records := make([]*models.DetailRecord, len(batch.Items))

	var wg sync.WaitGroup
	for i, item := range batch.Items {
		wg.Add(1)
		go func(i int, item models.FeedItem) {
			defer wg.Done()
			records[i] = d.processItem(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return records
}

// processItem 提取单条目详情
func (d *Dispatcher) processItem(ctx context.Context, item models.FeedItem) *models.DetailRecord {
	rec := models.NewDetailRecord(item, d.kind)

	var html string
	res := d.sup.Do(ctx, "fetch_detail", func(ctx context.Context) error {
		var err error
		html, err = d.fetchPrimary(ctx, item.ID)
		return err
	})
	if res.Captcha == resilience.CaptchaTimedOut {
		d.bump(func(s *models.RunStats) { s.CaptchaTimeouts++ })
	}

	fetchErr := res.Err
	if fetchErr != nil && d.fallback != nil {
		// 浏览器通道耗尽后走静态HTTP兜底,只试一次
		log.Warn().Str("url", item.ID).Msg("浏览器通道失败,尝试静态兜底")
		var ferr error
		html, ferr = d.fallback.FetchHTML(ctx, item.ID)
		if ferr == nil {
			fetchErr = nil
		} else {
			log.Warn().Err(ferr).Str("url", item.ID).Msg("静态兜底同样失败")
		}
	}

	if fetchErr != nil {
		return d.defaulted(rec, fetchErr.Error())
	}

	doc, err := extract.NewDocument(html)
	if err != nil {
		return d.defaulted(rec, "详情页HTML不可解析: "+err.Error())
	}

	d.spec.Apply(doc, rec, d.now())
	rec.ExtractedAt = d.now().UnixMilli()

	switch rec.Outcome.Status {
	case models.OutcomePartial:
		d.bump(func(s *models.RunStats) { s.Detailed++; s.Partial++ })
	default:
		d.bump(func(s *models.RunStats) { s.Detailed++ })
	}
	return rec
}

// defaulted 产出整条默认值记录
// 先标Fatal再Apply空文档: MarkPartial对Fatal记录不生效,
// 各字段按类型配置代入文档化默认值
func (d *Dispatcher) defaulted(rec *models.DetailRecord, reason string) *models.DetailRecord {
	rec.MarkFatal(reason)
	if doc, err := extract.NewDocument(""); err == nil {
		d.spec.Apply(doc, rec, d.now())
	}
	rec.ExtractedAt = d.now().UnixMilli()
	d.bump(func(s *models.RunStats) { s.Defaulted++ })
	return rec
}

// fetchPrimary 表态名单走弹窗交互通道,其余类型取详情页快照
func (d *Dispatcher) fetchPrimary(ctx context.Context, url string) (string, error) {
	if d.kind == models.KindReactionList {
		if rf, ok := d.primary.(reactionFetcher); ok {
			return rf.FetchReactionsHTML(ctx, url)
		}
	}
	return d.primary.FetchHTML(ctx, url)
}

// bump 在统计上加锁计数,批内goroutine并发更新
func (d *Dispatcher) bump(fn func(*models.RunStats)) {
	d.statsMu.Lock()
	fn(d.stats)
	d.statsMu.Unlock()
}

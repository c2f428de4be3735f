package harvest

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/socmint-lab/fbharvest/internal/core"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/resilience"
	"github.com/socmint-lab/fbharvest/internal/utils"
)

// loginVerifier 登录态确认,仅浏览器通道实现
type loginVerifier interface {
	VerifyLogin(ctx context.Context) error
}

// Harvester 采集编排器
//
// 串起完整的一次运行: 恢复检查点 → 循环"收割一批、并发详情提取、
// 落检查点"直到信息流终止 → 按条目时间排序输出记录与运行摘要。
// 分页与提取逐批交替,不等整个信息流收割完才开始提取。
// 取消信号在批间生效,进行中的批会跑完,不产出残缺批
type Harvester struct {
	cfg             models.RunConfig
	scrollPerMinute int
	source          FeedSource
	fetcher         DetailFetcher
	fallback        DetailFetcher
	probe           resilience.CaptchaProbe
	reporter        *utils.Reporter
	seen            *models.SeenIDSet
	stats           models.RunStats
	cpCreatedAt     time.Time
	closeFn         func()
}

// NewHarvester 装配真实浏览器会话的编排器
func NewHarvester(runCfg models.RunConfig, appCfg *core.Config) (*Harvester, error) {
	cookies, err := models.LoadCookies(runCfg.CookieFile)
	if err != nil {
		return nil, err
	}

	// 命令行参数已合并进运行配置,会话层取合并后的值
	harvestCfg := appCfg.Harvest
	harvestCfg.NavTimeout = runCfg.NavTimeout
	harvestCfg.Headless = runCfg.Headless

	monitor := NewResourceMonitor(appCfg.Resource)
	monitor.Start(time.Second)

	session, err := NewRodSession(harvestCfg, runCfg.Kind, cookies, monitor)
	if err != nil {
		monitor.Stop()
		return nil, err
	}

	return &Harvester{
		cfg:             runCfg,
		scrollPerMinute: harvestCfg.ScrollPerMinute,
		source:          session,
		fetcher:         session,
		fallback:        NewStaticFetcher(harvestCfg, cookies),
		probe:           session,
		reporter:        utils.NewReporter(appCfg.Output.BaseDir, runCfg.Kind),
		seen:            models.NewSeenIDSet(),
		closeFn: func() {
			session.Close()
			monitor.Stop()
		},
	}, nil
}

// NewHarvesterWithSource 用注入的信息流源和获取器装配编排器
func NewHarvesterWithSource(runCfg models.RunConfig, outputDir string,
	source FeedSource, fetcher, fallback DetailFetcher, probe resilience.CaptchaProbe) *Harvester {
	return &Harvester{
		cfg:             runCfg,
		scrollPerMinute: 600,
		source:          source,
		fetcher:         fetcher,
		fallback:        fallback,
		probe:           probe,
		reporter:        utils.NewReporter(outputDir, runCfg.Kind),
		seen:            models.NewSeenIDSet(),
		closeFn:         func() {},
	}
}

// Run 执行一次完整采集
// 分页中途失败不整体放弃: 已收割的条目照常走详情提取并落盘
func (h *Harvester) Run(ctx context.Context) error {
	start := time.Now()
	runID := uuid.New().String()[:8]
	h.cpCreatedAt = start

	log.Info().Msgf("🚀 采集启动 [%s] kind=%s url=%s", runID, h.cfg.Kind, h.cfg.FeedRootURL)
	if h.cfg.Cutoff != nil {
		log.Info().Msgf("截止时间: %s", h.cfg.Cutoff.Format("2006-01-02 15:04"))
	}

	sup := resilience.NewSupervisor(resilience.Options{
		MaxRetries:     h.cfg.MaxRetries,
		CaptchaMaxWait: time.Duration(h.cfg.CaptchaMaxWait) * time.Second,
	}, h.probe)

	if h.cfg.Resume {
		h.restoreCheckpoint()
	}

	collector := NewCollector(h.source, sup, h.seen, h.cfg, h.scrollPerMinute, &h.stats)

	// 浏览器通道先打开信息流确认登录态,cookie失效时尽早失败
	if lv, ok := h.source.(loginVerifier); ok {
		if res := sup.Do(ctx, "open_feed", func(ctx context.Context) error {
			return h.source.Navigate(ctx, h.cfg.FeedRootURL)
		}); res.Err != nil {
			return res.Err
		}
		if err := lv.VerifyLogin(ctx); err != nil {
			return err
		}
		// 登录确认已停在信息流入口,分页不必重复导航
		collector.markOpened()
	}

	dispatcher := NewDispatcher(h.fetcher, h.fallback, sup, h.cfg.Kind, &h.stats)
	bar := utils.NewProgressBar(-1, "详情提取")

	var records []models.DetailRecord
	batchIdx := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Warn().Msg("收到取消信号,在批间退出")
			break
		}

		items, done, collectErr := collector.Collect(ctx, h.cfg.BatchSize)
		if collectErr != nil {
			if len(items) == 0 && len(records) == 0 {
				return collectErr
			}
			log.Warn().Err(collectErr).Msgf("分页中断,对已收割的%d条继续详情提取", len(items))
		}

		if len(items) > 0 {
			batchIdx++
			for _, rec := range dispatcher.ProcessBatch(ctx, models.Batch{Index: batchIdx, Items: items}) {
				records = append(records, *rec)
				_ = bar.Add(1)
			}
			h.stats.Batches++

			if err := h.saveCheckpoint(runID, batchIdx, len(records)); err != nil {
				log.Warn().Err(err).Msg("保存检查点失败")
			}
		}

		if collectErr != nil || done {
			break
		}
	}

	// 按条目时间倒序,和信息流的阅读顺序一致
	sort.Slice(records, func(i, j int) bool {
		return records[i].DiscoveredAt > records[j].DiscoveredAt
	})

	h.stats.Duration = time.Since(start).Seconds()

	if _, err := h.reporter.WriteRecords(runID, records); err != nil {
		return err
	}
	if err := h.reporter.WriteSummary(utils.RunReport{
		RunID:       runID,
		FeedRootURL: h.cfg.FeedRootURL,
		Kind:        h.cfg.Kind,
		Cutoff:      h.cfg.Cutoff,
		StartTime:   start,
		EndTime:     time.Now(),
		Stats:       h.stats,
	}); err != nil {
		return err
	}

	log.Info().Msgf("✅ 采集完成 [%s]: 发现%d条,详情成功%d条,部分回退%d条,整条默认%d条,耗时%.1f秒",
		runID, h.stats.Discovered, h.stats.Detailed, h.stats.Partial, h.stats.Defaulted, h.stats.Duration)

	return ctx.Err()
}

// Stats 返回统计快照
func (h *Harvester) Stats() models.RunStats {
	return h.stats
}

// Close 释放浏览器与监控资源
func (h *Harvester) Close() {
	h.closeFn()
}

// restoreCheckpoint 从检查点恢复已见ID
func (h *Harvester) restoreCheckpoint() {
	path := h.reporter.CheckpointPath()
	cp, err := models.LoadCheckpointFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("读取检查点失败,按全新运行处理")
		}
		return
	}
	if cp.FeedRootURL != h.cfg.FeedRootURL {
		log.Warn().Msgf("检查点入口URL不匹配(%s),按全新运行处理", cp.FeedRootURL)
		return
	}
	h.seen.Restore(cp.SeenIDs)
	log.Info().Msgf("♻️ 从检查点恢复: 已见%d个条目ID", h.seen.Len())
}

// saveCheckpoint 每批完成后落盘检查点
func (h *Harvester) saveCheckpoint(runID string, lastBatch, recordCount int) error {
	cp := &models.Checkpoint{
		RunID:        runID,
		FeedRootURL:  h.cfg.FeedRootURL,
		Kind:         string(h.cfg.Kind),
		SeenIDs:      h.seen.Snapshot(),
		RecordCount:  recordCount,
		LastBatch:    lastBatch,
		OlderReached: h.stats.OlderReached,
		Stats:        h.stats,
		CreatedAt:    h.cpCreatedAt,
	}
	return cp.SaveToFile(h.reporter.CheckpointPath())
}

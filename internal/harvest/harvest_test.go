package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/socmint-lab/fbharvest/internal/extract"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/resilience"
)

// fakeFeed 可编程的信息流源
// 每次Scroll多"加载"一页,Snapshot返回已加载各页的并集,
// 模拟真实信息流的累积式渲染
type fakeFeed struct {
	pages  [][]models.FeedItem
	cursor int
	navs   int
}

func (f *fakeFeed) Navigate(_ context.Context, _ string) error {
	f.navs++
	return nil
}

func (f *fakeFeed) Snapshot(_ context.Context) ([]models.FeedItem, error) {
	var out []models.FeedItem
	for i := 0; i <= f.cursor && i < len(f.pages); i++ {
		out = append(out, f.pages[i]...)
	}
	return out, nil
}

func (f *fakeFeed) Scroll(_ context.Context) error {
	if f.cursor < len(f.pages)-1 {
		f.cursor++
	}
	return nil
}

// fakeFetcher 可编程的详情获取器
type fakeFetcher struct {
	html     string
	failURLs map[string]bool
}

func (f *fakeFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	if f.failURLs[url] {
		return "", errors.New("模拟导航失败")
	}
	return f.html, nil
}

// eventLog 记录滚动与抓取事件的先后顺序
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.events...)
}

// tracingFeed 滚动时记录事件
type tracingFeed struct {
	fakeFeed
	log *eventLog
}

func (f *tracingFeed) Scroll(ctx context.Context) error {
	f.log.add("scroll")
	return f.fakeFeed.Scroll(ctx)
}

// tracingFetcher 抓取时记录事件
type tracingFetcher struct {
	html string
	log  *eventLog
}

func (f *tracingFetcher) FetchHTML(_ context.Context, _ string) (string, error) {
	f.log.add("fetch")
	return f.html, nil
}

// verifyingFeed 带登录确认的信息流源
type verifyingFeed struct {
	fakeFeed
}

func (f *verifyingFeed) VerifyLogin(_ context.Context) error {
	return nil
}

const postDetailHTML = `<html><body>
<div data-ad-rendering-role="story_message">เนื้อหาโพสต์ทดสอบ</div>
<div role="tooltip"><span class="x193iq5w">17 มิถุนายน 2025 เวลา 14:30 น.</span></div>
</body></html>`

func feedItem(id, ts string) models.FeedItem {
	return models.FeedItem{ID: "https://example.com/posts/" + id, RawTimestampText: ts}
}

func testRunConfig() models.RunConfig {
	return models.RunConfig{
		FeedRootURL:     "https://example.com/page",
		Kind:            models.KindPost,
		BatchSize:       10,
		MaxScrollRounds: 50,
		StallRetries:    3,
		MaxRetries:      0,
		NavTimeout:      30,
		CaptchaMaxWait:  1,
	}
}

func fastSupervisor() *resilience.Supervisor {
	return resilience.NewSupervisor(resilience.Options{
		MaxRetries:          0,
		Backoff:             time.Millisecond,
		CaptchaMaxWait:      10 * time.Millisecond,
		CaptchaPollInterval: time.Millisecond,
	}, nil)
}

func TestCollectDeduplicatesAcrossRounds(t *testing.T) {
	// 第二页重复包含第一页的条目,只应收割一次
	feed := &fakeFeed{pages: [][]models.FeedItem{
		{feedItem("1", "5 นาที"), feedItem("2", "10 นาที")},
		{feedItem("1", "5 นาที"), feedItem("2", "10 นาที"), feedItem("3", "1 ชั่วโมง")},
	}}

	stats := &models.RunStats{}
	c := NewCollector(feed, fastSupervisor(), models.NewSeenIDSet(), testRunConfig(), 6000, stats)

	items, done, err := c.Collect(context.Background(), 100)
	if err != nil {
		t.Fatalf("Collect失败: %v", err)
	}
	if !done {
		t.Error("信息流耗尽后done应为true")
	}
	if len(items) != 3 {
		t.Fatalf("收割%d条, 期望3条(跨轮去重)", len(items))
	}

	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			t.Errorf("条目%s被重复收割", it.ID)
		}
		seen[it.ID] = true
	}
	if !stats.StallExhausted {
		t.Error("信息流耗尽后应标记StallExhausted")
	}
}

func TestCollectBoundsEachPass(t *testing.T) {
	// 单页10条,每次Collect至多取4条,剩余条目留给下一批
	var page []models.FeedItem
	for i := 0; i < 10; i++ {
		page = append(page, feedItem(fmt.Sprintf("%d", i), "5 นาที"))
	}
	feed := &fakeFeed{pages: [][]models.FeedItem{page}}

	stats := &models.RunStats{}
	c := NewCollector(feed, fastSupervisor(), models.NewSeenIDSet(), testRunConfig(), 6000, stats)

	items, done, err := c.Collect(context.Background(), 4)
	if err != nil || done || len(items) != 4 {
		t.Fatalf("首批 = (%d, %v, %v), 期望(4, false, nil)", len(items), done, err)
	}
	items, done, err = c.Collect(context.Background(), 4)
	if err != nil || done || len(items) != 4 {
		t.Fatalf("次批 = (%d, %v, %v), 期望(4, false, nil)", len(items), done, err)
	}
	items, done, err = c.Collect(context.Background(), 4)
	if err != nil || !done || len(items) != 2 {
		t.Fatalf("尾批 = (%d, %v, %v), 期望(2, true, nil)", len(items), done, err)
	}
	if stats.Discovered != 10 {
		t.Errorf("Discovered = %d, 期望10", stats.Discovered)
	}

	items, done, _ = c.Collect(context.Background(), 4)
	if len(items) != 0 || !done {
		t.Errorf("终止后再次Collect = (%d, %v), 应返回空批", len(items), done)
	}
}

func TestCollectStopsAtCutoff(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -10)
	cfg := testRunConfig()
	cfg.Cutoff = &cutoff

	feed := &fakeFeed{pages: [][]models.FeedItem{
		{feedItem("1", "2 วัน")},
		{feedItem("1", "2 วัน"), feedItem("2", "17 มิถุนายน 2020")},
		{feedItem("3", "3 วัน")}, // 截止后不应再滚到这页
	}}

	stats := &models.RunStats{}
	c := NewCollector(feed, fastSupervisor(), models.NewSeenIDSet(), cfg, 6000, stats)

	items, done, err := c.Collect(context.Background(), 100)
	if err != nil {
		t.Fatalf("Collect失败: %v", err)
	}
	if !done || !stats.OlderReached {
		t.Fatal("出现早于截止时间的条目应标记OlderReached并终止")
	}
	for _, it := range items {
		if strings.HasSuffix(it.ID, "/2") {
			t.Error("早于截止时间的条目不应被收割")
		}
		if strings.HasSuffix(it.ID, "/3") {
			t.Error("分页应在截止信号处终止,不应继续滚动")
		}
	}
	if len(items) != 1 {
		t.Errorf("收割%d条, 期望1条", len(items))
	}
}

func TestCollectStopsScanAtTooOldItem(t *testing.T) {
	// 太旧条目之后渲染的条目视为更旧,同一快照内不再扫描
	cutoff := time.Now().AddDate(0, 0, -10)
	cfg := testRunConfig()
	cfg.Cutoff = &cutoff

	feed := &fakeFeed{pages: [][]models.FeedItem{{
		feedItem("new1", "2 วัน"),
		feedItem("old", "17 มิถุนายน 2020"),
		feedItem("new2", "3 วัน"),
	}}}

	stats := &models.RunStats{}
	c := NewCollector(feed, fastSupervisor(), models.NewSeenIDSet(), cfg, 6000, stats)

	items, done, err := c.Collect(context.Background(), 100)
	if err != nil {
		t.Fatalf("Collect失败: %v", err)
	}
	if !done || !stats.OlderReached {
		t.Fatal("出现早于截止时间的条目应终止分页")
	}
	if len(items) != 1 || !strings.HasSuffix(items[0].ID, "/new1") {
		t.Fatalf("收割了%d条, 期望仅太旧条目之前的new1", len(items))
	}
}

func TestCollectStallCounterResets(t *testing.T) {
	// 中间夹一轮空页,有新条目后空轮计数应归零
	feed := &fakeFeed{pages: [][]models.FeedItem{
		{feedItem("1", "5 นาที")},
		{feedItem("1", "5 นาที")}, // 空轮
		{feedItem("1", "5 นาที"), feedItem("2", "10 นาที")},
	}}

	stats := &models.RunStats{}
	c := NewCollector(feed, fastSupervisor(), models.NewSeenIDSet(), testRunConfig(), 6000, stats)

	items, _, err := c.Collect(context.Background(), 100)
	if err != nil {
		t.Fatalf("Collect失败: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("收割%d条, 期望2条(空轮后继续推进)", len(items))
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	// 5条中第3条持续失败: 5条记录全部产出,仅失败条目整条默认
	items := make([]models.FeedItem, 5)
	for i := range items {
		items[i] = feedItem(fmt.Sprintf("%d", i+1), "5 นาที")
	}
	failing := items[2].ID

	fetcher := &fakeFetcher{html: postDetailHTML, failURLs: map[string]bool{failing: true}}
	stats := &models.RunStats{}
	d := NewDispatcher(fetcher, nil, fastSupervisor(), models.KindPost, stats)

	records := d.ProcessBatch(context.Background(), models.Batch{Index: 1, Items: items})
	if len(records) != 5 {
		t.Fatalf("产出%d条记录, 期望5条", len(records))
	}

	for i, rec := range records {
		if rec == nil {
			t.Fatalf("第%d条记录为nil", i+1)
		}
		if rec.SourceID != items[i].ID {
			t.Errorf("第%d条记录顺序错乱: %s", i+1, rec.SourceID)
		}
	}

	if records[2].Outcome.Status != models.OutcomeFatal {
		t.Errorf("失败条目状态 = %s, 期望fatal", records[2].Outcome.Status)
	}
	if records[2].Fields["content"] != extract.DefaultContent {
		t.Errorf("失败条目content = %v, 期望文档化默认值", records[2].Fields["content"])
	}
	for i, rec := range records {
		if i == 2 {
			continue
		}
		if rec.Outcome.Status == models.OutcomeFatal {
			t.Errorf("第%d条被邻座失败污染为fatal", i+1)
		}
		if rec.Fields["content"] != "เนื้อหาโพสต์ทดสอบ" {
			t.Errorf("第%d条content = %v", i+1, rec.Fields["content"])
		}
	}
	if stats.Defaulted != 1 {
		t.Errorf("Defaulted = %d, 期望1", stats.Defaulted)
	}
	if stats.Detailed != 4 {
		t.Errorf("Detailed = %d, 期望4", stats.Detailed)
	}
}

func TestProcessBatchStaticFallback(t *testing.T) {
	// 浏览器通道失败但静态兜底成功,记录不应是fatal
	items := []models.FeedItem{feedItem("1", "5 นาที")}
	primary := &fakeFetcher{html: postDetailHTML, failURLs: map[string]bool{items[0].ID: true}}
	fallback := &fakeFetcher{html: postDetailHTML}

	stats := &models.RunStats{}
	d := NewDispatcher(primary, fallback, fastSupervisor(), models.KindPost, stats)

	records := d.ProcessBatch(context.Background(), models.Batch{Index: 1, Items: items})
	if records[0].Outcome.Status == models.OutcomeFatal {
		t.Errorf("静态兜底成功后状态 = %s, 不应为fatal", records[0].Outcome.Status)
	}
	if records[0].Fields["content"] != "เนื้อหาโพสต์ทดสอบ" {
		t.Errorf("content = %v", records[0].Fields["content"])
	}
	if stats.Defaulted != 0 {
		t.Errorf("Defaulted = %d, 期望0", stats.Defaulted)
	}
}

func TestPagePoolReserveCapsConcurrentCreation(t *testing.T) {
	// 并发争抢建页名额,已建+在建不应超过上限
	pool := NewPagePool(nil, nil)

	const workers = 16
	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pool.tryReserve(4) {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != 4 {
		t.Errorf("授予%d个建页名额, 期望4", granted)
	}
}

func TestHarvesterInterleavesCollectAndDispatch(t *testing.T) {
	// 分页与详情提取应逐批交替,而非整个信息流收割完才开始提取
	events := &eventLog{}
	var pages [][]models.FeedItem
	for p := 0; p < 3; p++ {
		var page []models.FeedItem
		for i := 0; i < 8; i++ {
			page = append(page, feedItem(fmt.Sprintf("%d-%d", p, i), "5 นาที"))
		}
		pages = append(pages, page)
	}
	feed := &tracingFeed{fakeFeed: fakeFeed{pages: pages}, log: events}
	fetcher := &tracingFetcher{html: postDetailHTML, log: events}

	cfg := testRunConfig()
	cfg.BatchSize = 8
	h := NewHarvesterWithSource(cfg, t.TempDir(), feed, fetcher, nil, nil)
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	seq := events.snapshot()
	firstFetch, lastScroll := -1, -1
	for i, e := range seq {
		if e == "fetch" && firstFetch < 0 {
			firstFetch = i
		}
		if e == "scroll" {
			lastScroll = i
		}
	}
	if firstFetch < 0 || lastScroll < 0 {
		t.Fatalf("事件序列不完整: %v", seq)
	}
	if firstFetch > lastScroll {
		t.Errorf("全部滚动完成后才开始详情提取,应逐批交替: %v", seq)
	}
	if h.Stats().Detailed != 24 {
		t.Errorf("Detailed = %d, 期望24", h.Stats().Detailed)
	}
	if h.Stats().Batches != 3 {
		t.Errorf("Batches = %d, 期望3", h.Stats().Batches)
	}
}

func TestHarvesterVerifyLoginNavigatesOnce(t *testing.T) {
	// 登录确认已打开信息流入口,分页不应重复导航
	feed := &verifyingFeed{fakeFeed: fakeFeed{pages: [][]models.FeedItem{
		{feedItem("1", "5 นาที")},
	}}}

	h := NewHarvesterWithSource(testRunConfig(), t.TempDir(), feed, &fakeFetcher{html: postDetailHTML}, nil, nil)
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if feed.navs != 1 {
		t.Errorf("信息流入口被导航%d次, 期望1次", feed.navs)
	}
}

func TestHarvesterEndToEnd(t *testing.T) {
	// 24条分3页,其后一页早于截止时间
	var pages [][]models.FeedItem
	var page []models.FeedItem
	for i := 1; i <= 24; i++ {
		page = append(page, feedItem(fmt.Sprintf("%d", i), "2 วัน"))
		if len(page) == 8 {
			pages = append(pages, append([]models.FeedItem{}, page...))
			page = page[:0]
		}
	}
	pages = append(pages, []models.FeedItem{feedItem("old", "17 มิถุนายน 2020")})
	feed := &fakeFeed{pages: pages}

	cutoff := time.Now().AddDate(0, 0, -10)
	cfg := testRunConfig()
	cfg.Cutoff = &cutoff
	cfg.BatchSize = 10

	outputDir := t.TempDir()
	fetcher := &fakeFetcher{html: postDetailHTML}
	h := NewHarvesterWithSource(cfg, outputDir, feed, fetcher, nil, nil)

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	stats := h.Stats()
	if stats.Discovered != 24 {
		t.Errorf("Discovered = %d, 期望24(截止前的全部条目)", stats.Discovered)
	}
	if !stats.OlderReached {
		t.Error("应因截止时间终止分页")
	}
	if stats.Batches != 3 {
		t.Errorf("Batches = %d, 期望3", stats.Batches)
	}
	if stats.Detailed != 24 {
		t.Errorf("Detailed = %d, 期望24", stats.Detailed)
	}

	// 输出文件落盘检查
	entries, err := os.ReadDir(filepath.Join(outputDir, "post"))
	if err != nil {
		t.Fatalf("读取输出目录失败: %v", err)
	}
	var hasRecords, hasSummary, hasCheckpoint bool
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), "records_"):
			hasRecords = true
		case strings.HasPrefix(e.Name(), "run_"):
			hasSummary = true
		case strings.HasPrefix(e.Name(), "checkpoint_"):
			hasCheckpoint = true
		}
	}
	if !hasRecords || !hasSummary || !hasCheckpoint {
		t.Errorf("输出不完整: records=%v summary=%v checkpoint=%v",
			hasRecords, hasSummary, hasCheckpoint)
	}
}

func TestHarvesterResumeSkipsSeenItems(t *testing.T) {
	cfg := testRunConfig()
	outputDir := t.TempDir()

	makeFeed := func() *fakeFeed {
		return &fakeFeed{pages: [][]models.FeedItem{
			{feedItem("1", "5 นาที"), feedItem("2", "10 นาที")},
		}}
	}

	// 第一次运行
	h1 := NewHarvesterWithSource(cfg, outputDir, makeFeed(), &fakeFetcher{html: postDetailHTML}, nil, nil)
	if err := h1.Run(context.Background()); err != nil {
		t.Fatalf("首次Run失败: %v", err)
	}
	if h1.Stats().Discovered != 2 {
		t.Fatalf("首次Discovered = %d", h1.Stats().Discovered)
	}

	// --resume的第二次运行: 同样的信息流,全部已见
	cfg.Resume = true
	h2 := NewHarvesterWithSource(cfg, outputDir, makeFeed(), &fakeFetcher{html: postDetailHTML}, nil, nil)
	if err := h2.Run(context.Background()); err != nil {
		t.Fatalf("恢复Run失败: %v", err)
	}
	if h2.Stats().Discovered != 0 {
		t.Errorf("恢复后Discovered = %d, 已见条目不应重复采集", h2.Stats().Discovered)
	}
}

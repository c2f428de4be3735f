package harvest

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// PagePool 详情标签页池
// 信息流页常驻主标签页,详情抓取在隔离标签页中进行,用完清理归还。
// 池大小由ResourceMonitor实时限定,资源紧张时Acquire阻塞等待归还
type PagePool struct {
	browser *rod.Browser
	monitor *ResourceMonitor

	mu        sync.Mutex
	pages     []*rod.Page
	creating  int // 已占名额、尚未建成的标签页数
	available chan *rod.Page
	closed    bool
}

// NewPagePool 创建标签页池
func NewPagePool(browser *rod.Browser, monitor *ResourceMonitor) *PagePool {
	return &PagePool{
		browser:   browser,
		monitor:   monitor,
		available: make(chan *rod.Page, 32),
	}
}

// Acquire 获取一个隔离标签页
// 优先复用归还的标签页;池未达资源上限且资源充足时新建;
// 否则阻塞等待,ctx取消立即返回
func (pp *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	pp.mu.Unlock()

	select {
	case page := <-pp.available:
		if page == nil {
			return nil, fmt.Errorf("标签页池已关闭")
		}
		return page, nil
	default:
	}

	if ok, reason := pp.monitor.CheckAvailability(); !ok {
		log.Warn().Msgf("资源不足,等待标签页归还: %s", reason)
		return pp.waitAvailable(ctx)
	}

	// 并发Acquire先竞争建页名额,防止同时通过上限检查后超配
	maxSize := pp.monitor.CalculateMaxTabs()
	if !pp.tryReserve(maxSize) {
		return pp.waitAvailable(ctx)
	}

	page, err := pp.browser.Page(proto.TargetCreateTarget{})
	pp.mu.Lock()
	pp.creating--
	if err != nil {
		pp.mu.Unlock()
		return nil, fmt.Errorf("创建详情标签页失败(浏览器可能已崩溃): %w", err)
	}
	pp.pages = append(pp.pages, page)
	currentSize := len(pp.pages)
	pp.mu.Unlock()

	log.Debug().Msgf("新建详情标签页,当前%d个,上限%d个", currentSize, maxSize)
	return page, nil
}

// tryReserve 在锁内占用一个建页名额
// 在建数量计入占用,保证 已建+在建 不超过上限
func (pp *PagePool) tryReserve(maxSize int) bool {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return false
	}
	if len(pp.pages)+pp.creating >= maxSize {
		return false
	}
	pp.creating++
	return true
}

// waitAvailable 阻塞等待归还的标签页
func (pp *PagePool) waitAvailable(ctx context.Context) (*rod.Page, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page := <-pp.available:
		if page == nil {
			return nil, fmt.Errorf("标签页池已关闭")
		}
		return page, nil
	}
}

// Release 清理并归还标签页
// 清理失败或归还通道已满时直接销毁,下一个Acquire会按需新建
func (pp *PagePool) Release(page *rod.Page) {
	if page == nil {
		return
	}

	if err := pp.cleanPage(page); err != nil {
		log.Warn().Err(err).Msg("清理详情标签页失败,销毁重建")
		pp.destroyPage(page)
		return
	}

	select {
	case pp.available <- page:
	default:
		pp.destroyPage(page)
	}
}

// cleanPage 清理标签页的页内存储,避免跨条目串状态
// 登录cookie挂在浏览器上下文上,不受页内清理影响
func (pp *PagePool) cleanPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { if (typeof localStorage !== 'undefined') localStorage.clear(); } catch (e) {}
			try { if (typeof sessionStorage !== 'undefined') sessionStorage.clear(); } catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理标签页状态失败: %w", err)
	}
	return nil
}

// destroyPage 销毁标签页并从池中移除
func (pp *PagePool) destroyPage(page *rod.Page) {
	pp.mu.Lock()
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			break
		}
	}
	size := len(pp.pages)
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁详情标签页,当前%d个", size)
}

// CurrentSize 当前池内标签页数
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Close 关闭池并销毁所有标签页
func (pp *PagePool) Close() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return
	}

	for _, page := range pp.pages {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	pp.pages = nil
	close(pp.available)
	pp.closed = true
	log.Info().Msg("详情标签页池已关闭")
}

// Package harvest 增量信息流采集引擎
//
// 流水线分两段: 信息流分页收割条目(去重+截止时间), 批量并发提取详情。
// 浏览器交互全部收敛在本包的rod适配层,上层逻辑通过FeedSource/
// DetailFetcher接口驱动,测试中用假实现替换。
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/socmint-lab/fbharvest/internal/core"
	"github.com/socmint-lab/fbharvest/internal/models"
)

// FeedSource 信息流页驱动
type FeedSource interface {
	// Navigate 打开信息流入口
	Navigate(ctx context.Context, url string) error
	// Snapshot 收割当前已载入的全部条目(含已见过的)
	Snapshot(ctx context.Context) ([]models.FeedItem, error)
	// Scroll 滚动一轮触发增量加载并等待渲染稳定
	Scroll(ctx context.Context) error
}

// DetailFetcher 详情页HTML获取器
type DetailFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// 人机校验检测选择器,命中任意一个即视为检出
var captchaSelectors = []string{
	`iframe[src*="captcha"]`,
	`div#captcha`,
	`form[action*="checkpoint"]`,
	`[aria-label="การตรวจสอบความปลอดภัย"]`,
}

// feedHarvestJS 页内条目收割脚本
// 扫描全部锚点,按类型专属的URL正则取ID去重,并就近取时间文本
// (article容器内的abbr优先,锚点自身的aria-label/文本兜底)
const feedHarvestJS = `(pattern) => {
	const re = new RegExp(pattern);
	const seen = new Set();
	const out = [];
	for (const a of document.querySelectorAll('a[href]')) {
		const m = a.href.match(re);
		if (!m || !m[1]) continue;
		const id = m[1];
		if (seen.has(id)) continue;
		seen.add(id);
		let ts = '';
		const container = a.closest('div[role="article"]') || a.parentElement;
		if (container) {
			const abbr = container.querySelector('abbr[aria-label]');
			if (abbr) {
				ts = abbr.getAttribute('aria-label') || '';
			}
		}
		if (!ts) {
			ts = (a.getAttribute('aria-label') || a.textContent || '').trim();
		}
		out.push({id: id, url: a.href.split('?')[0], ts: ts});
	}
	return JSON.stringify(out);
}`

// linkPatternForKind 各内容类型的条目链接正则(首个捕获组为条目ID)
func linkPatternForKind(kind models.ContentKind) string {
	switch kind {
	case models.KindVideo:
		return `/video/(\d+)`
	case models.KindReel:
		return `/reel/(\d+)`
	case models.KindLive:
		return `/videos/(\d+)`
	case models.KindComment:
		return `comment_id=(\d+)`
	default:
		return `(?:/posts/|story_fbid=)(pfbid[0-9A-Za-z]+|\d+)`
	}
}

// RodSession 浏览器会话
// 主标签页常驻信息流,详情抓取经PagePool在隔离标签页进行
type RodSession struct {
	browser *rod.Browser
	page    *rod.Page
	pool    *PagePool
	cfg     core.HarvestConfig
	kind    models.ContentKind
}

// NewRodSession 启动浏览器并注入登录cookie
func NewRodSession(cfg core.HarvestConfig, kind models.ContentKind, cookies []models.Cookie, monitor *ResourceMonitor) (*RodSession, error) {
	u, err := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	if len(cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(cookies))
		for _, c := range cookies {
			p := &proto.NetworkCookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				SameSite: proto.NetworkCookieSameSite(models.NormalizeSameSite(c.SameSite)),
			}
			if c.Expires > 0 {
				p.Expires = proto.TimeSinceEpoch(c.Expires)
			}
			params = append(params, p)
		}
		if err := browser.SetCookies(params); err != nil {
			browser.Close()
			return nil, fmt.Errorf("注入cookie失败: %w", err)
		}
		log.Info().Msgf("已注入%d条cookie", len(params))
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("创建主标签页失败: %w", err)
	}
	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			log.Warn().Err(err).Msg("设置User-Agent失败")
		}
	}

	return &RodSession{
		browser: browser,
		page:    page,
		pool:    NewPagePool(browser, monitor),
		cfg:     cfg,
		kind:    kind,
	}, nil
}

// navTimeout 导航超时
func (s *RodSession) navTimeout() time.Duration {
	return time.Duration(s.cfg.NavTimeout) * time.Second
}

// Navigate 实现FeedSource接口
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("导航到 %s 失败: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

// VerifyLogin 确认登录态
// 登录后左侧导航栏出现"ทางลัด"(快捷方式)区块,以此为登录凭据有效的信号
func (s *RodSession) VerifyLogin(ctx context.Context) error {
	page := s.page.Context(ctx).Timeout(10 * time.Second)
	if err := page.WaitElementsMoreThan(`div[aria-label="ทางลัด"]`, 0); err != nil {
		return fmt.Errorf("未检出登录态导航栏,cookie可能已失效: %w", err)
	}
	log.Info().Msg("✅ 登录态确认")
	return nil
}

// Snapshot 实现FeedSource接口
func (s *RodSession) Snapshot(ctx context.Context) ([]models.FeedItem, error) {
	page := s.page.Context(ctx).Timeout(s.navTimeout())
	obj, err := page.Eval(feedHarvestJS, linkPatternForKind(s.kind))
	if err != nil {
		return nil, fmt.Errorf("执行条目收割脚本失败: %w", err)
	}

	var entries []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
		TS  string `json:"ts"`
	}
	if err := json.Unmarshal([]byte(obj.Value.Str()), &entries); err != nil {
		return nil, fmt.Errorf("解析条目收割结果失败: %w", err)
	}

	// 规范化URL作为稳定标识,平台侧短ID进附加字段
	now := time.Now().UnixMilli()
	items := make([]models.FeedItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.FeedItem{
			ID:               e.URL,
			DiscoveredAt:     now,
			RawTimestampText: e.TS,
			Auxiliary:        map[string]string{"platform_id": e.ID},
		})
	}
	return items, nil
}

// Scroll 实现FeedSource接口
func (s *RodSession) Scroll(ctx context.Context) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout())
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("滚动信息流失败: %w", err)
	}

	// 固定等待渲染稳定,动态信息流没有可靠的加载完成信号
	settle := time.Duration(s.cfg.ScrollSettle) * time.Second
	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Present 实现resilience.CaptchaProbe接口
func (s *RodSession) Present() bool {
	for _, sel := range captchaSelectors {
		has, _, err := s.page.Has(sel)
		if err != nil {
			continue
		}
		if has {
			return true
		}
	}
	return false
}

// FetchHTML 实现DetailFetcher接口
// 在隔离标签页中打开详情页,等待渲染后取一次完整HTML快照
func (s *RodSession) FetchHTML(ctx context.Context, url string) (string, error) {
	page, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Release(page)

	p := page.Context(ctx).Timeout(s.navTimeout())
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("导航到详情页 %s 失败: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待详情页加载失败: %w", err)
	}

	settle := time.Duration(s.cfg.ScrollSettle) * time.Second
	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("读取详情页HTML失败: %w", err)
	}
	return html, nil
}

// FetchReactionsHTML 打开帖子的表态名单弹窗并滚动到稳定,返回弹窗所在页HTML
// 弹窗为虚拟滚动列表,以连续5次高度不变作为名单加载完毕的信号
func (s *RodSession) FetchReactionsHTML(ctx context.Context, postURL string) (string, error) {
	page, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Release(page)

	p := page.Context(ctx).Timeout(s.navTimeout())
	if err := p.Navigate(postURL); err != nil {
		return "", fmt.Errorf("导航到帖子 %s 失败: %w", postURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待帖子加载失败: %w", err)
	}

	// 表态计数条在toolbar内,点击打开名单弹窗
	trigger, err := p.Element(`span[role="toolbar"], div[role="toolbar"]`)
	if err != nil {
		return "", fmt.Errorf("未找到表态计数条: %w", err)
	}
	if err := trigger.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("点击表态计数条失败: %w", err)
	}

	dialog, err := p.Element(`div[role="dialog"]`)
	if err != nil {
		return "", fmt.Errorf("表态名单弹窗未出现: %w", err)
	}

	stable := 0
	lastHeight := -1
	for stable < 5 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		obj, err := dialog.Eval(`function() {
			this.scrollTop = this.scrollHeight;
			return this.scrollHeight;
		}`)
		if err != nil {
			break
		}
		height := obj.Value.Int()
		if height == lastHeight {
			stable++
		} else {
			stable = 0
			lastHeight = height
		}
		time.Sleep(500 * time.Millisecond)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("读取表态名单HTML失败: %w", err)
	}
	return html, nil
}

// Close 关闭标签页池与浏览器
func (s *RodSession) Close() {
	s.pool.Close()
	if err := s.browser.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭浏览器失败")
	}
}

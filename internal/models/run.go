package models

import (
	"fmt"
	"time"
)

// RunConfig 单次采集运行配置
type RunConfig struct {
	FeedRootURL     string      `json:"feed_root_url"`     // 信息流入口URL
	Kind            ContentKind `json:"kind"`              // 内容类型
	CookieFile      string      `json:"cookie_file"`       // Cookie文件路径(JSON数组)
	Cutoff          *time.Time  `json:"cutoff,omitempty"`  // 截止时间,早于该时间的条目不采集(nil表示不限)
	BatchSize       int         `json:"batch_size"`        // 批大小 (默认:10)
	MaxScrollRounds int         `json:"max_scroll_rounds"` // 单次分页最大滚动轮数 (默认:50)
	StallRetries    int         `json:"stall_retries"`     // 空轮重试上限 (默认:3)
	MaxRetries      int         `json:"max_retries"`       // 导航/交互重试次数 (默认:2)
	NavTimeout      int         `json:"nav_timeout"`       // 导航超时(秒) (默认:30)
	CaptchaMaxWait  int         `json:"captcha_max_wait"`  // CAPTCHA轮询等待上限(秒) (默认:30)
	Headless        bool        `json:"headless"`          // 无头模式 (默认:true)
	Resume          bool        `json:"resume"`            // 从检查点恢复已见ID
}

// Validate 验证运行配置
func (c *RunConfig) Validate() error {
	if c.FeedRootURL == "" {
		return fmt.Errorf("信息流入口URL不能为空")
	}
	switch c.Kind {
	case KindPost, KindVideo, KindReel, KindLive, KindComment, KindReactionList:
	default:
		return fmt.Errorf("不支持的内容类型: %s", c.Kind)
	}
	if c.BatchSize < 1 || c.BatchSize > 50 {
		return fmt.Errorf("批大小必须在1-50之间")
	}
	if c.StallRetries < 1 || c.StallRetries > 10 {
		return fmt.Errorf("空轮重试次数必须在1-10之间")
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("重试次数必须在0-10之间")
	}
	if c.NavTimeout < 1 || c.NavTimeout > 300 {
		return fmt.Errorf("导航超时必须在1-300秒之间")
	}
	return nil
}

// RunStats 运行统计
type RunStats struct {
	Discovered      int     `json:"discovered"`       // 发现条目数
	Detailed        int     `json:"detailed"`         // 详情提取成功数
	Partial         int     `json:"partial"`          // 部分字段回退数
	Defaulted       int     `json:"defaulted"`        // 整条回退为默认值数
	Batches         int     `json:"batches"`          // 批次数
	ScrollRounds    int     `json:"scroll_rounds"`    // 滚动轮数
	CaptchaTimeouts int     `json:"captcha_timeouts"` // CAPTCHA等待超时次数
	OlderReached    bool    `json:"older_reached"`    // 是否因截止时间终止
	StallExhausted  bool    `json:"stall_exhausted"`  // 是否因信息流耗尽终止
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// Batch 待提取详情的条目批
// 分页终止时允许非空的不满批
type Batch struct {
	Index int        `json:"index"` // 批序号,从1开始
	Items []FeedItem `json:"items"`
}

package utils

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidateURL 验证URL格式
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("URL缺少协议(http/https)")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL协议必须是http或https")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}

	return nil
}

// ParseCutoff 解析截止时间参数
// 支持两种写法: 绝对时间 "2006-01-02" / "2006-01-02 15:04",
// 或相对天数 "7d" (最近7天)
func ParseCutoff(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasSuffix(raw, "d") {
		var days int
		if _, err := fmt.Sscanf(raw, "%dd", &days); err == nil && days > 0 {
			t := time.Now().AddDate(0, 0, -days)
			return &t, nil
		}
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("截止时间格式无效: %s (支持 '2006-01-02'、'2006-01-02 15:04' 或 '7d')", raw)
}

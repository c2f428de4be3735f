package main

import (
	"fmt"
	"strings"

	"github.com/socmint-lab/fbharvest/internal/utils"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(feedURL, kind string, batchSize int, cutoff string) error {
	// 验证URL
	if err := utils.ValidateURL(feedURL); err != nil {
		return fmt.Errorf("无效的信息流URL: %w", err)
	}

	// 验证内容类型
	validKinds := map[string]bool{
		"post":          true,
		"video":         true,
		"reel":          true,
		"live":          true,
		"comment":       true,
		"reaction-list": true,
	}
	if !validKinds[kind] {
		return fmt.Errorf("无效的内容类型: %s (有效值: post, video, reel, live, comment, reaction-list)", kind)
	}

	// 验证批大小 (0表示使用配置文件的值)
	if batchSize != 0 && (batchSize < 1 || batchSize > 50) {
		return fmt.Errorf("批大小必须在1-50之间,当前值: %d", batchSize)
	}

	// 截止时间的格式合法性在解析时检查,这里只拦明显的空白输入
	if cutoff != "" && strings.TrimSpace(cutoff) == "" {
		return fmt.Errorf("截止时间不能为空白")
	}

	return nil
}

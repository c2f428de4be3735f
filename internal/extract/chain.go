package extract

import "strings"

// Strategy 单字段提取策略
type Strategy interface {
	// Name 策略名(用于日志与诊断)
	Name() string
	// Extract 在快照上尝试提取一个字段值,未命中返回false
	Extract(doc *Document) (string, bool)
}

// Chain 有序策略链
// 严格按优先级尝试,首个产生非空且长度达标结果的策略短路返回
type Chain struct {
	Strategies []Strategy
	MinLength  int // 结果最小长度(rune计),过滤噪声误匹配; 0表示只要非空
}

// Extract 执行策略链
// 返回(值, 命中的策略下标);链耗尽返回("", -1, false),
// 调用方应代入文档化的默认值而非中断条目
func (c Chain) Extract(doc *Document) (string, int, bool) {
	minLen := c.MinLength
	if minLen < 1 {
		minLen = 1
	}

	for i, s := range c.Strategies {
		value, ok := s.Extract(doc)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len([]rune(value)) < minLen {
			continue
		}
		return value, i, true
	}

	return "", -1, false
}

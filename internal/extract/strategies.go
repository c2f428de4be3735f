package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONBlobStrategy 内嵌状态JSON提取策略
// 在script正文中定位标记(如 __UNIVERSAL_DATA_FOR_REHYDRATION__ / SIGI_STATE),
// 解码赋值右侧的JSON对象,深度优先查找首个目标键的标量值。
// 结构化通道最不易随版式改版失效,排在链首
type JSONBlobStrategy struct {
	Label  string   // 策略名
	Marker string   // script正文中的标记字符串
	Keys   []string // 深度优先查找的目标键,按优先级排列
}

// Name 实现Strategy接口
func (s JSONBlobStrategy) Name() string {
	return s.Label
}

// Extract 实现Strategy接口
func (s JSONBlobStrategy) Extract(doc *Document) (string, bool) {
	for _, script := range doc.Scripts() {
		idx := strings.Index(script, s.Marker)
		if idx < 0 {
			continue
		}

		// 标记后的首个'{'即JSON对象起点,Decoder在对象闭合处自然停止,
		// 无需正则平衡大括号
		brace := strings.IndexByte(script[idx:], '{')
		if brace < 0 {
			continue
		}

		var data any
		dec := json.NewDecoder(strings.NewReader(script[idx+brace:]))
		if err := dec.Decode(&data); err != nil {
			continue
		}

		if value, ok := traverse(data, s.Keys); ok {
			return value, true
		}
	}

	return "", false
}

// traverse 深度优先查找首个目标键的标量值
func traverse(node any, keys []string) (string, bool) {
	switch n := node.(type) {
	case map[string]any:
		for _, key := range keys {
			if child, ok := n[key]; ok {
				if value, ok := scalarString(child); ok {
					return value, true
				}
			}
		}
		for _, child := range n {
			if value, ok := traverse(child, keys); ok {
				return value, true
			}
		}
	case []any:
		for _, child := range n {
			if value, ok := traverse(child, keys); ok {
				return value, true
			}
		}
	}
	return "", false
}

// scalarString 标量值转字符串,复合值不可用
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// DOMScanStrategy DOM选择器扫描策略
// 按优先级遍历选择器列表,对每个命中元素的文本(或指定属性)
// 过滤已知误匹配子串(导航栏文案等),返回首个通过的候选。
// 最脆弱的通道,排在链尾兜底
type DOMScanStrategy struct {
	Label     string
	Selectors []string // 按优先级排列的CSS选择器
	Attr      string   // 非空时取该属性值而非元素文本
	Denylist  []string // 已知误匹配子串,命中即跳过该候选
}

// Name 实现Strategy接口
func (s DOMScanStrategy) Name() string {
	return s.Label
}

// Extract 实现Strategy接口
func (s DOMScanStrategy) Extract(doc *Document) (string, bool) {
	for _, selector := range s.Selectors {
		var found string

		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			var candidate string
			if s.Attr != "" {
				candidate, _ = sel.Attr(s.Attr)
			} else {
				candidate = sel.Text()
			}
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				return true
			}
			for _, deny := range s.Denylist {
				if strings.Contains(candidate, deny) {
					return true
				}
			}
			found = candidate
			return false
		})

		if found != "" {
			return found, true
		}
	}

	return "", false
}

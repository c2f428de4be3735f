package locale

import (
	"testing"
	"time"
)

func TestParseMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int64
	}{
		{"纯数字", "150", 150},
		{"带逗号的数字", "1,234", 1234},
		{"泰语千位单位", "1.2 พัน", 1200},
		{"泰语万位单位", "3 หมื่น", 30000},
		{"泰语十万位单位", "1.5 แสน", 150000},
		{"泰语百万位单位", "2.4 ล้าน", 2400000},
		{"裸泰语单位", "พัน", 1000},
		{"拉丁k简写", "1.2k", 1200},
		{"拉丁m简写", "2m", 2000000},
		{"拉丁b简写", "1.1b", 1100000000},
		{"混入非数字字符兜底", "ถูกใจ 42 คน", 42},
		{"空串", "", 0},
		{"纯文本无数字", "ไม่มี", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMagnitude(tt.text)
			if got != tt.expected {
				t.Errorf("ParseMagnitude(%q) = %d, 期望 %d", tt.text, got, tt.expected)
			}
		})
	}
}

func TestParseMagnitudeIdempotent(t *testing.T) {
	// 对已是纯数字的输入再解析一次结果不变
	first := ParseMagnitude("1.2 พัน")
	second := ParseMagnitude("1200")
	if first != second {
		t.Errorf("幂等性破坏: 首次=%d, 再次=%d", first, second)
	}
}

func TestExtractCount(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int64
	}{
		{"评论计数文本", "ความคิดเห็น 1.2 พัน รายการ", 1200},
		{"分享计数文本", "แชร์ 45 ครั้ง", 45},
		{"拉丁简写", "2.5k", 2500},
		{"纯数字", "321", 321},
		{"无计数", "ไม่มีอะไร", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCount(tt.text)
			if got != tt.expected {
				t.Errorf("ExtractCount(%q) = %d, 期望 %d", tt.text, got, tt.expected)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	// 固定参考时间,避免跨日执行时结果漂移
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		text     string
		expected time.Time
	}{
		{"相对分钟", "5 นาที", now.Add(-5 * time.Minute)},
		{"相对小时", "2 ชั่วโมง", now.Add(-2 * time.Hour)},
		{"相对天", "3 วัน", now.Add(-3 * 24 * time.Hour)},
		{"相对周", "1 สัปดาห์", now.Add(-7 * 24 * time.Hour)},
		{"绝对日期带年份和时刻", "17 มิถุนายน 2025 เวลา 14:30 น.",
			time.Date(2025, 6, 17, 14, 30, 0, 0, time.UTC)},
		{"绝对日期省略年份带时刻", "17 มิถุนายน เวลา 14:30 น.",
			time.Date(2025, 6, 17, 14, 30, 0, 0, time.UTC)},
		{"绝对日期带年份", "17 มิถุนายน 2025",
			time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)},
		{"仅日月全称", "17 มิถุนายน",
			time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)},
		{"仅日月缩写", "17 มิ.ย.",
			time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)},
		{"无法解析返回哨兵值", "อะไรก็ไม่รู้", SentinelEpoch},
		{"空串返回哨兵值", "", SentinelEpoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.text, now)
			if !got.Equal(tt.expected) {
				t.Errorf("ParseTimestamp(%q) = %v, 期望 %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestParseTimestampMonthNameNotMistakenAsRelative(t *testing.T) {
	// 泰语月份名不应误命中相对时间正则
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	got := ParseTimestamp("5 มกราคม 2025", now)
	expected := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("ParseTimestamp(\"5 มกราคม 2025\") = %v, 期望 %v", got, expected)
	}
}

// Package locale 泰语时间与数量解析
//
// 信息流页面上的时间与计数均为泰语本地化文本,存在两类:
//   - 相对时间: "5 นาที" (5分钟前)、"2 ชั่วโมง" (2小时前)
//   - 绝对时间: "17 มิถุนายน 2025 เวลา 14:30 น." (可省略年份和时间)
//
// 解析策略为尽力而为: 无法解析的输入返回哨兵值(1970纪元/0),
// 绝不返回错误 —— 单条坏时间戳不应中断一次长达数小时的采集。
package locale

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SentinelEpoch 时间解析失败时的哨兵值
var SentinelEpoch = time.Unix(0, 0).UTC()

// 泰语月份全称表
var thaiMonths = map[string]time.Month{
	"มกราคม":     time.January,
	"กุมภาพันธ์": time.February,
	"มีนาคม":     time.March,
	"เมษายน":     time.April,
	"พฤษภาคม":    time.May,
	"มิถุนายน":   time.June,
	"กรกฎาคม":    time.July,
	"สิงหาคม":    time.August,
	"กันยายน":    time.September,
	"ตุลาคม":     time.October,
	"พฤศจิกายน":  time.November,
	"ธันวาคม":    time.December,
}

// 泰语月份缩写表(Reel信息流使用缩写形式)
var thaiMonthAbbrevs = map[string]time.Month{
	"ม.ค.":  time.January,
	"ก.พ.":  time.February,
	"มี.ค.": time.March,
	"เม.ย.": time.April,
	"พ.ค.":  time.May,
	"มิ.ย.": time.June,
	"ก.ค.":  time.July,
	"ส.ค.":  time.August,
	"ก.ย.":  time.September,
	"ต.ค.":  time.October,
	"พ.ย.":  time.November,
	"ธ.ค.":  time.December,
}

// 相对时间单位表
var relativeUnits = []struct {
	name string
	dur  time.Duration
}{
	{"วินาที", time.Second},
	{"นาที", time.Minute},
	{"ชั่วโมง", time.Hour},
	{"วัน", 24 * time.Hour},
	{"สัปดาห์", 7 * 24 * time.Hour},
	{"ปี", 365 * 24 * time.Hour},
}

var (
	relRe = regexp.MustCompile(`(\d+)\s*(วินาที|นาที|ชั่วโมง|วัน|สัปดาห์|ปี)`)

	// "17 มิถุนายน 2025 เวลา 14:30 น." / "17 มิถุนายน เวลา 14:30 น."
	absTimeRe = regexp.MustCompile(`(\d{1,2})\s+(\S+)(?:\s+(\d{4}))?\s+เวลา\s+(\d{1,2}):(\d{2})`)

	// "17 มิถุนายน 2025"
	absYearRe = regexp.MustCompile(`(\d{1,2})\s+(\S+)\s+(\d{4})`)

	// "17 มิถุนายน" / "17 มิ.ย." (默认当前年份)
	absBareRe = regexp.MustCompile(`(\d{1,2})\s+([ก-๙]\S*)`)

	// 计数文本中的"数字 [数量单位]"片段,如 "ความคิดเห็น 1.2 พัน รายการ"、"2.5k"
	countRe = regexp.MustCompile(`([\d,\.]+)\s*(พัน|หมื่น|แสน|ล้าน|ร้อย|[kmbKMB])?`)
)

// lookupMonth 按全称/缩写查找月份,未知返回0
func lookupMonth(name string) time.Month {
	if m, ok := thaiMonths[name]; ok {
		return m
	}
	if m, ok := thaiMonthAbbrevs[name]; ok {
		return m
	}
	return 0
}

// ParseTimestamp 解析泰语时间文本为绝对时间
//
// 识别顺序: 相对时间 → 带时刻的绝对日期 → 带年份的绝对日期 → 仅"日 月"。
// 省略年份时取now的年份。全部失败返回SentinelEpoch。
func ParseTimestamp(text string, now time.Time) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return SentinelEpoch
	}

	// 相对时间: "5 นาที", "3 ชั่วโมง", "2 ปีที่แล้ว"
	if m := relRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			for _, unit := range relativeUnits {
				if unit.name == m[2] {
					return now.Add(-time.Duration(n) * unit.dur)
				}
			}
		}
	}

	// 绝对日期+时刻: "วันอังคารที่ 17 มิถุนายน 2025 เวลา 14:30 น."
	if m := absTimeRe.FindStringSubmatch(text); m != nil {
		if month := lookupMonth(m[2]); month != 0 {
			day, _ := strconv.Atoi(m[1])
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
			hour, _ := strconv.Atoi(m[4])
			minute, _ := strconv.Atoi(m[5])
			return time.Date(year, month, day, hour, minute, 0, 0, now.Location())
		}
	}

	// 绝对日期+年份: "17 มิถุนายน 2025"
	if m := absYearRe.FindStringSubmatch(text); m != nil {
		if month := lookupMonth(m[2]); month != 0 {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		}
	}

	// 仅"日 月"(含缩写月份),默认当前年份: "17 มิ.ย."
	if m := absBareRe.FindStringSubmatch(text); m != nil {
		if month := lookupMonth(m[2]); month != 0 {
			day, _ := strconv.Atoi(m[1])
			return time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
		}
	}

	return SentinelEpoch
}

// 泰语数量级单位表
var magnitudeUnits = []struct {
	name string
	mul  int64
}{
	{"ล้าน", 1000000},
	{"แสน", 100000},
	{"หมื่น", 10000},
	{"พัน", 1000},
	{"ร้อย", 100},
}

// ParseMagnitude 解析泰语/拉丁简写计数文本为整数
//
// 识别泰语数量级后缀("1.2 พัน" → 1200)和k/m/b简写("3.4m" → 3400000),
// 系数可带小数。均不匹配时剥离非数字字符兜底,完全失败返回0。
// 对已是纯数字的输入为幂等操作。
func ParseMagnitude(text string) int64 {
	t := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(text, ",", "")))
	if t == "" {
		return 0
	}

	// 泰语数量级后缀
	for _, unit := range magnitudeUnits {
		if strings.HasSuffix(t, unit.name) {
			numStr := strings.TrimSpace(strings.TrimSuffix(t, unit.name))
			coef, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				// 源页面偶见裸单位(如"พัน"表示约一千)
				coef = 1.0
			}
			return int64(coef * float64(unit.mul))
		}
	}

	// 拉丁简写后缀
	latinUnits := []struct {
		suffix string
		mul    float64
	}{
		{"k", 1e3},
		{"m", 1e6},
		{"b", 1e9},
	}
	for _, unit := range latinUnits {
		if strings.HasSuffix(t, unit.suffix) {
			coef, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, unit.suffix)), 64)
			if err == nil {
				return int64(coef * unit.mul)
			}
		}
	}

	// 纯数字
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return n
	}

	// 兜底: 剥离非数字字符
	var digits strings.Builder
	for _, r := range t {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ExtractCount 从混合文本中提取首个计数
// 如 "ความคิดเห็น 1.2 พัน รายการ" → 1200,未找到返回0
func ExtractCount(text string) int64 {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return ParseMagnitude(strings.TrimSpace(m[1] + " " + m[2]))
}

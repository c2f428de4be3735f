package models

import "time"

// FeedItem 信息流条目
// 分页控制器首次观察到某条目时创建,创建后不再修改
type FeedItem struct {
	ID               string            `json:"id"`                 // 稳定标识(条目URL或平台ID)
	DiscoveredAt     int64             `json:"discovered_at"`      // 条目时间戳(epoch毫秒)
	RawTimestampText string            `json:"raw_timestamp_text"` // 页面原始时间文本(泰语)
	Auxiliary        map[string]string `json:"auxiliary,omitempty"` // 信息流层附加字段(缩略图、描述等)
}

// DiscoveredTime 返回条目时间戳对应的time.Time
func (f FeedItem) DiscoveredTime() time.Time {
	return time.UnixMilli(f.DiscoveredAt)
}

// SeenIDSet 去重账本
// 单次采集运行的生命周期内只增不减,是唯一的去重机制
// 仅由分页驱动协程写入,无需加锁
type SeenIDSet struct {
	ids   map[string]struct{}
	order []string
}

// NewSeenIDSet 创建空的去重集合
func NewSeenIDSet() *SeenIDSet {
	return &SeenIDSet{ids: make(map[string]struct{})}
}

// Contains 检查ID是否已记录
func (s *SeenIDSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add 记录ID,返回是否为新ID
func (s *SeenIDSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Len 返回已记录ID数量
func (s *SeenIDSet) Len() int {
	return len(s.ids)
}

// Snapshot 按发现顺序返回所有ID(用于检查点)
func (s *SeenIDSet) Snapshot() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Restore 从检查点恢复已见ID(按原始发现顺序)
func (s *SeenIDSet) Restore(ids []string) {
	for _, id := range ids {
		s.Add(id)
	}
}

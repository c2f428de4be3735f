package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContentKind 内容类型
type ContentKind string

const (
	KindPost         ContentKind = "post"          // 普通帖子
	KindVideo        ContentKind = "video"         // 视频
	KindReel         ContentKind = "reel"          // 短视频Reel
	KindLive         ContentKind = "live"          // 直播回放
	KindComment      ContentKind = "comment"       // 评论
	KindReactionList ContentKind = "reaction-list" // 表态/分享名单
)

// OutcomeStatus 单条目提取结果状态
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success" // 全部字段提取成功
	OutcomePartial OutcomeStatus = "partial" // 个别字段回退为默认值
	OutcomeFatal   OutcomeStatus = "fatal"   // 重试耗尽,整条记录使用默认值
)

// ExtractionOutcome 提取结果
// Partial时Field/Reason标记首个回退字段,Fatal时Reason记录最终错误
type ExtractionOutcome struct {
	Status OutcomeStatus `json:"status"`
	Field  string        `json:"field,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// DetailRecord 归一化输出记录
// 所有内容类型共享同一信封结构,类型差异体现在Fields中
// 由批量分发器创建,返回后不可变,所有权移交编排器
type DetailRecord struct {
	RecordID     string            `json:"record_id"`     // 记录唯一ID (UUID)
	SourceID     string            `json:"source_id"`     // 平台侧稳定ID
	SourceURL    string            `json:"source_url"`    // 条目详情页URL
	Kind         ContentKind       `json:"kind"`          // 内容类型
	ExtractedAt  int64             `json:"extracted_at"`  // 提取完成时间(epoch毫秒)
	DiscoveredAt int64             `json:"discovered_at"` // 信息流发现时间戳(epoch毫秒,用于排序)
	Fields       map[string]any    `json:"fields"`        // 类型相关字段(正文、媒体URL、计数、时间戳)
	Outcome      ExtractionOutcome `json:"outcome"`       // 提取结果
}

// NewDetailRecord 创建记录信封
func NewDetailRecord(item FeedItem, kind ContentKind) *DetailRecord {
	return &DetailRecord{
		RecordID:     uuid.New().String(),
		SourceID:     item.ID,
		SourceURL:    item.ID,
		Kind:         kind,
		ExtractedAt:  time.Now().UnixMilli(),
		DiscoveredAt: item.DiscoveredAt,
		Fields:       make(map[string]any),
		Outcome:      ExtractionOutcome{Status: OutcomeSuccess},
	}
}

// MarkPartial 标记首个回退为默认值的字段
// 已经是Fatal的记录不降级
func (r *DetailRecord) MarkPartial(field, reason string) {
	if r.Outcome.Status == OutcomeFatal {
		return
	}
	if r.Outcome.Status == OutcomeSuccess {
		r.Outcome = ExtractionOutcome{Status: OutcomePartial, Field: field, Reason: reason}
	}
}

// MarkFatal 标记整条记录提取失败
func (r *DetailRecord) MarkFatal(reason string) {
	r.Outcome = ExtractionOutcome{Status: OutcomeFatal, Reason: reason}
}

// Classification 情感分类协作方的返回契约
// 由外部分类器在记录落库后调用,采集引擎本身不调用
type Classification struct {
	Sentiment    string `json:"sentiment"`
	Reason       string `json:"reason"`
	KeywordGroup string `json:"keyword_group"`
	Category     string `json:"category"`
}

// Classifier 情感分类协作方接口
// 调用方在采集完成后逐条送分类,引擎只约定契约不负责实现
type Classifier interface {
	Classify(ctx context.Context, text, imageURL string) (Classification, error)
}

// NoopClassifier 不做分类的默认实现
type NoopClassifier struct{}

// Classify 返回空分类结果
func (NoopClassifier) Classify(_ context.Context, _, _ string) (Classification, error) {
	return Classification{}, nil
}

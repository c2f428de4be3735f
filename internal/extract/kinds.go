package extract

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/socmint-lab/fbharvest/internal/locale"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/utils"
)

// 提取链耗尽时的文档化默认值
const (
	DefaultContent = "ไม่พบเนื้อหา" // 正文不可用
	DefaultText    = ""
)

// FieldKind 字段值类型
type FieldKind int

const (
	FieldText      FieldKind = iota // 原样文本
	FieldCount                      // 经泰语数量解析为int64
	FieldTimestamp                  // 经泰语时间解析为epoch毫秒
	FieldMediaList                  // 收集全部匹配的媒体URL
)

// FieldSpec 单字段提取配置
type FieldSpec struct {
	Name      string
	Kind      FieldKind
	Default   any
	Chain     Chain  // Text/Count/Timestamp字段的策略链
	Selector  string // MediaList字段的收集选择器
	Attr      string // MediaList字段的目标属性
}

// KindSpec 内容类型的提取配置
// 七份近似重复的脚本各自硬编码选择器,这里收敛为按类型注入的配置,
// 引擎本身只有一份
type KindSpec struct {
	Kind   models.ContentKind
	Fields []FieldSpec
}

// 导航栏等已知误匹配文案
var chromeDenylist = []string{
	"Following", "Follower", "Like", "Share", "Comment", "Subscribe",
	"ถูกใจเพจ", "กำลังติดตาม",
}

// Apply 在详情页快照上执行本类型的全部字段提取
// 链耗尽的字段代入默认值并标记Partial,绝不让单字段失败中断条目
func (ks KindSpec) Apply(doc *Document, rec *models.DetailRecord, now time.Time) {
	for _, f := range ks.Fields {
		if f.Kind == FieldMediaList {
			urls := make([]string, 0)
			doc.Find(f.Selector).Each(func(_ int, sel *goquery.Selection) {
				if v, ok := sel.Attr(f.Attr); ok && v != "" {
					urls = append(urls, v)
				}
			})
			// 纯文字帖没有媒体是常态,空列表不算字段失败
			rec.Fields[f.Name] = urls
			continue
		}

		value, strategyIdx, ok := f.Chain.Extract(doc)
		if !ok {
			utils.Debugf("字段提取链耗尽 [%s/%s],代入默认值", ks.Kind, f.Name)
			rec.Fields[f.Name] = f.Default
			rec.MarkPartial(f.Name, "提取链耗尽")
			continue
		}
		utils.Debugf("字段提取成功 [%s/%s],策略#%d", ks.Kind, f.Name, strategyIdx)

		switch f.Kind {
		case FieldCount:
			rec.Fields[f.Name] = locale.ExtractCount(value)
		case FieldTimestamp:
			rec.Fields[f.Name+"_text"] = value
			rec.Fields[f.Name] = locale.ParseTimestamp(value, now).UnixMilli()
		default:
			rec.Fields[f.Name] = value
		}
	}
}

// SpecForKind 返回内容类型对应的提取配置
func SpecForKind(kind models.ContentKind) KindSpec {
	switch kind {
	case models.KindVideo:
		// 短视频平台详情页: 内嵌状态JSON两个变体优先,DOM选择器兜底
		return KindSpec{
			Kind: kind,
			Fields: []FieldSpec{
				{
					Name:    "content",
					Kind:    FieldText,
					Default: DefaultContent,
					Chain: Chain{
						MinLength: 5,
						Strategies: []Strategy{
							JSONBlobStrategy{Label: "universal_data", Marker: "__UNIVERSAL_DATA_FOR_REHYDRATION__", Keys: []string{"desc", "description"}},
							JSONBlobStrategy{Label: "sigi_state", Marker: "SIGI_STATE", Keys: []string{"desc"}},
							DOMScanStrategy{Label: "dom_desc", Selectors: []string{
								`[data-e2e="browse-video-desc"]`,
								`[data-e2e="video-desc"]`,
								`h1[data-e2e="browse-video-title"]`,
							}, Denylist: chromeDenylist},
						},
					},
				},
				{
					Name:    "like_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_like", Selectors: []string{`strong[data-e2e="like-count"]`}},
						JSONBlobStrategy{Label: "sigi_stats", Marker: "SIGI_STATE", Keys: []string{"diggCount"}},
					}},
				},
				{
					Name:    "comment_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_comment", Selectors: []string{`strong[data-e2e="comment-count"]`}},
						JSONBlobStrategy{Label: "sigi_stats", Marker: "SIGI_STATE", Keys: []string{"commentCount"}},
					}},
				},
				{
					Name:    "share_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_share", Selectors: []string{`strong[data-e2e="share-count"]`}},
						JSONBlobStrategy{Label: "sigi_stats", Marker: "SIGI_STATE", Keys: []string{"shareCount"}},
					}},
				},
				{
					Name:    "saved_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_saved", Selectors: []string{
							`strong[data-e2e="bookmark-count"]`,
							`strong[data-e2e="collect-count"]`,
						}},
						JSONBlobStrategy{Label: "blob_saved", Marker: "__UNIVERSAL_DATA_FOR_REHYDRATION__", Keys: []string{"collectCount", "bookmarkCount", "saveCount"}},
					}},
				},
			},
		}

	case models.KindReel:
		return KindSpec{
			Kind: kind,
			Fields: []FieldSpec{
				{
					Name:    "content",
					Kind:    FieldText,
					Default: DefaultContent,
					Chain: Chain{
						MinLength: 2,
						Strategies: []Strategy{
							JSONBlobStrategy{Label: "bbox_message", Marker: `"__bbox"`, Keys: []string{"message_text", "text"}},
							DOMScanStrategy{Label: "dom_caption", Selectors: []string{
								`div[data-ad-rendering-role="story_message"]`,
								`div[dir="auto"]`,
							}, Denylist: chromeDenylist},
						},
					},
				},
				{
					Name:     "media_urls",
					Kind:     FieldMediaList,
					Selector: `video, div[data-video-id] img`,
					Attr:     "src",
				},
				{
					Name:    "play_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_play", Selectors: []string{`span:contains("ครั้ง")`}},
					}},
				},
			},
		}

	case models.KindLive:
		return KindSpec{
			Kind: kind,
			Fields: []FieldSpec{
				{
					Name:    "content",
					Kind:    FieldText,
					Default: DefaultContent,
					Chain: Chain{
						MinLength: 2,
						Strategies: []Strategy{
							JSONBlobStrategy{Label: "bbox_message", Marker: `"__bbox"`, Keys: []string{"message_text", "text"}},
							DOMScanStrategy{Label: "dom_caption", Selectors: []string{
								`a[aria-label]`,
							}, Attr: "aria-label", Denylist: chromeDenylist},
						},
					},
				},
				{
					Name:     "media_urls",
					Kind:     FieldMediaList,
					Selector: `img.x1rg5ohu`,
					Attr:     "src",
				},
				{
					Name:    "watch_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_watch", Selectors: []string{`span:contains("ครั้ง")`}},
					}},
				},
				{
					Name:    "published",
					Kind:    FieldTimestamp,
					Default: locale.SentinelEpoch.UnixMilli(),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_abbr", Selectors: []string{`span abbr`}, Attr: "aria-label"},
					}},
				},
			},
		}

	case models.KindComment:
		return KindSpec{
			Kind: kind,
			Fields: []FieldSpec{
				{
					Name:    "content",
					Kind:    FieldText,
					Default: DefaultText,
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_body", Selectors: []string{
							`div.x1lliihq div[dir="auto"]`,
							`div[role="article"] div[dir="auto"]`,
						}, Denylist: chromeDenylist},
					}},
				},
				{
					Name:    "author",
					Kind:    FieldText,
					Default: DefaultText,
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_author", Selectors: []string{
							`a[aria-hidden="false"]`,
							`div[role="article"] a`,
						}, Denylist: chromeDenylist},
					}},
				},
				{
					Name:     "author_avatar",
					Kind:     FieldMediaList,
					Selector: `svg image`,
					Attr:     "xlink:href",
				},
				{
					Name:    "published",
					Kind:    FieldTimestamp,
					Default: locale.SentinelEpoch.UnixMilli(),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_tooltip", Selectors: []string{`div[role="tooltip"]`}},
					}},
				},
			},
		}

	case models.KindReactionList:
		return KindSpec{
			Kind: kind,
			Fields: []FieldSpec{
				{
					Name:     "names",
					Kind:     FieldMediaList,
					Selector: `div[role="dialog"] a[role="link"] span`,
					Attr:     "aria-label",
				},
				{
					Name:    "total",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_total", Selectors: []string{`span:contains("คนอื่นๆ อีก")`}},
					}},
				},
			},
		}

	default: // KindPost
		return KindSpec{
			Kind: models.KindPost,
			Fields: []FieldSpec{
				{
					Name:    "content",
					Kind:    FieldText,
					Default: DefaultContent,
					Chain: Chain{
						MinLength: 2,
						Strategies: []Strategy{
							JSONBlobStrategy{Label: "bbox_message", Marker: `"__bbox"`, Keys: []string{"message_text", "text"}},
							DOMScanStrategy{Label: "dom_story", Selectors: []string{
								`div[data-ad-rendering-role="story_message"]`,
							}, Denylist: chromeDenylist},
						},
					},
				},
				{
					Name:     "media_urls",
					Kind:     FieldMediaList,
					Selector: `a[href*="/photo/"] img`,
					Attr:     "src",
				},
				{
					Name:    "comment_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_comment", Selectors: []string{
							`div[role="button"]:contains("ความคิดเห็น")`,
							`span:contains("ความคิดเห็น")`,
						}},
					}},
				},
				{
					Name:    "share_count",
					Kind:    FieldCount,
					Default: int64(0),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_share", Selectors: []string{
							`div[role="button"]:contains("แชร์")`,
							`span:contains("แชร์")`,
						}},
					}},
				},
				{
					Name:    "published",
					Kind:    FieldTimestamp,
					Default: locale.SentinelEpoch.UnixMilli(),
					Chain: Chain{Strategies: []Strategy{
						DOMScanStrategy{Label: "dom_tooltip", Selectors: []string{`div[role="tooltip"] span.x193iq5w`}},
						DOMScanStrategy{Label: "dom_abbr", Selectors: []string{`abbr`}, Attr: "aria-label"},
					}},
				},
			},
		}
	}
}

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint 采集检查点
// 每批详情提取完成后保存一次,--resume时恢复已见ID,
// 避免中断后重复采集同一批条目
type Checkpoint struct {
	RunID       string `json:"run_id"`        // 关联的运行ID
	FeedRootURL string `json:"feed_root_url"` // 信息流入口URL
	Kind        string `json:"kind"`          // 内容类型

	SeenIDs      []string `json:"seen_ids"`      // 已见条目ID(按发现顺序)
	RecordCount  int      `json:"record_count"`  // 已产出记录数
	LastBatch    int      `json:"last_batch"`    // 最后完成的批序号
	OlderReached bool     `json:"older_reached"` // 是否已到达截止时间

	Stats RunStats `json:"stats"` // 统计快照

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointFilename 生成检查点文件名
func CheckpointFilename(kind ContentKind) string {
	return fmt.Sprintf("checkpoint_%s.json", kind)
}

// SaveToFile 保存到文件
// 检查点先于记录文件落盘,目录可能尚未创建
func (c *Checkpoint) SaveToFile(path string) error {
	c.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCheckpointFromFile 从文件加载检查点
func LoadCheckpointFromFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}

	return &cp, nil
}

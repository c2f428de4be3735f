package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/socmint-lab/fbharvest/internal/models"
)

// Reporter 采集报告生成器
// 每次运行输出两份JSON: 记录序列(交给落库协作方)与运行摘要
type Reporter struct {
	outputDir string
	kind      models.ContentKind
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, kind models.ContentKind) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		kind:      kind,
	}
}

// RunReport 运行摘要
type RunReport struct {
	RunID       string            `json:"run_id"`
	FeedRootURL string            `json:"feed_root_url"`
	Kind        models.ContentKind `json:"kind"`
	Cutoff      *time.Time        `json:"cutoff,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Stats       models.RunStats   `json:"stats"`
}

// WriteRecords 保存记录序列
func (r *Reporter) WriteRecords(runID string, records []models.DetailRecord) (string, error) {
	dir := filepath.Join(r.outputDir, string(r.kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("records_%s.json", runID))
	if err := r.saveJSON(path, records); err != nil {
		return "", err
	}

	Infof("✅ 记录已保存: %s (%d条)", path, len(records))
	return path, nil
}

// WriteSummary 保存运行摘要
func (r *Reporter) WriteSummary(report RunReport) error {
	dir := filepath.Join(r.outputDir, string(r.kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run_%s.json", report.RunID))
	if err := r.saveJSON(path, report); err != nil {
		return err
	}

	Infof("✅ 运行摘要已保存: %s", path)
	return nil
}

// CheckpointPath 返回检查点文件路径
func (r *Reporter) CheckpointPath() string {
	return filepath.Join(r.outputDir, string(r.kind), models.CheckpointFilename(r.kind))
}

// saveJSON 保存JSON文件
func (r *Reporter) saveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeSameSite(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"lax小写", "lax", "Lax"},
		{"Lax混合大小写", "LAX", "Lax"},
		{"strict", "strict", "Strict"},
		{"no_restriction归一为None", "no_restriction", "None"},
		{"unspecified归一为None", "unspecified", "None"},
		{"空串归一为None", "", "None"},
		{"带空白", "  lax  ", "Lax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSameSite(tt.raw)
			if got != tt.expected {
				t.Errorf("NormalizeSameSite(%q) = %q, 期望 %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestSeenIDSet(t *testing.T) {
	s := NewSeenIDSet()

	if !s.Add("a") {
		t.Error("首次Add应返回true")
	}
	if s.Add("a") {
		t.Error("重复Add应返回false")
	}
	if !s.Contains("a") {
		t.Error("Contains未找到已记录的ID")
	}
	if s.Contains("b") {
		t.Error("Contains不应找到未记录的ID")
	}

	s.Add("b")
	s.Add("c")
	if s.Len() != 3 {
		t.Errorf("Len() = %d, 期望 3", s.Len())
	}

	snap := s.Snapshot()
	if len(snap) != 3 || snap[0] != "a" || snap[1] != "b" || snap[2] != "c" {
		t.Errorf("Snapshot() = %v, 应按发现顺序返回", snap)
	}

	// 从快照恢复后去重依然生效
	restored := NewSeenIDSet()
	restored.Restore(snap)
	if restored.Add("b") {
		t.Error("恢复后的集合不应把已见ID当新ID")
	}
	if !restored.Add("d") {
		t.Error("恢复后的集合应接受新ID")
	}
}

func TestDetailRecordOutcome(t *testing.T) {
	item := FeedItem{ID: "https://example.com/posts/1", DiscoveredAt: 1718600000000}
	rec := NewDetailRecord(item, KindPost)

	if rec.Outcome.Status != OutcomeSuccess {
		t.Fatalf("新记录状态 = %s, 期望 success", rec.Outcome.Status)
	}
	if rec.RecordID == "" {
		t.Fatal("记录应有UUID")
	}

	rec.MarkPartial("content", "提取链耗尽")
	if rec.Outcome.Status != OutcomePartial || rec.Outcome.Field != "content" {
		t.Errorf("首次MarkPartial后 Outcome = %+v", rec.Outcome)
	}

	// 只记录首个回退字段
	rec.MarkPartial("comment_count", "提取链耗尽")
	if rec.Outcome.Field != "content" {
		t.Errorf("Outcome.Field = %s, 不应被第二个回退字段覆盖", rec.Outcome.Field)
	}

	rec.MarkFatal("重试耗尽")
	if rec.Outcome.Status != OutcomeFatal {
		t.Errorf("MarkFatal后状态 = %s", rec.Outcome.Status)
	}

	// Fatal后partial不再生效
	rec.MarkPartial("share_count", "提取链耗尽")
	if rec.Outcome.Status != OutcomeFatal {
		t.Errorf("Fatal记录被MarkPartial降级为 %s", rec.Outcome.Status)
	}
}

func TestRunConfigValidate(t *testing.T) {
	valid := RunConfig{
		FeedRootURL:     "https://example.com/page",
		Kind:            KindPost,
		BatchSize:       10,
		MaxScrollRounds: 50,
		StallRetries:    3,
		MaxRetries:      2,
		NavTimeout:      30,
	}

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{"有效配置", func(c *RunConfig) {}, false},
		{"缺少URL", func(c *RunConfig) { c.FeedRootURL = "" }, true},
		{"未知内容类型", func(c *RunConfig) { c.Kind = "story" }, true},
		{"批大小过大", func(c *RunConfig) { c.BatchSize = 51 }, true},
		{"批大小过小", func(c *RunConfig) { c.BatchSize = 0 }, true},
		{"空轮重试为0", func(c *RunConfig) { c.StallRetries = 0 }, true},
		{"导航超时越界", func(c *RunConfig) { c.NavTimeout = 301 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint_post.json")

	cp := &Checkpoint{
		RunID:       "abc123",
		FeedRootURL: "https://example.com/page",
		Kind:        "post",
		SeenIDs:     []string{"u1", "u2"},
		RecordCount: 2,
		LastBatch:   1,
	}
	if err := cp.SaveToFile(path); err != nil {
		t.Fatalf("保存检查点失败: %v", err)
	}

	loaded, err := LoadCheckpointFromFile(path)
	if err != nil {
		t.Fatalf("加载检查点失败: %v", err)
	}
	if loaded.RunID != cp.RunID || len(loaded.SeenIDs) != 2 || loaded.SeenIDs[1] != "u2" {
		t.Errorf("检查点往返后数据不一致: %+v", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("保存时应刷新UpdatedAt")
	}
}

func TestLoadCookiesNormalization(t *testing.T) {
	raw := `[
		{"name":"c_user","value":"123","domain":".example.com","sameSite":"no_restriction"},
		{"name":"xs","value":"tok","domain":".example.com","path":"","sameSite":"lax"}
	]`
	path := filepath.Join(t.TempDir(), "cookie.json")
	if err := writeFile(path, raw); err != nil {
		t.Fatal(err)
	}

	cookies, err := LoadCookies(path)
	if err != nil {
		t.Fatalf("加载cookie失败: %v", err)
	}
	if cookies[0].SameSite != "None" {
		t.Errorf("no_restriction应归一为None, 实际 %s", cookies[0].SameSite)
	}
	if cookies[1].SameSite != "Lax" {
		t.Errorf("lax应归一为Lax, 实际 %s", cookies[1].SameSite)
	}
	if cookies[1].Path != "/" {
		t.Errorf("缺失的path应补为/, 实际 %q", cookies[1].Path)
	}
}

func TestLoadCookiesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie.json")
	if err := writeFile(path, "[]"); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCookies(path); err == nil {
		t.Error("空cookie列表应返回错误")
	}
}

// writeFile 测试辅助,校验内容是合法JSON后写盘
func writeFile(path, content string) error {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

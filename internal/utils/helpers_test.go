package utils

import (
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTPS URL", "https://example.com/page", false},
		{"有效的HTTP URL", "http://example.com", false},
		{"无效的协议", "ftp://example.com", true},
		{"无协议", "example.com", true},
		{"空URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestParseCutoff(t *testing.T) {
	t.Run("空串表示不限", func(t *testing.T) {
		got, err := ParseCutoff("")
		if err != nil || got != nil {
			t.Errorf("ParseCutoff(\"\") = (%v, %v), 期望 (nil, nil)", got, err)
		}
	})

	t.Run("绝对日期", func(t *testing.T) {
		got, err := ParseCutoff("2025-06-17")
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		expected := time.Date(2025, 6, 17, 0, 0, 0, 0, time.Local)
		if !got.Equal(expected) {
			t.Errorf("ParseCutoff = %v, 期望 %v", got, expected)
		}
	})

	t.Run("绝对日期带时刻", func(t *testing.T) {
		got, err := ParseCutoff("2025-06-17 14:30")
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		if got.Hour() != 14 || got.Minute() != 30 {
			t.Errorf("ParseCutoff = %v, 时刻解析错误", got)
		}
	})

	t.Run("相对天数", func(t *testing.T) {
		before := time.Now().AddDate(0, 0, -7)
		got, err := ParseCutoff("7d")
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		after := time.Now().AddDate(0, 0, -7)
		if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
			t.Errorf("ParseCutoff(\"7d\") = %v, 应为7天前", got)
		}
	})

	t.Run("无效格式", func(t *testing.T) {
		if _, err := ParseCutoff("下周三"); err == nil {
			t.Error("无效格式应返回错误")
		}
	})
}

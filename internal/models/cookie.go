package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cookie 会话凭据(浏览器导出的Cookie JSON数组中的一项)
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expirationDate,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// NormalizeSameSite 归一化sameSite取值为 None/Lax/Strict
// 浏览器插件导出的取值五花八门(no_restriction、unspecified、空串),
// 缺失或无法识别时默认None
func NormalizeSameSite(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lax":
		return "Lax"
	case "strict":
		return "Strict"
	default:
		return "None"
	}
}

// LoadCookies 从文件加载Cookie列表并归一化sameSite
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取Cookie文件失败: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("解析Cookie文件失败: %w", err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("Cookie文件中没有有效的Cookie")
	}

	for i := range cookies {
		cookies[i].SameSite = NormalizeSameSite(cookies[i].SameSite)
		if cookies[i].Path == "" {
			cookies[i].Path = "/"
		}
	}

	return cookies, nil
}

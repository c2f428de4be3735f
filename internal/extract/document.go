// Package extract 提取策略链
//
// 同一逻辑字段在渲染后的页面上往往有多条冗余获取通道,健壮性各不相同:
// 页面内嵌状态JSON最稳定,DOM选择器最易随版式改版失效。
// 本包按优先级依次尝试各策略,取首个非空且通过长度校验的结果。
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document 详情页静态快照
// 由浏览器适配层对已加载页面取一次HTML构建,策略在快照上为纯函数,
// 可脱离浏览器测试
type Document struct {
	raw     string
	doc     *goquery.Document
	scripts []string
}

// NewDocument 从页面HTML构建快照
func NewDocument(rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	return &Document{
		raw:     rawHTML,
		doc:     doc,
		scripts: splitScripts(rawHTML),
	}, nil
}

// splitScripts 用HTML分词器切出所有<script>正文
// 内嵌状态JSON体积可达数MB,分词器单遍扫描即可,无需建树
func splitScripts(rawHTML string) []string {
	var scripts []string

	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	inScript := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return scripts
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				if text := string(tokenizer.Text()); strings.TrimSpace(text) != "" {
					scripts = append(scripts, text)
				}
			}
		}
	}
}

// HTML 返回原始页面HTML
func (d *Document) HTML() string {
	return d.raw
}

// Scripts 返回所有script标签正文
func (d *Document) Scripts() []string {
	return d.scripts
}

// Find 按CSS选择器查找元素
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

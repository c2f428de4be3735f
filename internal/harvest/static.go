package harvest

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"

	"github.com/socmint-lab/fbharvest/internal/core"
	"github.com/socmint-lab/fbharvest/internal/models"
)

// StaticFetcher 静态HTTP兜底通道
// 浏览器通道重试耗尽时直接抓详情页原始HTML,内嵌状态JSON通常
// 已包含在首屏响应中,提取链的结构化策略仍然可用
type StaticFetcher struct {
	base         *colly.Collector
	cookieHeader string
}

// NewStaticFetcher 创建静态兜底通道并装配会话cookie
func NewStaticFetcher(cfg core.HarvestConfig, cookies []models.Cookie) *StaticFetcher {
	timeout := time.Duration(cfg.NavTimeout) * time.Second

	c := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	c.SetClient(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: timeout,
	})
	c.SetRequestTimeout(timeout)

	// 同一份会话cookie在每个请求上带齐
	var pairs []string
	for _, ck := range cookies {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}

	return &StaticFetcher{
		base:         c,
		cookieHeader: strings.Join(pairs, "; "),
	}
}

// FetchHTML 实现DetailFetcher接口
// 每次抓取克隆collector,批内goroutine并发调用互不串回调
func (s *StaticFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := s.base.Clone()

	var html string
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		if s.cookieHeader != "" {
			r.Headers.Set("Cookie", s.cookieHeader)
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		r.Headers.Set("Accept-Language", "th-TH,th;q=0.9,en;q=0.8")
	})

	c.OnResponse(func(r *colly.Response) {
		body, err := decompressBody(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			fetchErr = err
			return
		}
		html = string(body)
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("静态抓取 %s 失败: %w", url, err)
	}
	if fetchErr != nil {
		return "", fmt.Errorf("静态抓取 %s 失败: %w", url, fetchErr)
	}
	if html == "" {
		return "", fmt.Errorf("静态抓取 %s 返回空响应", url)
	}
	return html, nil
}

// decompressBody 按Content-Encoding解压响应体
// 支持gzip/deflate/br,未知编码按原文返回
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		log.Warn().Msgf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// Package metadata 从电影详情页抽取展示信息（标题、海报）。
package metadata

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/FilmM3U/internal/domain"
	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
)

// 站点契约：上游改版时这些选择器静默失效（得到哨兵标题/空海报，而非硬错误）。
const (
	titleSelector  = ".text-bold"
	posterSelector = ".media-cover img"
)

// Extract 抓取详情页并抽取 (title, posterURL)。
//
// 没有失败路径：抓取失败得到哨兵标题 + 空海报；
// 元素缺失同样回退。调用方用哨兵标题识别畸形记录。
func Extract(ctx context.Context, c *http.Client, detailURL string) (title, posterURL string) {
	body, err := httpx.FetchPage(ctx, c, detailURL)
	if err != nil {
		return domain.SentinelTitle, ""
	}
	return Parse(body, siteOrigin(detailURL))
}

// Parse 是纯函数：从详情页 HTML 抽取标题与海报地址（相对地址对 base 归一）。
func Parse(html []byte, base string) (title, posterURL string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.SentinelTitle, ""
	}

	title = strings.Join(strings.Fields(doc.Find(titleSelector).First().Text()), " ")
	if title == "" {
		title = domain.SentinelTitle
	}

	if src, ok := doc.Find(posterSelector).First().Attr("src"); ok {
		posterURL = resolveURL(base, src)
	}
	return title, posterURL
}

// siteOrigin 取 detailURL 的 scheme://host，作为相对海报地址的归一基准。
func siteOrigin(detailURL string) string {
	u, err := url.Parse(detailURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

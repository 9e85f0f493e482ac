// Package crawl 实现电影列表页的顺序分页抓取。
package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
)

const (
	// DefaultPageLimit 是分页的硬上限（对抗“下一页控件永不消失”的坏站点）。
	DefaultPageLimit = 100
	// DefaultPageDelay 是相邻两次列表页抓取之间的固定间隔（礼貌性限速）。
	DefaultPageDelay = 500 * time.Millisecond
)

// 站点契约：这些选择器一旦上游改版就会静默失效（空结果，而非硬错误）。
const (
	listingLinkSelector = `a.uk-position-cover[href*='/film/']`
	nextPageSelector    = `.uk-pagination .uk-pagination-next`
)

// ErrEmptyFirstPage 表示第 1 页一个链接都没拿到。
// 这是整次运行唯一的致命错误：没有可处理对象，不产出输出文件。
var ErrEmptyFirstPage = errors.New("列表第 1 页为空（站点不可达或选择器失效）")

// Result 是一次完整抓取的产出。
type Result struct {
	// All 是全部去重后的详情页 URL（保持发现顺序）。
	All []string
	// Newest 是第 1 页发现的子集（输出分组用的“最新”组）。
	Newest []string
	// Pages 是实际抓取的页数。
	Pages int
}

// Crawler 顺序翻页抓取列表页并抽取详情页链接。
//
// 约束：
// - 分页严格顺序：每页的“有无下一页”信号决定是否继续
// - 翻页间隔由 rate.Limiter 控制（限速是礼貌，不是正确性要求）
// - 跨页按 URL 精确去重（集合语义）
type Crawler struct {
	client  *http.Client
	base    string // 站点源，例如 https://dizifun5.com
	limit   int
	limiter *rate.Limiter
}

// New 构造 Crawler。pageLimit<=0 与 pageDelay<=0 使用默认值。
func New(client *http.Client, baseURL string, pageLimit int, pageDelay time.Duration) *Crawler {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	if pageDelay <= 0 {
		pageDelay = DefaultPageDelay
	}
	return &Crawler{
		client:  client,
		base:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		limit:   pageLimit,
		limiter: rate.NewLimiter(rate.Every(pageDelay), 1),
	}
}

// All 从第 1 页开始抓到终止条件为止。
//
// 终止条件（任一满足即停）：
// - 当前页零链接（视为内容尽头，即使下一页控件还在）
// - 无下一页控件
// - 达到页数上限
func (c *Crawler) All(ctx context.Context) (Result, error) {
	var res Result
	seen := make(map[string]struct{}, 256)

	for page := 1; page <= c.limit; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, err
		}

		links, hasNext, err := c.fetchPage(ctx, page)
		if err != nil || len(links) == 0 {
			if page == 1 {
				if err != nil {
					return res, fmt.Errorf("%w：%v", ErrEmptyFirstPage, err)
				}
				return res, ErrEmptyFirstPage
			}
			// 后续页失败/为空：当作内容尽头，不影响已收集结果。
			return res, nil
		}
		res.Pages = page

		for _, l := range links {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			res.All = append(res.All, l)
			if page == 1 {
				res.Newest = append(res.Newest, l)
			}
		}

		if !hasNext {
			return res, nil
		}
	}
	return res, nil
}

// PageURL 返回第 n 页的列表页地址。
func (c *Crawler) PageURL(n int) string {
	return fmt.Sprintf("%s/filmler?p=%d", c.base, n)
}

func (c *Crawler) fetchPage(ctx context.Context, n int) (links []string, hasNext bool, err error) {
	body, err := httpx.FetchPage(ctx, c.client, c.PageURL(n))
	if err != nil {
		return nil, false, err
	}
	return ParseListing(body, c.base)
}

// ParseListing 从列表页 HTML 抽取详情页链接与“有下一页”信号（页内去重，保持顺序）。
func ParseListing(html []byte, base string) (links []string, hasNext bool, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	seen := make(map[string]struct{}, 32)
	doc.Find(listingLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		full := resolveURL(base, href)
		if full == "" {
			return
		}
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		links = append(links, full)
	})

	hasNext = doc.Find(nextPageSelector).Length() > 0
	return links, hasNext, nil
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

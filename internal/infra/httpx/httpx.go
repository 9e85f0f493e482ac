package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// PageTimeout 是列表页/详情页/iframe 抓取的总超时。
	PageTimeout = 45 * time.Second
	// RedirectTimeout 是 playhouse 跳转探测（GET + 跟随重定向）的总超时。
	RedirectTimeout = 15 * time.Second
	// ProbeTimeout 是候选子域 HEAD 探测的总超时（轻量检查，必须短）。
	ProbeTimeout = 10 * time.Second
)

// browserHeaders 是固定的桌面浏览器请求头集合。
//
// 约束：
// - 集合固定，不做 UA 轮换（站点按“像不像浏览器”放行，不按频控指纹）
// - 不手工设置 Accept-Encoding：交给 net/http 透明协商 gzip，否则要自己解压
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "tr-TR,tr;q=0.8,en-US;q=0.5,en;q=0.3",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Transport 把“固定浏览器头”固化为统一策略。
//
// 设计目标：crawl/metadata/resolve 只负责“定位页面 + 解析内容”，
// 不关心请求头细节；所有出站请求经过同一个 RoundTripper。
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	for k, v := range browserHeaders {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return base.RoundTrip(r)
}

// NewClient 构造带固定浏览器头与总超时的 HTTP client。
// 默认跟随重定向（Go 标准行为，上限 10 次）——playhouse 的跳转探测依赖该行为。
func NewClient(timeout time.Duration) *http.Client {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Transport: &Transport{Base: base},
		Timeout:   timeout,
	}
}

// NewPageClient 用于 HTML 页面抓取（列表页/详情页/iframe）。
func NewPageClient() *http.Client { return NewClient(PageTimeout) }

// NewProbeClient 用于候选子域的轻量 HEAD 探测。
func NewProbeClient() *http.Client { return NewClient(ProbeTimeout) }

// StatusError 表示站点返回了非 200 的 HTTP 状态码。
// 上层可据此把失败归类为 fetch_failed，并保留 URL 方便定位站点漂移。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d（%s）", e.StatusCode, e.URL)
}

// FetchPage 发送 GET 并要求 HTTP 200，返回完整 body。
//
// 所有失败（超时/网络/非 200）对调用方都是非致命的：返回 error，
// 由调用方替换为占位值并继续处理下一项。不做自动重试。
func FetchPage(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// FinalRedirectURL 发送 GET 并跟随重定向，返回最终落地 URL。
// body 内容不关心，读完即弃（保持连接可复用）。
func FinalRedirectURL(ctx context.Context, c *http.Client, url string) (string, error) {
	if c == nil {
		return "", errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.Request == nil || resp.Request.URL == nil {
		return "", errors.New("无法取得最终重定向 URL")
	}
	return resp.Request.URL.String(), nil
}

// ProbeOK 发送 HEAD（跟随重定向），返回最终状态是否为 200。
// 探测失败（超时/网络错误）一律视为 false，不区分原因。
func ProbeOK(ctx context.Context, c *http.Client, url string) bool {
	if c == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

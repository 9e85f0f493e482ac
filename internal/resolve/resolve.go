// Package resolve 实现清单解析流水线：
// 详情页 → 定位播放器引用 → 后端分类 → 后端专属解析 → proxy 改写。
package resolve

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/FilmM3U/internal/domain"
	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
	"github.com/John-Robertt/FilmM3U/internal/proxyurl"
)

// playerSelectors 是播放器 iframe 的选择器链。
//
// 约束：
// - 顺序即优先级，首个 src 非空且非占位的元素胜出（gujan 优先于 playhouse）
// - 保持为显式列表而非嵌套条件：优先级要能独立测试
var playerSelectors = []string{
	`iframe[title="dizifunplay"]`,
	`iframe[id="altPlayerFrame"]`,
	`iframe[src*="gujan.premiumvideo.click"]`,
	`iframe[title="playhouse"]`,
	`iframe[src*="playhouse.premiumvideo.click"]`,
	`iframe[src*="premiumvideo.click/player"]`,
}

// Error 是解析流水线的阶段化错误。
// 上层据 Stage 把失败归类为 fetch_failed / parse_failed / classify_failed。
type Error struct {
	URL   string // 出错时正在处理的地址（详情页或 iframe）
	Stage string // "fetch" / "locate" / "classify" / "extract"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage=%s url=%s: %v", e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolution 是一次成功解析的产出。
type Resolution struct {
	// ManifestURL 已经过 proxy 改写（调用方不得再次改写）。
	ManifestURL string
	Backend     domain.BackendKind
	// Degraded 表示 premium 后端全部探测失败后落到未验证默认子域。
	Degraded bool
}

// Resolver 对单个详情页执行清单解析。单部电影的失败互不影响。
type Resolver struct {
	pageClient     *http.Client // 页面/iframe 抓取（45s）
	redirectClient *http.Client // playhouse 跳转探测（15s）
	proxyBase      string

	// 测试替换点：默认实现打网络。
	finalRedirect func(ctx context.Context, url string) (string, error)
	probe         func(ctx context.Context, url string) bool
}

// New 构造 Resolver。probeClient 用于候选子域 HEAD 探测（10s 级短超时）。
func New(pageClient, redirectClient, probeClient *http.Client, proxyBase string) *Resolver {
	r := &Resolver{
		pageClient:     pageClient,
		redirectClient: redirectClient,
		proxyBase:      proxyBase,
	}
	r.finalRedirect = func(ctx context.Context, url string) (string, error) {
		return httpx.FinalRedirectURL(ctx, r.redirectClient, url)
	}
	r.probe = func(ctx context.Context, url string) bool {
		return httpx.ProbeOK(ctx, probeClient, url)
	}
	return r
}

// Resolve 把详情页解析为（已 proxy 改写的）清单地址。
func (r *Resolver) Resolve(ctx context.Context, detailURL string) (Resolution, error) {
	body, err := httpx.FetchPage(ctx, r.pageClient, detailURL)
	if err != nil {
		return Resolution{}, &Error{URL: detailURL, Stage: "fetch", Err: err}
	}

	ref, ok := LocatePlayerRef(body)
	if !ok {
		return Resolution{}, &Error{URL: detailURL, Stage: "locate", Err: fmt.Errorf("未找到播放器引用（选择器链全部落空）")}
	}
	if ref.Kind == domain.BackendUnknown {
		return Resolution{}, &Error{URL: detailURL, Stage: "classify", Err: fmt.Errorf("播放器引用不属于任何已知后端：%q", ref.Src)}
	}

	var (
		manifest string
		degraded bool
	)
	switch ref.Kind {
	case domain.BackendGujan:
		manifest, err = r.resolveGujan(ctx, ref.Src)
	case domain.BackendPlayhouse, domain.BackendGenericPremium:
		manifest, degraded, err = r.resolvePremium(ctx, ref.Src)
	}
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		ManifestURL: proxyurl.Rewrite(r.proxyBase, manifest),
		Backend:     ref.Kind,
		Degraded:    degraded,
	}, nil
}

// LocatePlayerRef 按选择器链在详情页 HTML 中定位播放器引用并分类。
// 纯函数：相同输入 => 相同输出。
func LocatePlayerRef(html []byte) (domain.PlayerRef, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.PlayerRef{}, false
	}

	for _, sel := range playerSelectors {
		src, ok := doc.Find(sel).First().Attr("src")
		if !ok {
			continue
		}
		src = strings.TrimSpace(src)
		if src == "" || isBlankSrc(src) {
			continue
		}
		return domain.PlayerRef{Kind: domain.ClassifyBackend(src), Src: src}, true
	}
	return domain.PlayerRef{}, false
}

// isBlankSrc 识别占位 src（空播放器槽位）。
func isBlankSrc(src string) bool {
	s := strings.ToLower(src)
	return s == "blank" || s == "about:blank"
}

// normalizeScheme 把协议相对地址（//host/…）归一为 https。
func normalizeScheme(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

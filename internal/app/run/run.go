package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/FilmM3U/internal/config"
	"github.com/John-Robertt/FilmM3U/internal/crawl"
	"github.com/John-Robertt/FilmM3U/internal/domain"
	"github.com/John-Robertt/FilmM3U/internal/infra/fsx"
	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
	"github.com/John-Robertt/FilmM3U/internal/metadata"
	"github.com/John-Robertt/FilmM3U/internal/playlist"
	"github.com/John-Robertt/FilmM3U/internal/resolve"
)

// ReportName 是与播放列表同目录落盘的报告文件名。
const ReportName = "report.json"

// Execute 执行一次完整抓取（翻页 → 逐片解析 → 写播放列表 + 报告），
// 并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单部电影的失败不影响其他）。
// 唯一的致命失败是第 1 页抓不到任何内容：此时不写任何输出文件。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		BaseURL:   eff.BaseURL,
		Output:    eff.Output,
		Grouped:   eff.Grouped,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}

	pageClient := httpx.NewPageClient()

	crawler := crawl.New(pageClient, eff.BaseURL, eff.PageLimit, eff.PageDelay)

	crawlStarted := time.Now()
	res, err := crawler.All(ctx)
	if err != nil {
		// 第 1 页失败是致命的：站点结构变化或完全不可达，产出只会是空列表。
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCrawlFailed, fmt.Sprintf("抓取列表失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	crawlDur := time.Since(crawlStarted)

	rr.Pages = res.Pages

	if obs != nil {
		obs.OnPhaseDone("crawl", map[string]any{
			"pages":  res.Pages,
			"movies": len(res.All),
			"newest": len(res.Newest),
		}, crawlDur)
	}

	resolver := resolve.New(pageClient, httpx.NewClient(httpx.RedirectTimeout), httpx.NewProbeClient(), eff.ProxyURL)

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("resolve", map[string]any{
			"workers":      workers,
			"total_movies": len(res.All),
		}, 0)
	}

	// 按电影并发；records 以详情页 URL 为键收集，输出时恢复发现顺序。
	var (
		mu      sync.Mutex
		records = make(map[string]domain.MovieRecord, len(res.All))
		done    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, detailURL := range res.All {
		detailURL := detailURL
		g.Go(func() error {
			oneStarted := time.Now()
			rec, item := processOne(gctx, pageClient, resolver, detailURL)

			mu.Lock()
			records[detailURL] = rec
			rr.Items = append(rr.Items, item)
			done++
			idx := done
			mu.Unlock()

			if obs != nil {
				obs.OnItemDone(idx, len(res.All), detailURL, item, time.Since(oneStarted))
			}
			return nil
		})
	}
	// worker 从不返回错误（失败降级为 item），Wait 只做汇合。
	_ = g.Wait()

	ordered := make([]domain.MovieRecord, 0, len(res.All))
	for _, u := range res.All {
		ordered = append(ordered, records[u])
	}

	newest := make(map[string]bool, len(res.Newest))
	for _, u := range res.Newest {
		newest[u] = true
	}

	data := playlist.Encode(ordered, playlist.Options{
		Grouped:    eff.Grouped,
		NewestURLs: newest,
	})

	outDir, outName := splitOutput(eff.Output)
	if err := fsx.WriteFileAtomicReplace(outDir, outName, data); err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写入播放列表失败：%v", err)))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	// 报告与播放列表同目录落盘；stdout 输出由 CLI 层负责。
	// 报告写失败不再回写进报告本身（会造成自引用），静默即可。
	if b, e := json.MarshalIndent(rr, "", "  "); e == nil {
		_ = fsx.WriteFileAtomicReplace(outDir, ReportName, b)
	}

	return rr
}

// processOne 处理单部电影：详情页元数据 + 清单解析。
// 失败一律表达为 item 状态，绝不返回 error（单部失败不影响其他）。
func processOne(ctx context.Context, pageClient *http.Client, r *resolve.Resolver, detailURL string) (domain.MovieRecord, domain.ItemResult) {
	title, posterURL := metadata.Extract(ctx, pageClient, detailURL)

	rec := domain.MovieRecord{
		DetailURL: detailURL,
		Title:     title,
		PosterURL: posterURL,
	}
	item := domain.ItemResult{
		URL:   detailURL,
		Title: title,
	}

	resolution, err := r.Resolve(ctx, detailURL)
	if err != nil {
		item.Status = domain.StatusFailed
		fillResolveError(&item, err)
		return rec, item
	}

	rec.ManifestURL = resolution.ManifestURL
	item.Backend = string(resolution.Backend)
	item.Degraded = resolution.Degraded

	// 清单拿到了但标题仍是哨兵：记录畸形，丢弃而非写入垃圾条目。
	if !rec.Writable() {
		item.Status = domain.StatusDropped
		item.ErrorCode = domain.ErrCodeParseFailed
		item.ErrorMsg = "详情页未提供可用标题（哨兵标题），条目不写入播放列表"
		return rec, item
	}

	item.Status = domain.StatusResolved
	item.ManifestURL = resolution.ManifestURL
	return rec, item
}

// fillResolveError 把解析流水线的阶段化错误映射为稳定 error_code。
func fillResolveError(item *domain.ItemResult, err error) {
	var re *resolve.Error
	if errors.As(err, &re) {
		switch re.Stage {
		case "fetch":
			item.ErrorCode = domain.ErrCodeFetchFailed
		case "classify":
			item.ErrorCode = domain.ErrCodeClassifyFailed
		default: // locate / extract：页面拿到了但结构不是预期
			item.ErrorCode = domain.ErrCodeParseFailed
		}
		item.ErrorMsg = re.Error()
		return
	}
	item.ErrorCode = domain.ErrCodeFetchFailed
	item.ErrorMsg = err.Error()
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// splitOutput 把输出路径拆为 (目录, 文件名)，供原子写使用。
func splitOutput(output string) (dir, name string) {
	return filepath.Dir(output), filepath.Base(output)
}

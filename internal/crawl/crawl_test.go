package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
)

// listingPage 拼一个最小可用的列表页 HTML。
func listingPage(hrefs []string, hasNext bool) string {
	var b strings.Builder
	b.WriteString("<html><body><div>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a class="uk-position-cover" href="%s">x</a>`, h)
	}
	b.WriteString("</div>")
	if hasNext {
		b.WriteString(`<ul class="uk-pagination"><li class="uk-pagination-next"><a>&gt;</a></li></ul>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestCrawler(t *testing.T, pages map[int]string, limit int) (*Crawler, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/filmler" {
			http.NotFound(w, r)
			return
		}
		n, _ := strconv.Atoi(r.URL.Query().Get("p"))
		body, ok := pages[n]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(httpx.NewPageClient(), srv.URL, limit, time.Millisecond), srv
}

func TestAll_DedupAcrossPagesAndNewestSubset(t *testing.T) {
	pages := map[int]string{
		1: listingPage([]string{"/film/a", "/film/b", "/film/a"}, true),
		2: listingPage([]string{"/film/b", "/film/c"}, false),
	}
	c, srv := newTestCrawler(t, pages, 0)

	res, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{srv.URL + "/film/a", srv.URL + "/film/b", srv.URL + "/film/c"}
	if len(res.All) != len(want) {
		t.Fatalf("期望 %d 个去重链接，实际 %d：%v", len(want), len(res.All), res.All)
	}
	for i := range want {
		if res.All[i] != want[i] {
			t.Fatalf("链接顺序不符合预期：idx=%d 期望 %q 实际 %q", i, want[i], res.All[i])
		}
	}
	// 集合性质：无重复。
	seen := map[string]bool{}
	for _, u := range res.All {
		if seen[u] {
			t.Fatalf("出现重复链接：%q", u)
		}
		seen[u] = true
	}
	if len(res.Newest) != 2 || res.Newest[0] != srv.URL+"/film/a" || res.Newest[1] != srv.URL+"/film/b" {
		t.Fatalf("newest 子集不符合预期：%v", res.Newest)
	}
	if res.Pages != 2 {
		t.Fatalf("期望抓 2 页，实际 %d", res.Pages)
	}
}

func TestAll_TerminatesAtPageLimit(t *testing.T) {
	// 每页都声称有下一页：必须被页数上限兜住。
	pages := map[int]string{}
	for i := 1; i <= 10; i++ {
		pages[i] = listingPage([]string{fmt.Sprintf("/film/p%d", i)}, true)
	}
	c, _ := newTestCrawler(t, pages, 3)

	res, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Pages != 3 {
		t.Fatalf("期望止步于上限 3 页，实际 %d", res.Pages)
	}
	if len(res.All) != 3 {
		t.Fatalf("期望 3 个链接，实际 %d", len(res.All))
	}
}

func TestAll_EmptyPageStopsEvenWithNextControl(t *testing.T) {
	pages := map[int]string{
		1: listingPage([]string{"/film/a"}, true),
		2: listingPage(nil, true), // 零链接 + 谎称有下一页
		3: listingPage([]string{"/film/never"}, false),
	}
	c, srv := newTestCrawler(t, pages, 0)

	res, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(res.All) != 1 || res.All[0] != srv.URL+"/film/a" {
		t.Fatalf("空页应视为内容尽头：%v", res.All)
	}
}

func TestAll_FirstPageEmptyIsFatal(t *testing.T) {
	c, _ := newTestCrawler(t, map[int]string{1: listingPage(nil, false)}, 0)
	_, err := c.All(context.Background())
	if !errors.Is(err, ErrEmptyFirstPage) {
		t.Fatalf("期望 ErrEmptyFirstPage，实际：%v", err)
	}
}

func TestAll_FirstPageFetchFailIsFatal(t *testing.T) {
	c, _ := newTestCrawler(t, map[int]string{}, 0) // 所有页都 404
	_, err := c.All(context.Background())
	if !errors.Is(err, ErrEmptyFirstPage) {
		t.Fatalf("期望 ErrEmptyFirstPage，实际：%v", err)
	}
}

func TestAll_LaterPageFetchFailureIsNonFatal(t *testing.T) {
	pages := map[int]string{
		1: listingPage([]string{"/film/a"}, true),
		// 第 2 页缺失：404。
	}
	c, _ := newTestCrawler(t, pages, 0)
	res, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("后续页失败应非致命，实际：%v", err)
	}
	if len(res.All) != 1 {
		t.Fatalf("应保留已收集结果：%v", res.All)
	}
}

func TestParseListing_AbsoluteAndProtocolRelative(t *testing.T) {
	html := `<a class="uk-position-cover" href="https://other.site/film/x">x</a>` +
		`<a class="uk-position-cover" href="//cdn.site/film/y">y</a>` +
		`<a class="uk-position-cover" href="/film/z">z</a>` +
		`<a class="other" href="/film/ignored">n</a>`
	links, hasNext, err := ParseListing([]byte(html), "https://dizifun5.com")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"https://other.site/film/x", "https://cdn.site/film/y", "https://dizifun5.com/film/z"}
	if len(links) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Fatalf("idx=%d 期望 %q 实际 %q", i, want[i], links[i])
		}
	}
	if hasNext {
		t.Fatalf("无分页控件时 hasNext 应为 false")
	}
}

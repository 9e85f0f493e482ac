package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/John-Robertt/FilmM3U/internal/domain"
	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return New(httpx.NewPageClient(), httpx.NewClient(httpx.RedirectTimeout), httpx.NewProbeClient(), "https://proxy.test/")
}

func TestLocatePlayerRef_PriorityOrder(t *testing.T) {
	// 文档顺序把 playhouse 放在前面；选择器链的优先级必须压过文档顺序。
	html := `<html><body>
<iframe title="playhouse" src="https://playhouse.premiumvideo.click/player/ph1"></iframe>
<iframe title="dizifunplay" src="https://gujan.premiumvideo.click/e/gj1"></iframe>
</body></html>`
	ref, ok := LocatePlayerRef([]byte(html))
	if !ok {
		t.Fatalf("期望定位成功")
	}
	if ref.Kind != domain.BackendGujan {
		t.Fatalf("期望 gujan 优先，实际 %q（src=%q）", ref.Kind, ref.Src)
	}
}

func TestLocatePlayerRef_BlankSrcSkipped(t *testing.T) {
	html := `<iframe title="dizifunplay" src="about:blank"></iframe>
<iframe title="playhouse" src="https://playhouse.premiumvideo.click/player/ph1"></iframe>`
	ref, ok := LocatePlayerRef([]byte(html))
	if !ok {
		t.Fatalf("期望定位成功")
	}
	if ref.Kind != domain.BackendPlayhouse {
		t.Fatalf("占位 src 应被跳过并落到下一条选择器，实际 %q", ref.Kind)
	}
}

func TestLocatePlayerRef_NoneFound(t *testing.T) {
	if _, ok := LocatePlayerRef([]byte("<html><body><p>yok</p></body></html>")); ok {
		t.Fatalf("无播放器引用时应定位失败")
	}
}

func TestResolve_UnknownBackendIsClassifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<iframe id="altPlayerFrame" src="https://unknown.example/embed/1"></iframe>`))
	}))
	defer srv.Close()

	_, err := newTestResolver(t).Resolve(context.Background(), srv.URL+"/film/x")
	var re *Error
	if !errors.As(err, &re) || re.Stage != "classify" {
		t.Fatalf("期望 classify 阶段错误，实际：%v", err)
	}
}

func TestResolve_DetailFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestResolver(t).Resolve(context.Background(), srv.URL+"/film/x")
	var re *Error
	if !errors.As(err, &re) || re.Stage != "fetch" {
		t.Fatalf("期望 fetch 阶段错误，实际：%v", err)
	}
}

func TestResolve_GujanEndToEnd_ProxyRewrittenOnce(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	iframePath := "/e/abc123"
	mux.HandleFunc("/film/x", func(w http.ResponseWriter, r *http.Request) {
		// src 同时落在测试服务器上并含 gujan 宿主标识（分类按子串判断）。
		_, _ = w.Write([]byte(`<iframe title="dizifunplay" src="` + srv.URL + iframePath + `?via=gujan.premiumvideo.click"></iframe>`))
	})
	mux.HandleFunc(iframePath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<video><source type="application/x-mpegURL" src="https://cdn.gujan.test/hls/abc123_o/playlist.m3u8"></video>`))
	})

	res, err := newTestResolver(t).Resolve(context.Background(), srv.URL+"/film/x")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := "https://proxy.test/?url=https://cdn.gujan.test/hls/abc123_o/playlist.m3u8"
	if res.ManifestURL != want {
		t.Fatalf("期望 %q，实际 %q", want, res.ManifestURL)
	}
	if res.Backend != domain.BackendGujan || res.Degraded {
		t.Fatalf("结果元信息不符合预期：%+v", res)
	}
	if strings.Count(res.ManifestURL, "?url=") != 1 {
		t.Fatalf("proxy 改写只允许发生一次：%q", res.ManifestURL)
	}
}

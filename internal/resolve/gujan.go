package resolve

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/FilmM3U/internal/domain"
	"github.com/John-Robertt/FilmM3U/internal/infra/httpx"
)

// gujan iframe 内容的三级解析：
// (a) 指定 MIME 类型的 <source> 元素
// (b) 内嵌 script 文本的有序正则链
// (c) 从 iframe 路径段推导文件标识并按模板构造
const gujanSourceSelector = `source[type="application/x-mpegURL"]`

// gujanScriptPatterns 顺序即优先级：HLS 路径形态 → 泛化 .m3u8 后缀 →
// gujan 宿主上的引号字面量（该条带捕获组，取组 1）。
var gujanScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^"\s]+/hls/[^"/\s]+/playlist\.m3u8`),
	regexp.MustCompile(`https?://[^"\s]+\.m3u8`),
	regexp.MustCompile(`"(https?://gujan\.premiumvideo\.click/hls/[^"]+)"`),
}

var gujanFileIDRe = regexp.MustCompile(`/e/([a-zA-Z0-9]+)`)

// resolveGujan 抓取 gujan iframe 并按三级顺序提取清单地址。
// 返回的是源站地址（proxy 改写在上层出口统一做）。
func (r *Resolver) resolveGujan(ctx context.Context, iframeURL string) (string, error) {
	iframeURL = normalizeScheme(iframeURL)

	body, err := httpx.FetchPage(ctx, r.pageClient, iframeURL)
	if err != nil {
		return "", &Error{URL: iframeURL, Stage: "fetch", Err: err}
	}

	if m, ok := gujanFromHTML(body); ok {
		return m, nil
	}

	// (c) 兜底：/e/<id> → 已知模板。
	if m := gujanFileIDRe.FindStringSubmatch(iframeURL); m != nil {
		return fmt.Sprintf("https://%s/hls/%s_o/playlist.m3u8", domain.GujanHost, m[1]), nil
	}

	return "", &Error{URL: iframeURL, Stage: "extract", Err: fmt.Errorf("iframe 内未找到清单地址，且无法从路径推导文件标识")}
}

// gujanFromHTML 执行 (a) 与 (b) 两级提取。纯函数，便于单测优先级。
func gujanFromHTML(html []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}

	// (a) 指定 MIME 的 <source>：命中即胜出，不再看 script。
	if src, ok := doc.Find(gujanSourceSelector).First().Attr("src"); ok && src != "" {
		return src, true
	}

	// (b) 逐个 script 按正则链扫描；首个命中的模式取其首个匹配。
	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, re := range gujanScriptPatterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				found = m[1]
			} else {
				found = m[0]
			}
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}
	return "", false
}

package resolve

import (
	"context"
	"fmt"
	"regexp"

	"github.com/John-Robertt/FilmM3U/internal/domain"
)

// premium 家族（playhouse 直连或中转）的解析：
// 文件标识 → playhouse 跳转探测取真实子域；失败则按固定顺序探测候选子域；
// 全部失败时落到未验证默认子域（降级，不算失败）。

// premiumFileIDRe 同时覆盖 file_id= 查询参数与 /player/<id> 路径段两种形态。
var premiumFileIDRe = regexp.MustCompile(`(?:file_id=|/player/)([a-zA-Z0-9]+)`)

// premiumSubdomainRe 从跳转落地 URL 中提取 <子域>.premiumvideo.click。
var premiumSubdomainRe = regexp.MustCompile(`https://([^.]+)\.premiumvideo\.click`)

var premiumCandidates = []string{"d1", "d2", "d3", "d4"}

// premiumDefaultSubdomain 是全部探测失败后的兜底子域。
// 由此构造的地址未经验证——宁可给播放器一个可能可用的地址，也不丢整部电影。
const premiumDefaultSubdomain = "d2"

func premiumManifestURL(subdomain, fileID string) string {
	return fmt.Sprintf("https://%s.%s/uploads/encode/%s/master.m3u8", subdomain, domain.PremiumDomain, fileID)
}

func playhousePlayerURL(fileID string) string {
	return "https://" + domain.PlayhouseHost + "/player/" + fileID
}

// resolvePremium 把 premium 家族的播放器引用解析为清单地址。
// degraded=true 表示走了未验证默认子域。
func (r *Resolver) resolvePremium(ctx context.Context, src string) (manifest string, degraded bool, err error) {
	src = normalizeScheme(src)

	m := premiumFileIDRe.FindStringSubmatch(src)
	if m == nil {
		return "", false, &Error{URL: src, Stage: "extract", Err: fmt.Errorf("无法从播放器引用提取文件标识")}
	}
	fileID := m[1]

	// 主路径：GET playhouse 地址并跟随重定向，从落地 URL 取真实子域。
	if final, ferr := r.finalRedirect(ctx, playhousePlayerURL(fileID)); ferr == nil {
		if sm := premiumSubdomainRe.FindStringSubmatch(final); sm != nil {
			return premiumManifestURL(sm[1], fileID), false, nil
		}
	}

	// 回退路径：按固定顺序探测候选子域，首个 200 胜出。
	for _, sub := range premiumCandidates {
		u := premiumManifestURL(sub, fileID)
		if r.probe(ctx, u) {
			return u, false, nil
		}
	}

	// 降级：未验证默认子域。
	return premiumManifestURL(premiumDefaultSubdomain, fileID), true, nil
}

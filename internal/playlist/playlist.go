// Package playlist 负责 M3U 序列化：tvg-id 规整与 EXTM3U 编码。
package playlist

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/John-Robertt/FilmM3U/internal/domain"
)

const (
	// DefaultLanguage / DefaultCountry 不对外暴露配置；保持最小但够用。
	DefaultLanguage = "Turkish"
	DefaultCountry  = "TR"

	// GroupNewest / GroupAll 是分组输出的两个固定组名。
	// 同一部电影既是新增又在全集里时会出现两次（每组一次），这是契约行为。
	GroupNewest = "Son Eklenenler"
	GroupAll    = "Filmler"

	// SentinelID 是规整后为空时的兜底标识。
	SentinelID = "UNKNOWN"
)

// turkishASCII 是土耳其字母到近似 ASCII 的固定映射。
var turkishASCII = strings.NewReplacer(
	"ç", "c", "Ç", "C",
	"ğ", "g", "Ğ", "G",
	"ı", "i", "İ", "I",
	"ö", "o", "Ö", "O",
	"ş", "s", "Ş", "S",
	"ü", "u", "Ü", "U",
)

// SanitizeID 把标题规整为 tvg-id：
// 土耳其字母转写 → 去掉字母/数字/空白/下划线以外的字符 → 空白段折叠为下划线
// → 大写 → 下划线段折叠 → 去首尾下划线；结果为空时回退 SentinelID。
//
// 约束：
// - 幂等：SanitizeID(SanitizeID(x)) == SanitizeID(x)（下划线因此在保留集内）
// - 输出只含 [A-Z0-9_]，或等于 SentinelID
func SanitizeID(text string) string {
	text = turkishASCII.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '_':
			b.WriteByte(' ')
		}
	}

	id := strings.Join(strings.Fields(b.String()), "_")
	id = strings.ToUpper(id)
	id = strings.Trim(id, "_")
	if id == "" {
		return SentinelID
	}
	return id
}

// Options 控制编码行为。
type Options struct {
	// Grouped 开启分组输出：先写 NewestURLs 命中的记录（组 GroupNewest），
	// 再把全量记录写一遍（组 GroupAll）。关闭时不写 group-title，全量各一条。
	Grouped bool

	// NewestURLs 是“最新”子集（第一页发现的详情页 URL 集合）。
	NewestURLs map[string]bool
}

// Encode 把记录序列化为完整的 M3U 文件内容。
//
// 规则：
// - 不可写记录（无清单地址 / 哨兵标题）在此前已被上层丢弃；这里再过滤一遍兜底
// - records 的顺序即输出顺序（上层按抓取发现顺序传入）
func Encode(records []domain.MovieRecord, opts Options) []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")

	if !opts.Grouped {
		for _, r := range records {
			if !r.Writable() {
				continue
			}
			writeEntry(&buf, r, "")
		}
		return buf.Bytes()
	}

	for _, r := range records {
		if !r.Writable() || !opts.NewestURLs[r.DetailURL] {
			continue
		}
		writeEntry(&buf, r, GroupNewest)
	}
	for _, r := range records {
		if !r.Writable() {
			continue
		}
		writeEntry(&buf, r, GroupAll)
	}
	return buf.Bytes()
}

// writeEntry 按既有序列化契约写一条记录：属性值不做转义（与下游消费方的
// 解析习惯一致；含引号的标题本就会破坏 EXTINF，上游站点不会产生这种标题）。
func writeEntry(buf *bytes.Buffer, r domain.MovieRecord, group string) {
	fmt.Fprintf(buf, `#EXTINF:-1 tvg-name="%s" tvg-language="%s" tvg-country="%s" tvg-id="%s" tvg-logo="%s"`,
		r.Title, DefaultLanguage, DefaultCountry, SanitizeID(r.Title), r.PosterURL)
	if group != "" {
		fmt.Fprintf(buf, ` group-title="%s"`, group)
	}
	fmt.Fprintf(buf, ",%s\n%s\n", r.Title, strings.TrimSpace(r.ManifestURL))
}

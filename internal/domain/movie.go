package domain

// SentinelTitle 是详情页取不到标题时的占位值。
//
// 约束：占位标题同时是“畸形记录”的哨兵——带该标题的记录在输出前被丢弃
// （详情页大概率返回了非详情页内容，写进播放列表只会产生无法定位的垃圾条目）。
const SentinelTitle = "Bilinmeyen Film"

// MovieRecord 是一部电影在单次运行内的聚合结果。
//
// 约束：
// - DetailURL 是全局唯一主键（跨分页去重后，每个 URL 只产生一条记录）
// - ManifestURL 非空时必须已经过 proxy 改写（绝不落盘未改写的源地址）
// - 字段缺失允许为空，但写入输出的记录必须满足 ManifestURL != ""
type MovieRecord struct {
	DetailURL   string
	Title       string
	PosterURL   string
	ManifestURL string
}

// Writable 判断记录是否允许写入播放列表。
// 无清单地址或标题仍是哨兵值的记录均视为畸形，直接丢弃（不重试）。
func (r MovieRecord) Writable() bool {
	return r.ManifestURL != "" && r.Title != SentinelTitle
}

package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusResolved = "resolved"
	StatusDropped  = "dropped"
	StatusFailed   = "failed"
)

const (
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeClassifyFailed = "classify_failed"
	ErrCodeCrawlFailed    = "crawl_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	BaseURL string `json:"base_url"`
	Output  string `json:"output"`
	Grouped bool   `json:"grouped"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Pages int `json:"pages"` // 实际抓取的列表页数

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Resolved int `json:"resolved"`
	Dropped  int `json:"dropped"`
	Failed   int `json:"failed"`
	Degraded int `json:"degraded"` // resolved 的子集：走了未验证默认子域
}

// ItemResult 是单部电影的处理结果（每个详情页 URL 恰好一条）。
type ItemResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Backend string `json:"backend"`

	// ManifestURL 为已 proxy 改写后的最终地址；dropped/failed 时为空。
	ManifestURL string `json:"manifest_url"`

	// Degraded 表示清单地址来自“全部探测失败后的默认子域”，未经验证。
	// 这是降级而非失败：条目照常写入播放列表。
	Degraded bool `json:"degraded"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 url 字典序；url=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].URL
		b := r.Items[j].URL
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusResolved:
			s.Resolved++
			if it.Degraded {
				s.Degraded++
			}
		case StatusDropped:
			s.Dropped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示 CLI 显式给了 --config 但该文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultBaseURL 是上游站点根地址（当 CLI 与配置文件都未指定时）。
	DefaultBaseURL = "https://dizifun5.com"
	// DefaultProxyURL 是清单改写所用的 proxy 前缀地址。
	DefaultProxyURL = "https://3.nejyoner19.workers.dev/"
	// DefaultOutput 是播放列表输出文件名的内置默认值。
	DefaultOutput = "Filmler.m3u"
	// DefaultConcurrency 是单部电影处理并发的内置默认值。
	DefaultConcurrency = 10
	// DefaultPageLimit 是列表翻页的硬上限（防御上游分页异常导致无界翻页）。
	DefaultPageLimit = 100
	// DefaultPageDelay 是相邻列表页请求之间的最小间隔。
	DefaultPageDelay = 500 * time.Millisecond
)

// CLIArgs 只包含 CLI 暴露的入口（output/grouped/config），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --grouped=false 必须能覆盖 config.grouped=true。
type CLIArgs struct {
	// ConfigPath 非空表示用户显式指定了配置文件位置（此时文件必须存在）。
	ConfigPath string

	Output string

	Grouped    bool
	GroupedSet bool
}

// FileConfig 对应 filmm3u.json 的解析结构。所有字段可选。
type FileConfig struct {
	BaseURL     string `json:"base_url"`
	ProxyURL    string `json:"proxy_url"`
	Output      string `json:"output"`
	Concurrency int    `json:"concurrency"`
	PageLimit   int    `json:"page_limit"`
	PageDelayMS int    `json:"page_delay_ms"`
	Grouped     *bool  `json:"grouped"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	BaseURL  string
	ProxyURL string
	Output   string

	Concurrency int
	PageLimit   int
	PageDelay   time.Duration

	Grouped bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按文档约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须读取该文件（不存在即报错）
// 2) CLI 未提供 --config：尝试读取 <cwd>/filmm3u.json（可选，缺省全走默认值）
//
// 覆盖优先级（固定）：
// - output：CLI 位置参数 > config > 默认
// - grouped：CLI --grouped/--grouped=false > config > 默认 true
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath  string
		required bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	} else {
		cfgPath = filepath.Join(cwdAbs, "filmm3u.json")
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	return merge(cli, fc, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	baseURL := DefaultBaseURL
	if s := strings.TrimSpace(fc.BaseURL); s != "" {
		baseURL = strings.TrimRight(s, "/")
	}
	if err := validateHTTPURL("base_url", baseURL); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	proxyURL := DefaultProxyURL
	if s := strings.TrimSpace(fc.ProxyURL); s != "" {
		proxyURL = s
	}
	if err := validateHTTPURL("proxy_url", proxyURL); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// output：CLI > config > 默认
	output := DefaultOutput
	if s := strings.TrimSpace(cli.Output); s != "" {
		output = s
	} else if s := strings.TrimSpace(fc.Output); s != "" {
		output = s
	}

	// grouped：CLI > config > 默认 true
	grouped := true
	if cli.GroupedSet {
		grouped = cli.Grouped
	} else if fc.Grouped != nil {
		grouped = *fc.Grouped
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 文档约定：范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	pageLimit := fc.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	pageDelay := DefaultPageDelay
	if fc.PageDelayMS > 0 {
		pageDelay = time.Duration(fc.PageDelayMS) * time.Millisecond
	} else if fc.PageDelayMS < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("page_delay_ms 不能为负：%d", fc.PageDelayMS)}
	}

	return EffectiveConfig{
		BaseURL:     baseURL,
		ProxyURL:    proxyURL,
		Output:      output,
		Concurrency: concurrency,
		PageLimit:   pageLimit,
		PageDelay:   pageDelay,
		Grouped:     grouped,
	}, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

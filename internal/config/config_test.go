package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "filmm3u.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置文件失败：%v", err)
	}
}

func TestLoadEffective_AllDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()

	eff, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("无配置文件应全走默认值，实际错误：%v", err)
	}
	if eff.BaseURL != DefaultBaseURL {
		t.Errorf("base_url 默认值不符：%q", eff.BaseURL)
	}
	if eff.ProxyURL != DefaultProxyURL {
		t.Errorf("proxy_url 默认值不符：%q", eff.ProxyURL)
	}
	if eff.Output != DefaultOutput {
		t.Errorf("output 默认值不符：%q", eff.Output)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Errorf("concurrency 默认值不符：%d", eff.Concurrency)
	}
	if eff.PageLimit != DefaultPageLimit || eff.PageDelay != DefaultPageDelay {
		t.Errorf("翻页默认值不符：limit=%d delay=%v", eff.PageLimit, eff.PageDelay)
	}
	if !eff.Grouped {
		t.Errorf("grouped 默认应为 true")
	}
}

func TestLoadEffective_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"base_url": "https://ayna.example/",
		"proxy_url": "https://p.example/",
		"output": "liste.m3u",
		"concurrency": 3,
		"page_limit": 7,
		"page_delay_ms": 50,
		"grouped": false
	}`)

	eff, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// base_url 末尾斜杠被去掉（后续拼接 /filmler?p=N）。
	if eff.BaseURL != "https://ayna.example" {
		t.Errorf("base_url 不符：%q", eff.BaseURL)
	}
	if eff.ProxyURL != "https://p.example/" || eff.Output != "liste.m3u" {
		t.Errorf("proxy/output 不符：%q %q", eff.ProxyURL, eff.Output)
	}
	if eff.Concurrency != 3 || eff.PageLimit != 7 || eff.PageDelay != 50*time.Millisecond {
		t.Errorf("数值字段不符：%d %d %v", eff.Concurrency, eff.PageLimit, eff.PageDelay)
	}
	if eff.Grouped {
		t.Errorf("grouped=false 未生效")
	}
}

func TestLoadEffective_CLIOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"output": "dosya.m3u", "grouped": true}`)

	eff, err := LoadEffective(dir, CLIArgs{Output: "cli.m3u", Grouped: false, GroupedSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Output != "cli.m3u" {
		t.Errorf("CLI output 应覆盖配置：%q", eff.Output)
	}
	if eff.Grouped {
		t.Errorf("--grouped=false 应覆盖 config.grouped=true")
	}
}

func TestLoadEffective_ConcurrencyClamped(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-5, 1},
		{1, 1},
		{32, 32},
		{100, 32},
	}
	for _, c := range cases {
		dir := t.TempDir()
		writeConfig(t, dir, fmt.Sprintf(`{"concurrency": %d}`, c.in))
		eff, err := LoadEffective(dir, CLIArgs{})
		if err != nil {
			t.Fatalf("concurrency=%d：不期望错误：%v", c.in, err)
		}
		if eff.Concurrency != c.want {
			t.Errorf("concurrency=%d：期望截断为 %d，实际 %d", c.in, c.want, eff.Concurrency)
		}
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{nope`)

	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际：%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_InvalidURLs(t *testing.T) {
	for _, body := range []string{
		`{"base_url": "ftp://x.example"}`,
		`{"base_url": "not a url"}`,
		`{"proxy_url": "no-scheme.example"}`,
		`{"page_delay_ms": -1}`,
	} {
		dir := t.TempDir()
		writeConfig(t, dir, body)
		if _, err := LoadEffective(dir, CLIArgs{}); Code(err) != ErrCodeInvalid {
			t.Errorf("%s：期望 %s，实际：%v", body, ErrCodeInvalid, err)
		}
	}
}

func TestLoadEffective_ExplicitConfigMustExist(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadEffective(dir, CLIArgs{ConfigPath: filepath.Join(dir, "yok.json")})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("显式 --config 指向不存在的文件必须报 %s，实际：%v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_ExplicitConfigRelativePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ozel.json"), []byte(`{"output": "ozel.m3u"}`), 0o644); err != nil {
		t.Fatalf("写入配置文件失败：%v", err)
	}

	eff, err := LoadEffective(dir, CLIArgs{ConfigPath: "ozel.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Output != "ozel.m3u" {
		t.Errorf("相对路径 --config 未生效：%q", eff.Output)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/FilmM3U/internal/app/run"
	"github.com/John-Robertt/FilmM3U/internal/config"
	"github.com/John-Robertt/FilmM3U/internal/domain"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: ra.ConfigPath,
		Output:     ra.Output,
		Grouped:    ra.Grouped,
		GroupedSet: ra.GroupedSet,
	})
	if err != nil {
		rr := reportForConfigError(err)
		emitReport(rr)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Output     string
	Grouped    bool
	GroupedSet bool
	ConfigPath string
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ra.ConfigPath = args[i]
		case strings.HasPrefix(a, "--config="):
			ra.ConfigPath = strings.TrimPrefix(a, "--config=")
		case a == "--grouped":
			ra.Grouped = true
			ra.GroupedSet = true
		case strings.HasPrefix(a, "--grouped="):
			v := strings.TrimPrefix(a, "--grouped=")
			switch v {
			case "true":
				ra.Grouped = true
			case "false":
				ra.Grouped = false
			default:
				return runArgs{}, fmt.Errorf("--grouped 只能是 true 或 false，实际是 %q", v)
			}
			ra.GroupedSet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Output != "" {
				return runArgs{}, fmt.Errorf("重复的 output：%q 与 %q", ra.Output, a)
			}
			ra.Output = a
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  filmm3u run [output.m3u] [--grouped[=true|false]] [--config 文件]

命令：
  run    抓取站点电影列表并生成 M3U 播放列表

使用 "filmm3u run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  filmm3u run [output.m3u] [--grouped[=true|false]] [--config 文件]

参数：
  output.m3u  播放列表输出路径（未指定则读配置文件；最终默认 Filmler.m3u）
  --grouped   分组输出（最新 + 全量两组；默认 true）；支持 --grouped=false 覆盖配置
  --config    配置文件路径（未指定则尝试读取 <cwd>/filmm3u.json，可缺省）
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：resolved=%d dropped=%d failed=%d degraded=%d\n",
			rr.Summary.Resolved, rr.Summary.Dropped, rr.Summary.Failed, rr.Summary.Degraded,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed {
					continue
				}
				key := it.URL
				if key == "" {
					// 合成条目（配置/抓取级失败）没有详情页锚点。
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：resolved=%d dropped=%d failed=%d degraded=%d\n",
		rr.Summary.Resolved, rr.Summary.Dropped, rr.Summary.Failed, rr.Summary.Degraded,
	)
}

func reportForConfigError(err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	fmt.Fprintf(w, "playlist: %s\n", eff.Output)
	fmt.Fprintf(w, "report: %s\n", filepath.Join(filepath.Dir(eff.Output), run.ReportName))
}

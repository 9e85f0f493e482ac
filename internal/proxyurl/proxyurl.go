// Package proxyurl 把清单地址包进第三方直通代理，绕过源站的播放限制。
package proxyurl

import "strings"

// DefaultBase 是直通代理端点（契约：<base>?url=<原始地址>）。
const DefaultBase = "https://3.nejyoner19.workers.dev/"

// Rewrite 是纯字符串变换：<base>?url=<原始地址>。
//
// 约束：
// - 空输入得空输出
// - 不做百分号转义：下游代理按“?url= 之后整段是原始地址”解析，
//   转义反而会改变既有序列化契约
// - 非幂等：调用方绝不允许对同一地址改写两次（有回归测试盯着）
func Rewrite(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBase
	}
	return base + "?url=" + raw
}

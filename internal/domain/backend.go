package domain

import "strings"

// BackendKind 标记播放器引用所属的视频后端。
//
// 约束：分类必须穷尽枚举，未知形态显式落到 BackendUnknown，
// 不允许用“默认分支顺手猜一个后端”的方式兜底。
type BackendKind string

const (
	BackendGujan          BackendKind = "gujan"
	BackendPlayhouse      BackendKind = "playhouse"
	BackendGenericPremium BackendKind = "premium"
	BackendUnknown        BackendKind = "unknown"
)

const (
	// GujanHost / PlayhouseHost / PremiumDomain 是两个已知后端的宿主标识。
	// gujan 与 playhouse 都是 PremiumDomain 的子域，因此分类顺序是硬约束：
	// 先匹配更具体的子域，再匹配共享域。
	GujanHost     = "gujan.premiumvideo.click"
	PlayhouseHost = "playhouse.premiumvideo.click"
	PremiumDomain = "premiumvideo.click"
)

// PlayerRef 是解析单部电影期间的瞬态值：定位到的播放器引用 + 其后端分类。
type PlayerRef struct {
	Kind BackendKind
	Src  string // 原始 src（可能是 // 开头的协议相对地址）
}

// ClassifyBackend 按 src 中的宿主/路径形态给出后端分类。
func ClassifyBackend(src string) BackendKind {
	s := strings.ToLower(strings.TrimSpace(src))
	switch {
	case s == "":
		return BackendUnknown
	case strings.Contains(s, GujanHost):
		return BackendGujan
	case strings.Contains(s, PlayhouseHost):
		return BackendPlayhouse
	case strings.Contains(s, PremiumDomain):
		return BackendGenericPremium
	default:
		return BackendUnknown
	}
}

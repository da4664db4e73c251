// Package logging 提供 reportkit 各包共用的 *slog.Logger。
//
// 默认丢弃全部输出；CLI 或宿主通过 SetLogger 接入自己的 handler。
package logging

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

var discard = slog.New(slog.DiscardHandler)

// SetLogger 设置包级 logger，传 nil 恢复为丢弃输出。可并发调用。
func SetLogger(sl *slog.Logger) {
	if sl == nil {
		sl = discard
	}
	logger.Store(sl)
}

// Logger 返回包级 logger，未设置时返回丢弃输出的 logger。
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return discard
}

// Or 返回 l，l 为 nil 时回退到包级 logger。渲染选项里的 Logger 字段都经由它取值。
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return Logger()
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// BufferedLogHandler 把日志记录以 JSON 行的形式保存在内存中，供测试检查
// 渲染过程中产生的告警（缺失资源、未知元素类型、插件失败等）。
type BufferedLogHandler struct {
	level  slog.Leveler
	state  *bufferState
	attrs  []slog.Attr
	groups []string
}

type bufferState struct {
	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

type logEntry struct {
	Level    string   `json:"level"`
	Message  string   `json:"message"`
	DateTime string   `json:"datetime"`
	Attrs    []string `json:"attrs,omitempty"`
}

// NewBufferedLogHandler 创建空缓冲的 handler；opts 为 nil 时记录所有级别。
func NewBufferedLogHandler(opts *slog.HandlerOptions) *BufferedLogHandler {
	h := &BufferedLogHandler{state: &bufferState{}}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *BufferedLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *BufferedLogHandler) Handle(_ context.Context, r slog.Record) error {
	entry := logEntry{
		Level:    r.Level.String(),
		Message:  r.Message,
		DateTime: r.Time.Format(time.DateTime),
	}
	for _, a := range h.attrs {
		entry.Attrs = append(entry.Attrs, h.prefixed(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs = append(entry.Attrs, h.prefixed(a))
		return true
	})
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.buf.Write(data)
	h.state.buf.WriteByte('\n')
	h.state.n++
	return nil
}

func (h *BufferedLogHandler) prefixed(a slog.Attr) string {
	if len(h.groups) == 0 {
		return a.String()
	}
	return strings.Join(h.groups, ".") + "." + a.String()
}

func (h *BufferedLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *BufferedLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

// String 返回已捕获的全部输出。
func (h *BufferedLogHandler) String() string {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return h.state.buf.String()
}

// Contains 判断输出中是否包含 s。
func (h *BufferedLogHandler) Contains(s string) bool {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return bytes.Contains(h.state.buf.Bytes(), []byte(s))
}

// Count 返回已捕获的记录条数。
func (h *BufferedLogHandler) Count() int {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return h.state.n
}

// Reset 清空缓冲。
func (h *BufferedLogHandler) Reset() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.buf.Reset()
	h.state.n = 0
}

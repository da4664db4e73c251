package element

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/paint"
)

// ErrUnknownPlugin 自定义元素引用了未注册的插件。
var ErrUnknownPlugin = errors.New("element: unknown plugin")

// PropDesc 插件声明的属性，用于编辑器属性面板与默认值。
type PropDesc struct {
	Key     string
	Type    PropType
	Default any
	Options []string
}

// PluginContext 是插件绘制时可用的全部信息。坐标系已平移到元素左上角。
type PluginContext struct {
	Canvas   paint.Canvas
	Size     layout.Size
	Data     any            // 执行模式下的根数据，编辑模式为 nil
	Values   map[string]any // 元素上保存的值与插件默认值合并后的结果
	Defaults map[string]any
	Link     string
	// Resolve 对文本做 ${} 插值，编辑模式下原样返回。
	Resolve func(text string) string
}

// Plugin 渲染自定义元素。插件在进程内注册，不负责加载。
type Plugin interface {
	Schema() []PropDesc
	Render(ctx *PluginContext) error
}

// PluginFunc 把普通函数适配为没有属性声明的插件。
type PluginFunc func(ctx *PluginContext) error

func (f PluginFunc) Schema() []PropDesc              { return nil }
func (f PluginFunc) Render(ctx *PluginContext) error { return f(ctx) }

var (
	pluginMu sync.RWMutex
	plugins  = map[string]Plugin{}
)

// RegisterPlugin 注册插件，同名插件会被替换。
func RegisterPlugin(name string, p Plugin) {
	if name == "" || p == nil {
		return
	}
	pluginMu.Lock()
	defer pluginMu.Unlock()
	plugins[name] = p
}

// UnregisterPlugin 移除插件。
func UnregisterPlugin(name string) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	delete(plugins, name)
}

// LookupPlugin 按名称查找插件。
func LookupPlugin(name string) (Plugin, error) {
	pluginMu.RLock()
	defer pluginMu.RUnlock()
	p, ok := plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	return p, nil
}

// Plugins 返回已注册插件的名称（排序后）。
func Plugins() []string {
	pluginMu.RLock()
	defer pluginMu.RUnlock()
	names := make([]string, 0, len(plugins))
	for n := range plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PluginValues 把插件默认值与元素保存的值合并。
func PluginValues(p Plugin, saved map[string]any) (values, defaults map[string]any) {
	defaults = map[string]any{}
	for _, d := range p.Schema() {
		if d.Default != nil {
			defaults[d.Key] = d.Default
		}
	}
	values = make(map[string]any, len(defaults)+len(saved))
	for k, v := range defaults {
		values[k] = v
	}
	for k, v := range saved {
		values[k] = v
	}
	return values, defaults
}

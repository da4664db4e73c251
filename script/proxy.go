package script

import (
	"github.com/dop251/goja"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
)

// sectionProxy 暴露 name、height 与 item(name)。
func (rt *runtime) sectionProxy(name string, s *element.Element) *goja.Object {
	obj := rt.vm.NewObject()
	_ = obj.Set("name", name)
	_ = obj.DefineAccessorProperty("height", rt.vm.ToValue(func() float64 {
		return rt.grow(s, rt.snapshot(s)).Height(s)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	items := map[string]*goja.Object{}
	_ = obj.Set("item", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if p, ok := items[key]; ok {
			return p
		}
		el := s.FindByName(key)
		if el == nil || el == s {
			return goja.Null()
		}
		p := rt.itemProxy(el)
		items[key] = p
		return p
	})
	return obj
}

func (rt *runtime) override(uid int64) *flow.Override {
	o, ok := rt.overrides[uid]
	if !ok {
		o = &flow.Override{}
		rt.overrides[uid] = o
	}
	return o
}

// itemProxy 的读取返回当前有效值（覆盖优先），写入只进入覆盖表。
func (rt *runtime) itemProxy(el *element.Element) *goja.Object {
	obj := rt.vm.NewObject()
	_ = obj.Set("name", el.Name)
	str := func(key string, field func(o *flow.Override) **string, design func() string) {
		get := func() string {
			if o, ok := rt.overrides[el.UID]; ok {
				if v := *field(o); v != nil {
					return *v
				}
			}
			return design()
		}
		set := func(v goja.Value) {
			s := v.String()
			*field(rt.override(el.UID)) = &s
		}
		_ = obj.DefineAccessorProperty(key, rt.vm.ToValue(get), rt.vm.ToValue(set), goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	str("text", func(o *flow.Override) **string { return &o.Text }, func() string {
		if el.Text != nil {
			return el.Text.Text
		}
		return ""
	})
	str("color", func(o *flow.Override) **string { return &o.Color }, func() string {
		switch {
		case el.Text != nil:
			return el.Text.Color
		case el.Line != nil:
			return el.Line.Color
		case el.Shape != nil:
			return el.Shape.BorderColor
		}
		return ""
	})
	str("bkColor", func(o *flow.Override) **string { return &o.BkColor }, func() string {
		switch {
		case el.Text != nil:
			return el.Text.BkColor
		case el.Shape != nil:
			return el.Shape.BkColor
		}
		return ""
	})
	str("image", func(o *flow.Override) **string { return &o.Image }, func() string {
		if el.Image != nil {
			return el.Image.Source
		}
		return ""
	})
	_ = obj.DefineAccessorProperty("visible", rt.vm.ToValue(func() bool {
		if o, ok := rt.overrides[el.UID]; ok && o.Visible != nil {
			return *o.Visible
		}
		return el.Visible
	}), rt.vm.ToValue(func(v goja.Value) {
		b := v.ToBoolean()
		rt.override(el.UID).Visible = &b
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("data", rt.vm.ToValue(func() any {
		if o, ok := rt.overrides[el.UID]; ok {
			return o.Data
		}
		return nil
	}), rt.vm.ToValue(func(v goja.Value) {
		rt.override(el.UID).Data = v.Export()
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

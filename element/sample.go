package element

import (
	"fmt"
	"time"
)

// sampleRows 是样例数据中每个数组的行数。
const sampleRows = 3

var sampleDate = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

// SampleData 按数据源结构生成确定性的样例数据，供设计时预览。
func SampleData(nodes []SchemaNode) map[string]any {
	return sampleObject(nodes, 0)
}

func sampleObject(nodes []SchemaNode, row int) map[string]any {
	out := make(map[string]any, len(nodes))
	for _, n := range nodes {
		if n.Name == "" {
			continue
		}
		out[n.Name] = sampleValue(n, row)
	}
	return out
}

func sampleValue(n SchemaNode, row int) any {
	switch n.Type {
	case "object":
		return sampleObject(n.Elements, row)
	case "array":
		items := make([]any, sampleRows)
		for i := range items {
			// 单个匿名元素表示标量数组。
			if len(n.Elements) == 1 && n.Elements[0].Name == "" {
				items[i] = sampleValue(n.Elements[0], i)
				continue
			}
			items[i] = sampleObject(n.Elements, i)
		}
		return items
	case "number":
		return float64((row+1)*100) + 0.5
	case "boolean":
		return row%2 == 0
	case "date":
		return sampleDate.AddDate(0, 0, row).Format(time.DateOnly)
	}
	name := n.Name
	if name == "" {
		name = "item"
	}
	return fmt.Sprintf("%s %d", name, row+1)
}

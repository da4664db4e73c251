// Package datasource 读取渲染用的根数据：JSON 文件或 Excel 工作簿，也可以按报表的
// 数据源结构生成样例数据。
package datasource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ByLCY/reportkit/element"
)

// ErrUnsupported 不支持的数据文件格式。
var ErrUnsupported = errors.New("datasource: unsupported file type")

// Load 按扩展名读取数据文件：.json 或 .xlsx/.xlsm。
func Load(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".xlsx", ".xlsm":
		return LoadXLSX(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// LoadJSON 解码任意 JSON 值，数字解码为 float64。
func LoadJSON(r io.Reader) (any, error) {
	var v any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("datasource: decode json: %w", err)
	}
	return v, nil
}

// LoadXLSX 把工作簿的每个工作表转为对象数组：第一行是表头，其后每行一个对象，
// 键为表头文字。空表头的列与全空的行被跳过，数字单元格转换为数值。
func LoadXLSX(r io.Reader) (map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("datasource: open workbook: %w", err)
	}
	defer f.Close()

	out := map[string]any{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("datasource: read sheet %s: %w", sheet, err)
		}
		records := []any{}
		if len(rows) > 0 {
			header := rows[0]
			for _, row := range rows[1:] {
				rec := map[string]any{}
				for i, cell := range row {
					if i >= len(header) || strings.TrimSpace(header[i]) == "" || cell == "" {
						continue
					}
					rec[strings.TrimSpace(header[i])] = parseValue(cell)
				}
				if len(rec) > 0 {
					records = append(records, rec)
				}
			}
		}
		out[sheet] = records
	}
	return out, nil
}

// parseValue 依次尝试整数、浮点数，否则保留原字符串。
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Sample 按报表的数据源结构生成样例数据。
func Sample(report *element.Element) (map[string]any, error) {
	if report == nil || report.Kind != element.KindReport {
		return nil, element.ErrNotReport
	}
	return element.SampleData(report.Report.DataSource), nil
}

// MarshalIndent 以缩进 JSON 输出数据，供命令行写出样例。
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

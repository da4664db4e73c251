package binding

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// Format 按 pattern 格式化数值或日期。
//
// 数值模式形如 "#,##0.00"，可以带前后缀（"¥#,##0.00"、"0.0 kg"）；
// 日期模式使用 yyyy、yy、MM、M、dd、d、HH、H、mm、ss、SSS 记号，其余字符原样输出。
// 日期值接受 time.Time、RFC3339/yyyy-MM-dd 字符串以及毫秒时间戳。
func Format(value any, pattern string) string {
	if pattern == "" {
		return FormatValue(value)
	}
	if isNumberPattern(pattern) {
		if f, ok := toNumber(value); ok {
			return formatNumber(f, pattern)
		}
		return FormatValue(value)
	}
	if t, ok := toTime(value); ok {
		return formatDate(t, pattern)
	}
	return FormatValue(value)
}

func isNumberPattern(p string) bool {
	if !strings.ContainsAny(p, "#0") {
		return false
	}
	return !strings.ContainsAny(p, "yMdHms")
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := toNumber(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

func formatNumber(f float64, pattern string) string {
	start := strings.IndexAny(pattern, "#0,.")
	end := strings.LastIndexAny(pattern, "#0,.") + 1
	prefix, num, suffix := pattern[:start], pattern[start:end], pattern[end:]

	decimals := 0
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		decimals = strings.Count(num[dot+1:], "0") + strings.Count(num[dot+1:], "#")
	}
	var body string
	if strings.Contains(num, ",") {
		body = numberPrinter.Sprintf("%.*f", decimals, f)
	} else {
		body = strconv.FormatFloat(f, 'f', decimals, 64)
	}
	// 小数部分的 # 表示可省略的零。
	if dot := strings.IndexByte(num, '.'); dot >= 0 && strings.Contains(num[dot+1:], "#") && strings.Contains(body, ".") {
		required := strings.Count(num[dot+1:], "0")
		intPart, frac, _ := strings.Cut(body, ".")
		for len(frac) > required && strings.HasSuffix(frac, "0") {
			frac = frac[:len(frac)-1]
		}
		body = intPart
		if frac != "" {
			body += "." + frac
		}
	}
	if math.Signbit(f) && strings.HasPrefix(body, "-") && prefix != "" {
		return "-" + prefix + body[1:] + suffix
	}
	return prefix + body + suffix
}

var dateTokens = []string{"yyyy", "SSS", "yy", "MM", "dd", "HH", "mm", "ss", "M", "d", "H"}

func formatDate(t time.Time, pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(pattern[i:], tok) {
				b.WriteString(dateComponent(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func dateComponent(t time.Time, tok string) string {
	pad := func(v, width int) string {
		s := strconv.Itoa(v)
		for len(s) < width {
			s = "0" + s
		}
		return s
	}
	switch tok {
	case "yyyy":
		return pad(t.Year(), 4)
	case "yy":
		return pad(t.Year()%100, 2)
	case "MM":
		return pad(int(t.Month()), 2)
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "dd":
		return pad(t.Day(), 2)
	case "d":
		return strconv.Itoa(t.Day())
	case "HH":
		return pad(t.Hour(), 2)
	case "H":
		return strconv.Itoa(t.Hour())
	case "mm":
		return pad(t.Minute(), 2)
	case "ss":
		return pad(t.Second(), 2)
	case "SSS":
		return pad(t.Nanosecond()/int(time.Millisecond), 3)
	}
	return tok
}

package generation

import "strings"

// SanitizeJSON 从模型自由文本中尽力截取 JSON 载荷。
// 这是启发式而非解析器：先剥掉 Markdown 代码围栏，再从最早出现的
// 开括号切到最晚出现的闭括号。调用方仍须自行 json.Unmarshal，
// 并把解析失败当作独立的错误类别处理。
// 纯函数，绝不报错；空输入返回 "{}"。
func SanitizeJSON(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "{}"
	}

	// 模型输出可能在 JSON 前后夹杂多余文本，尽量截取中间的 JSON 值。
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start := objStart
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
	}

	objEnd := strings.LastIndex(s, "}")
	arrEnd := strings.LastIndex(s, "]")
	end := objEnd
	if arrEnd > end {
		end = arrEnd
	}

	if start >= 0 && end > start {
		return strings.TrimSpace(s[start : end+1])
	}
	return s
}

package notifier

import (
	"fmt"
	"strings"
	"time"
)

const maxMessageLen = 3800

// Field 是一行 key: value。
type Field struct {
	Key   string
	Value string
}

// F 便捷构造 Field，value 按 %v 格式化。
func F(key string, value any) Field {
	return Field{Key: key, Value: fmt.Sprint(value)}
}

// Message 统一格式的推送：标题、字段块与可选页脚。
type Message struct {
	Icon      string
	Title     string
	Fields    []Field
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Telegram Markdown 文本，字段放在代码块中对齐，超长截断。
func (m Message) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString("*" + escape(header) + "*\n\n")
	}
	if fields := nonEmpty(m.Fields); len(fields) > 0 {
		width := 0
		for _, f := range fields {
			if len(f.Key) > width {
				width = len(f.Key)
			}
		}
		b.WriteString("```\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "%-*s  %s\n", width, f.Key, strings.ReplaceAll(f.Value, "```", "'''"))
		}
		b.WriteString("```\n")
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escape(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("_" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST") + "_")
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}

func nonEmpty(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Key) == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// escape 处理 Telegram Markdown(v1) 的保留字符。
func escape(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}

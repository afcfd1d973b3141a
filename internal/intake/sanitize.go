package intake

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// cleanText 去除文本中的 HTML 标记并截断到 limit 个字符。
func cleanText(s string, limit int) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "<&") {
		s = stripMarkup(s)
	}
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return strings.TrimSpace(s)
}

func stripMarkup(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTag(name) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

package executor

import (
	"regexp"
	"sort"
	"strings"
)

// TextSource — найденный текст и место, откуда он взят.
type TextSource struct {
	Text      string
	Source    string         // "<input>" или "<input>.<field>"
	SessionID string         // session_id из того же объекта, если есть
	InputType string         // input_type из того же объекта, если есть
	Container map[string]any // объект, в котором найден текст
}

// ExtractText ищет текст во входах узла по приоритету:
//  1. непосредственная строка;
//  2. вложенное поле ai_response;
//  3. вложенное поле input_text;
//  4. любая непустая вложенная строка.
//
// Входы перебираются в порядке ключей, поэтому результат детерминирован.
func ExtractText(inputs map[string]any) (TextSource, bool) {
	keys := sortedKeys(inputs)

	for _, k := range keys {
		if s, ok := inputs[k].(string); ok && strings.TrimSpace(s) != "" {
			return TextSource{Text: strings.TrimSpace(s), Source: k}, true
		}
	}

	for _, field := range []string{"ai_response", "input_text"} {
		for _, k := range keys {
			m, ok := inputs[k].(map[string]any)
			if !ok {
				continue
			}
			if s, ok := m[field].(string); ok && strings.TrimSpace(s) != "" {
				return fromContainer(m, strings.TrimSpace(s), k+"."+field), true
			}
		}
	}

	for _, k := range keys {
		m, ok := inputs[k].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range sortedKeys(m) {
			if s, ok := m[field].(string); ok && strings.TrimSpace(s) != "" && !isServiceField(field) {
				return fromContainer(m, strings.TrimSpace(s), k+"."+field), true
			}
		}
	}

	return TextSource{}, false
}

// isServiceField — служебные строковые поля, которые не считаются текстом сообщения.
func isServiceField(field string) bool {
	switch field {
	case "session_id", "input_type", "timestamp", "chat_id", "access_token", "content_type":
		return true
	}
	return false
}

func fromContainer(m map[string]any, text, source string) TextSource {
	ts := TextSource{Text: text, Source: source, Container: m}
	ts.SessionID, _ = m["session_id"].(string)
	ts.InputType, _ = m["input_type"].(string)
	return ts
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	reCodeFence  = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reBold       = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	reItalic     = regexp.MustCompile(`(^|[^*\w])[*_]([^*_\n]+)[*_]`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reQuote      = regexp.MustCompile(`(?m)^>\s?`)
	reBullet     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reRule       = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown убирает разметку Markdown, оставляя текст.
func StripMarkdown(s string) string {
	s = reCodeFence.ReplaceAllString(s, "$1")
	s = reInlineCode.ReplaceAllString(s, "$1")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reBold.ReplaceAllString(s, "$2")
	s = reStrike.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1$2")
	s = reRule.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reBullet.ReplaceAllString(s, "")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

package action

import "encoding/json"

// HasPayload reports whether text contains a balanced JSON object span. The
// loop uses it to tell a plain prose answer from a broken action payload.
func HasPayload(text string) bool {
	return extractPayload(text) != ""
}

// StripPayload returns text with its balanced JSON object span removed, so
// surrounding prose can be rendered on its own. Unchanged when no payload
// exists.
func StripPayload(text string) string {
	start, end, ok := payloadSpan(text)
	if !ok {
		return text
	}
	return text[:start] + text[end:]
}

// extractPayload returns the payload span chosen by payloadSpan. The scan is
// string-aware: braces inside JSON string literals (including escaped quotes)
// do not affect nesting depth, so prose or markdown fences around the payload
// are tolerated. Returns "" when no balanced span exists.
func extractPayload(text string) string {
	start, end, ok := payloadSpan(text)
	if !ok {
		return ""
	}
	return text[start:end]
}

// payloadSpan picks the balanced object span carrying the payload. Prose can
// legitimately contain braces ("pass {opts} here") before the real payload,
// so the first span whose JSON decodes to an object with an "action" key
// wins. When no span qualifies, the first balanced span is returned so a
// broken payload still surfaces as a syntax error rather than prose.
func payloadSpan(text string) (int, int, bool) {
	firstStart, firstEnd := -1, -1

	for from := 0; ; {
		start, end, ok := nextSpan(text, from)
		if !ok {
			break
		}
		if firstStart < 0 {
			firstStart, firstEnd = start, end
		}

		var head struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal([]byte(text[start:end]), &head); err == nil && head.Action != "" {
			return start, end, true
		}
		from = end
	}

	if firstStart < 0 {
		return 0, 0, false
	}
	return firstStart, firstEnd, true
}

// nextSpan finds the first outermost balanced object span at or after from.
func nextSpan(text string, from int) (int, int, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := from; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closer before any opener
			}
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}

	return 0, 0, false
}

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the first JSON object out of a model response, tolerating
// fenced code blocks and surrounding prose.
func ExtractJSON(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	if m := fencedJSONRE.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	// Balance braces outside string literals so trailing prose after the
	// object does not confuse the parse.
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				candidate := []byte(s[start : i+1])
				if !json.Valid(candidate) {
					return nil, fmt.Errorf("extracted object is not valid JSON")
				}
				return candidate, nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in response")
}

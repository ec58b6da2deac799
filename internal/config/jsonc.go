package config

import (
	"errors"
	"strings"
)

// normalizeJSONC blanks comments and drops trailing commas so the result is
// plain JSON with the same line layout.
func normalizeJSONC(content string) (string, error) {
	stripped, err := stripComments(content)
	if err != nil {
		return "", err
	}
	return stripTrailingCommas(stripped), nil
}

// scanner tracks whether the cursor sits inside a JSON string literal.
type scanner struct {
	inString bool
	escape   bool
}

// step consumes ch and reports whether it belongs to a string literal.
func (s *scanner) step(ch byte) bool {
	if s.inString {
		switch {
		case s.escape:
			s.escape = false
		case ch == '\\':
			s.escape = true
		case ch == '"':
			s.inString = false
		}
		return true
	}
	if ch == '"' {
		s.inString = true
		return true
	}
	return false
}

func stripComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	var sc scanner
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if sc.step(ch) || ch != '/' || i+1 >= len(content) {
			out.WriteByte(ch)
			continue
		}

		switch content[i+1] {
		case '/':
			end := strings.IndexAny(content[i:], "\r\n")
			if end < 0 {
				end = len(content) - i
			}
			out.WriteString(strings.Repeat(" ", end))
			i += end - 1
		case '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			out.WriteString(blank(content[i : i+2+end+2]))
			i += 2 + end + 1
		default:
			out.WriteByte(ch)
		}
	}
	return out.String(), nil
}

// blank replaces a comment with spaces, keeping line breaks and tabs.
func blank(comment string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		default:
			return ' '
		}
	}, comment)
}

func stripTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	var sc scanner
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if !sc.step(ch) && ch == ',' {
			rest := strings.TrimLeft(content[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

package outlets

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsafeSQL is returned for anything other than a single SELECT statement.
var ErrUnsafeSQL = errors.New("only single SELECT statements are allowed")

var deniedKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"alter": true, "create": true, "replace": true, "truncate": true,
	"attach": true, "detach": true, "pragma": true, "vacuum": true,
	"reindex": true, "grant": true, "revoke": true,
}

// ValidateSelect checks that the statement is a lone SELECT with no mutating
// or schema-touching keywords. Keywords inside string literals are ignored;
// comments are stripped before checking so they cannot smuggle a second
// statement past the guard.
func ValidateSelect(query string) error {
	stripped, err := stripComments(query)
	if err != nil {
		return err
	}

	tokens := tokenizeSQL(stripped)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}
	if !strings.EqualFold(tokens[0], "select") {
		return fmt.Errorf("%w: statement starts with %q", ErrUnsafeSQL, tokens[0])
	}

	for i, tok := range tokens {
		if tok == ";" {
			// A trailing semicolon is fine; anything after it is a second statement.
			for _, rest := range tokens[i+1:] {
				if rest != ";" {
					return fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
				}
			}
			break
		}
		if deniedKeywords[strings.ToLower(tok)] {
			return fmt.Errorf("%w: keyword %q not permitted", ErrUnsafeSQL, strings.ToUpper(tok))
		}
	}

	return nil
}

// stripComments removes -- line comments and /* */ block comments while
// leaving string literals intact.
func stripComments(s string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			lit, n, err := scanStringLiteral(s[i:], c)
			if err != nil {
				return "", err
			}
			out.WriteString(lit)
			i += n
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated comment", ErrUnsafeSQL)
			}
			i += end + 4
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

// scanStringLiteral consumes a quoted literal starting at s[0], handling the
// doubled-quote escape ('' or "").
func scanStringLiteral(s string, quote byte) (string, int, error) {
	i := 1
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return s[:i+1], i + 1, nil
		}
		i++
	}
	return "", 0, fmt.Errorf("%w: unterminated string literal", ErrUnsafeSQL)
}

// tokenizeSQL splits a comment-free statement into words, string literals and
// single-character punctuation. Literals come back as one token so their
// contents never look like keywords.
func tokenizeSQL(s string) []string {
	var tokens []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			lit, n, err := scanStringLiteral(s[i:], c)
			if err != nil {
				// stripComments already validated literals
				return tokens
			}
			tokens = append(tokens, lit)
			i += n
		case isWordChar(c):
			j := i
			for j < len(s) && isWordChar(s[j]) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		default:
			tokens = append(tokens, string(c))
			i++
		}
	}
	return tokens
}

func isWordChar(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
